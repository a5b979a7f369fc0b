package binding

// Errors raises exceptions through the binding.
type Errors interface {
	// Throw raises an Error with msg.
	Throw(msg string) error

	// ThrowKind raises an exception of the given kind.
	ThrowKind(kind ExceptionKind, msg string) error

	// CatchAndRethrow calls fn, then raises whatever exception it
	// raised with msg prepended.
	CatchAndRethrow(fn func() error, msg string) error
}

type errorsAPI struct {
	r *reference
}

func (e *errorsAPI) Throw(msg string) error {
	return e.r.raise(&Exception{Kind: KindError, Message: msg})
}

func (e *errorsAPI) ThrowKind(kind ExceptionKind, msg string) error {
	return e.r.raise(&Exception{Kind: kind, Message: msg})
}

func (e *errorsAPI) CatchAndRethrow(fn func() error, msg string) error {
	err := Catch(fn)
	if err == nil {
		return nil
	}
	caught, ok := err.(*Exception)
	if !ok {
		return err
	}
	return e.r.raise(&Exception{Kind: caught.Kind, Message: msg + caught.Message})
}
