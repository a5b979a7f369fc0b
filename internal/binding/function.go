package binding

// Func is a callback passed into the binding. recv is the receiver the
// binding calls it with, or nil.
type Func func(recv any, args ...any) any

// Object is a property bag produced or filled in by callbacks.
type Object map[string]any

// callbackData is the data pointer attached to the *WithData callbacks.
const callbackData = 1

// Functions calls back into test code.
type Functions interface {
	// CallWithArgs calls fn with a nil receiver.
	CallWithArgs(fn Func, args ...any) any

	// CallWithReceiver calls fn with recv as its receiver.
	CallWithReceiver(fn Func, recv any, args ...any) any

	VoidCallback(obj Object)
	ValueCallback() Object
	VoidCallbackWithData(obj Object)
	ValueCallbackWithData() Object
}

type functions struct{}

func (functions) CallWithArgs(fn Func, args ...any) any {
	return fn(nil, args...)
}

func (functions) CallWithReceiver(fn Func, recv any, args ...any) any {
	return fn(recv, args...)
}

func (functions) VoidCallback(obj Object) {
	obj["foo"] = "bar"
}

func (functions) ValueCallback() Object {
	return Object{"foo": "bar"}
}

func (functions) VoidCallbackWithData(obj Object) {
	obj["foo"] = "bar"
	obj["data"] = callbackData
}

func (functions) ValueCallbackWithData() Object {
	return Object{"foo": "bar", "data": callbackData}
}
