package loader

// FromSymbol exposes fromSymbol for external tests.
func FromSymbol[B any](sym any, name string) (B, error) {
	return fromSymbol[B](sym, name)
}
