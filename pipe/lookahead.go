package pipe

// Lookahead turns a bare "produce the next item" function into the
// Next/Peek pair every Sync pipe must expose, by caching one item ahead.
// Concrete source/operator pipes embed a Lookahead instead of
// hand-rolling the same one-item buffer repeatedly.
type Lookahead[T any] struct {
	produce func() (T, bool, error)

	buffered bool
	item     T
	ok       bool
	err      error
}

// NewLookahead wraps produce, which must itself handle end-of-stream by
// returning ok=false and err=nil, and must keep doing so once exhausted.
func NewLookahead[T any](produce func() (T, bool, error)) *Lookahead[T] {
	return &Lookahead[T]{produce: produce}
}

func (l *Lookahead[T]) Next() (T, bool, error) {
	if l.buffered {
		l.buffered = false
		return l.item, l.ok, l.err
	}
	return l.produce()
}

func (l *Lookahead[T]) Peek() (T, bool, error) {
	if !l.buffered {
		l.item, l.ok, l.err = l.produce()
		l.buffered = true
	}
	return l.item, l.ok, l.err
}
