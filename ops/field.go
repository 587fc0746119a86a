package ops

import (
	"context"
	"errors"

	jsp "github.com/buger/jsonparser"
	"github.com/spf13/cast"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

var errUnsupportedFieldType = errors.New("ops.Field: unsupported key type")

// Field extracts a named field from a jsontext-style JSON record (raw
// []byte per item) and casts it to T, for feeding sortmerge/reduce
// operators a typed key without requiring every upstream to already
// carry one. Field values are matched loosely: a JSON number read as a
// string key, a JSON string read as an int64 key, and so on all coerce
// via github.com/spf13/cast instead of failing, since JSON records from
// mixed sources rarely agree on field types.
type Field[T any] struct {
	base *pipe.Base
	in   pipe.Sync[[]byte]
	path []string
	la   *pipe.Lookahead[T]
}

// NewField builds a Field reading the dotted path (e.g. "user", "id")
// out of each upstream JSON record.
func NewField[T any](in pipe.Sync[[]byte], path ...string) *Field[T] {
	f := &Field[T]{base: pipe.NewBase(nil), in: in, path: path}
	f.la = pipe.NewLookahead(f.produce)
	return f
}

func (f *Field[T]) Start(ctx context.Context) error {
	if err := f.base.Start(); err != nil {
		return err
	}
	return f.in.Start(ctx)
}

func (f *Field[T]) produce() (out T, ok bool, err error) {
	item, ok, err := f.in.Next()
	if err != nil {
		f.base.MarkError()
		return out, false, err
	}
	if !ok {
		f.base.MarkDone()
		return out, false, nil
	}

	raw, dataType, _, gerr := jsp.Get(item, f.path...)
	if gerr != nil {
		f.base.MarkError()
		return out, false, pipeerr.New(pipeerr.KindValidation, "ops.Field", gerr)
	}

	key, cerr := coerce[T](raw, dataType)
	if cerr != nil {
		f.base.MarkError()
		return out, false, pipeerr.New(pipeerr.KindValidation, "ops.Field", cerr)
	}
	return key, true, nil
}

func coerce[T any](raw []byte, dataType jsp.ValueType) (T, error) {
	var zero T
	var v any
	switch dataType {
	case jsp.String:
		s, err := jsp.ParseString(raw)
		if err != nil {
			return zero, err
		}
		v = s
	case jsp.Number:
		v = string(raw)
	case jsp.Boolean:
		b, err := jsp.ParseBoolean(raw)
		if err != nil {
			return zero, err
		}
		v = b
	default:
		v = string(raw)
	}

	switch any(zero).(type) {
	case string:
		s, err := cast.ToStringE(v)
		return any(s).(T), err
	case int:
		n, err := cast.ToIntE(v)
		return any(n).(T), err
	case int64:
		n, err := cast.ToInt64E(v)
		return any(n).(T), err
	case uint64:
		n, err := cast.ToUint64E(v)
		return any(n).(T), err
	case float64:
		n, err := cast.ToFloat64E(v)
		return any(n).(T), err
	case bool:
		b, err := cast.ToBoolE(v)
		return any(b).(T), err
	default:
		return zero, pipeerr.New(pipeerr.KindValidation, "ops.coerce", errUnsupportedFieldType)
	}
}

func (f *Field[T]) Next() (T, bool, error) { return f.la.Next() }
func (f *Field[T]) Peek() (T, bool, error) { return f.la.Peek() }
func (f *Field[T]) Progress() float64      { return f.in.Progress() }
func (f *Field[T]) Close() error           { return f.base.Close(f.in.Close) }

var _ pipe.Sync[int64] = (*Field[int64])(nil)
