package errors

import (
	stderrors "errors"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Detail returns a zap field with the code, context and suggestions of the
// first coded error in the chain of err. Plain errors yield a skipped field.
func Detail(err error) zap.Field {
	var e *Error
	if !stderrors.As(err, &e) {
		return zap.Skip()
	}
	return zap.Object("detail", e)
}

// MarshalLogObject implements zapcore.ObjectMarshaler
func (e *Error) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("code", e.Code.String())
	if e.Pos.IsValid() {
		enc.AddString("position", e.Pos.String())
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := enc.AddReflected(k, e.Fields[k]); err != nil {
			return err
		}
	}
	if len(e.Hints) > 0 {
		return enc.AddArray("suggestions", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
			for _, h := range e.Hints {
				arr.AppendString(h)
			}
			return nil
		}))
	}
	return nil
}
