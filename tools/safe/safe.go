package safe

import (
	"fmt"
	"reflect"

	"PPSocket/logger"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// DefaultString returns s, or the fallback if s is empty.
func DefaultString(s string, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Go starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
// onPanic (optional) runs after the panic has been logged.
func Go(f func(), onPanic ...func(r any)) {
	go func() {
		defer Recover("goroutine", onPanic...)
		f()
	}()
}

// Recover must be deferred directly.
func Recover(where string, onPanic ...func(r any)) {
	if r := recover(); r != nil {
		logger.L().Error("[safe] panic recovered",
			zap.String("where", where),
			zap.Any("panic", r),
			zap.Stack("stack"))
		for _, fn := range onPanic {
			if fn != nil {
				fn(r)
			}
		}
	}
}
