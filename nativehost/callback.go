package nativehost

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/interop"
)

// NewCallback returns a native function pointer that calls fn, for use as
// an internal call implementation. fn's parameters must be integers,
// floats, bools or pointers and it may return at most one such value.
// The pointer is never freed; the process supports a limited number of
// callbacks.
func NewCallback(fn any) uintptr {
	return purego.NewCallback(fn)
}

// NewExceptionCallback returns a native function pointer suitable for
// bridge.Host.SetExceptionCallback. The runtime passes the exception text
// encoded in cs; handle receives it decoded. A nil handle logs the text at
// error level.
func NewExceptionCallback(cs interop.CharSet, handle func(message string)) uintptr {
	if handle == nil {
		handle = func(message string) {
			Logger().Error("unhandled managed exception", zap.String("message", message))
		}
	}
	return purego.NewCallback(func(msg uintptr) uintptr {
		handle(decodeMessage(cs, msg))
		return 0
	})
}

func decodeMessage(cs interop.CharSet, msg uintptr) string {
	if msg == 0 {
		return ""
	}
	p := (*byte)(unsafe.Pointer(msg))
	s, err := cs.Decode(p)
	if err != nil {
		Logger().Warn("undecodable exception message", zap.Error(err))
		return string(cs.Bytes(p))
	}
	return s
}
