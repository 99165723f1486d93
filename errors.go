package prerotate

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies a failure by how the renderer reacts to it.
type Kind uint8

const (
	// KindFatal is an unrecoverable GPU or runtime failure: out of memory,
	// device lost, no usable memory type.
	KindFatal Kind = iota
	// KindRecoverable is an expected presentation condition such as an
	// out-of-date or suboptimal surface. It is handled inside the frame loop.
	KindRecoverable
	// KindConfig means the environment cannot run the pipeline at all:
	// no suitable adapter, a missing extension or a bad configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRecoverable:
		return "recoverable"
	case KindConfig:
		return "config"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var (
	ErrNoAdapter        = errors.New("no suitable physical device")
	ErrIncompleteQueues = errors.New("graphics and present queue families not resolved")
	ErrMissingExtension = errors.New("required device extension missing")
	ErrNoMemoryType     = errors.New("no compatible memory type")
	ErrShaderNotFound   = errors.New("shader binary not found")
	ErrStaleToken       = errors.New("stale ownership token")
	ErrSlotBusy         = errors.New("slot already checked out")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Error is a classified renderer failure. Op names the operation that
// failed; Result is the Vulkan result code when one was involved.
type Error struct {
	Kind   Kind
	Op     string
	Result vk.Result
	Err    error
}

func (e *Error) Error() string {
	if e.Result != vk.Success {
		return fmt.Sprintf("%s: %v (vk result %d)", e.Op, e.Err, e.Result)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause from pkg/errors see through the classification.
func (e *Error) Cause() error { return e.Err }

// NewError converts a Vulkan result into a fatal error. VK_SUCCESS is nil.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &Error{Kind: KindFatal, Op: "vulkan", Result: ret, Err: vkErr(ret)}
}

// vkErr never returns nil: positive codes such as VK_SUBOPTIMAL_KHR are
// not errors to vk.Error but are unexpected wherever this is called.
func vkErr(ret vk.Result) error {
	if err := vk.Error(ret); err != nil {
		return errors.WithStack(err)
	}
	return errors.Errorf("unexpected vulkan result %d", ret)
}

// wrapOp prefixes err with op, keeping the kind of an inner *Error.
func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, Result: e.Result, Err: err}
	}
	return &Error{Kind: KindFatal, Op: op, Err: errors.WithStack(err)}
}

func configError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: errors.WithStack(err)}
}

func resultError(op string, ret vk.Result) error {
	return &Error{Kind: KindFatal, Op: op, Result: ret, Err: vkErr(ret)}
}

// KindOf reports the classification of err. Unclassified errors are fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// Fatal terminates the process when err is non-nil, after running the
// finalizers in order. It is meant for hosts; the library only returns errors.
func Fatal(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	Logger().Error("fatal", "kind", KindOf(err).String(), "err", fmt.Sprintf("%+v", err))
	os.Exit(1)
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// checkErr turns a panic raised through orPanic back into an error.
func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = errors.Errorf("%+v", v)
	}
}
