// Package errors provides error annotation on top of the standard library errors.
//
// Errors created with NewSentinel or Wrap remember the call site where they were
// created and can carry [slog.Attr] annotations. SlogError turns any error into
// a structured attribute suitable for slog logging.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// annotatedError is an error with a message, optional wrapped error,
// slog annotations, and the source location where it was created.
type annotatedError struct {
	msg    string
	err    error
	attrs  []slog.Attr
	source string
}

// Error implements the error interface.
func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap returns the wrapped error which may be nil.
func (e *annotatedError) Unwrap() error {
	return e.err
}

// NewSentinel creates a sentinel error that remembers its creation site.
//
// Use it for package-level error values that are compared with [Is].
func NewSentinel(msg string) error {
	return &annotatedError{
		msg:    msg,
		err:    nil,
		attrs:  nil,
		source: callerSource(),
	}
}

// Wrap annotates err with a message and optional [slog.Attr] annotations.
//
// The returned error unwraps to err so [Is] and [As] see through the wrapping.
// A nil err is tolerated and produces an error with just the message.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		msg:    msg,
		err:    err,
		attrs:  attrs,
		source: callerSource(),
	}
}

// SlogError converts err into a [slog.Attr] grouped under "error" containing the
// error message, the source location of the closest annotated error, and all
// annotations collected from the error tree under "error.annotations".
//
// It tolerates nil and joined errors.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error", slog.String("message", "<nil>"))
	}

	attrs := collectAnnotations(err)

	groupAttrs := []slog.Attr{
		slog.String("message", err.Error()),
	}
	if source := findSource(err); source != "" {
		groupAttrs = append(groupAttrs, slog.String("source", source))
	}
	if len(attrs) > 0 {
		groupAttrs = append(groupAttrs, slog.Attr{
			Key:   "annotations",
			Value: slog.GroupValue(attrs...),
		})
	}

	return slog.Attr{Key: "error", Value: slog.GroupValue(groupAttrs...)}
}

// DecoratePanic converts a recovered panic value into an annotated error whose
// source points to the statement that panicked.
func DecoratePanic(recovered any) error {
	return &annotatedError{
		msg:    fmt.Sprintf("panic: %v", recovered),
		err:    nil,
		attrs:  nil,
		source: panicSource(),
	}
}

// collectAnnotations walks the error tree and gathers all annotations.
func collectAnnotations(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	var attrs []slog.Attr
	var annotated *annotatedError
	if errors.As(err, &annotated) {
		// As finds the first annotated error, but the chain below it may carry
		// more annotations, so we keep walking from there.
		attrs = append(attrs, annotated.attrs...)
		attrs = append(attrs, collectAnnotations(annotated.err)...)
		return attrs
	}

	switch unwrapped := err.(type) { //nolint:errorlint // we walk the tree manually.
	case interface{ Unwrap() error }:
		return collectAnnotations(unwrapped.Unwrap())
	case interface{ Unwrap() []error }:
		for _, joined := range unwrapped.Unwrap() {
			attrs = append(attrs, collectAnnotations(joined)...)
		}
		return attrs
	default:
		return nil
	}
}

// findSource returns the source of the first annotated error in the tree.
func findSource(err error) string {
	var annotated *annotatedError
	if errors.As(err, &annotated) {
		return annotated.source
	}
	return ""
}

const maxStackDepth = 32

// callerSource returns the "file.go:line" of the first caller outside this file.
func callerSource() string {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and callerSource.
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isOwnFrame(frame) {
			return formatFrame(frame)
		}
		if !more {
			return ""
		}
	}
}

// panicSource returns the "file.go:line" of the statement that panicked by
// finding the frame that follows the runtime panic machinery.
func panicSource() string {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and panicSource.
	frames := runtime.CallersFrames(pcs[:n])
	var (
		seenPanic bool
		fallback  string
	)
	for {
		frame, more := frames.Next()
		isRuntime := strings.HasPrefix(frame.Function, "runtime.")
		if seenPanic && !isRuntime && !isOwnFrame(frame) {
			return formatFrame(frame)
		}
		if isRuntime && strings.Contains(frame.Function, "panic") {
			seenPanic = true
		}
		if fallback == "" && !isRuntime && !isOwnFrame(frame) {
			fallback = formatFrame(frame)
		}
		if !more {
			return fallback
		}
	}
}

func isOwnFrame(frame runtime.Frame) bool {
	return strings.HasSuffix(frame.File, "annotatederror.go")
}

func formatFrame(frame runtime.Frame) string {
	file := frame.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, frame.Line)
}

// New returns an error that formats as the given text. See [errors.New].
func New(text string) error {
	return errors.New(text) //nolint:err113 // re-export for callers of this package.
}

// Unwrap re-exports [errors.Unwrap].
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is re-exports [errors.Is].
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports [errors.As].
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join re-exports [errors.Join].
func Join(errs ...error) error {
	return errors.Join(errs...)
}
