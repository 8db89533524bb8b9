package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ivlev/sketch2video/internal/video"
)

// Kind classifies an export failure for callers that map it to a status.
type Kind string

const (
	KindInvalidSettings    Kind = "invalid_settings"
	KindEncoderUnavailable Kind = "encoder_unavailable"
	KindEncodingFailed     Kind = "encoding_failed"
	KindEncodingTimeout    Kind = "encoding_timeout"
	KindRenderFailed       Kind = "render_failed"
	KindIO                 Kind = "io"
	KindCanceled           Kind = "canceled"
)

// Error is returned by every failed export stage.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// encodeKind maps an encoder failure onto a kind.
func encodeKind(err error) Kind {
	switch {
	case errors.Is(err, video.ErrEncoderUnavailable):
		return KindEncoderUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindEncodingTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindEncodingFailed
	}
}
