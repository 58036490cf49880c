package ber

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when the input holds fewer bytes than an
	// element's declared length. The caller can retry once more bytes have
	// arrived; the data seen so far is not malformed.
	ErrIncomplete = errors.New("ber: incomplete element")

	// ErrIndefiniteLength is returned when an element uses the
	// indefinite-length form, which this codec does not support.
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")
)

// DecodeError reports structurally malformed input. It is distinct from
// ErrIncomplete: malformed data cannot become valid by reading more bytes.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: decode error at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
