package ldap

import (
	"fmt"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

// Error is an operation failure carrying an LDAP result code. It is always
// recoverable: the server encodes it into the operation's result and the
// connection stays open.
type Error struct {
	Code      ResultCode
	MatchedDN string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an operation error with the given result code.
func NewError(code ResultCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Result returns the error rendered as an operation result.
func (e *Error) Result() *Result {
	return &Result{Code: e.Code, MatchedDN: e.MatchedDN, DiagnosticMessage: e.Message}
}

// ConfigurationError reports invalid wiring discovered at startup, such as
// registering an interceptor after serving began or binding a schema to an
// unknown matching rule. It is fatal and never sent on the wire.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// shapeError reports a structurally valid BER element that does not form a
// legal LDAP message or operation. It shares the *ber.DecodeError kind so
// callers have a single decode-failure taxonomy to handle.
func shapeError(format string, args ...interface{}) *ber.DecodeError {
	return &ber.DecodeError{Message: fmt.Sprintf(format, args...)}
}
