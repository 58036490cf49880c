package interceptor

import (
	"context"

	"github.com/rs/zerolog"
)

// AccessLogger logs one line per completed operation.
type AccessLogger struct {
	log zerolog.Logger
}

func NewAccessLogger(logger *zerolog.Logger) *AccessLogger {
	return &AccessLogger{log: logger.With().Str("component", "access").Logger()}
}

func (a *AccessLogger) Name() string { return "accesslog" }

func (a *AccessLogger) PostOperation(ctx context.Context, op *Operation) error {
	res := op.Result()
	ev := a.log.Info().
		Uint64("conn", op.Conn().ID).
		Str("src", op.Conn().RemoteAddr).
		Int("msgid", op.MessageID()).
		Str("operation", op.Kind().String()).
		Str("result", res.Code.String())
	if op.Conn().BoundDN != "" {
		ev = ev.Str("binddn", op.Conn().BoundDN)
	}
	if res.DiagnosticMessage != "" {
		ev = ev.Str("diagnostic", res.DiagnosticMessage)
	}
	if req, ok := op.SearchRequest(); ok {
		ev = ev.Str("basedn", req.BaseDN).Str("filter", req.Filter.String())
	}
	ev.Msg("operation completed")
	return nil
}
