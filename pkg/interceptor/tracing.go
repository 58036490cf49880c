package interceptor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ofiterev/ldapsdk-inmem/internal/tracing"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

const spanKey = "tracing.span"

// TracingInterceptor opens a span per operation and closes it with the
// operation's result code.
type TracingInterceptor struct {
	tracer *tracing.Tracer
}

func NewTracingInterceptor(tracer *tracing.Tracer) *TracingInterceptor {
	return &TracingInterceptor{tracer: tracer}
}

func (t *TracingInterceptor) Name() string { return "tracing" }

func (t *TracingInterceptor) PreOperation(ctx context.Context, op *Operation) error {
	_, span := t.tracer.Start(ctx, "ldap."+op.Kind().String(),
		trace.WithAttributes(
			attribute.Int64("ldap.conn", int64(op.Conn().ID)),
			attribute.Int("ldap.msgid", op.MessageID()),
			attribute.String("net.peer", op.Conn().RemoteAddr),
		),
	)
	op.Set(spanKey, span)
	return nil
}

func (t *TracingInterceptor) PostOperation(ctx context.Context, op *Operation) error {
	v, ok := op.Get(spanKey)
	if !ok {
		return nil
	}
	span := v.(trace.Span)
	res := op.Result()
	span.SetAttributes(attribute.String("ldap.result", res.Code.String()))
	if res.Code != ldap.ResultSuccess &&
		res.Code != ldap.ResultCompareTrue && res.Code != ldap.ResultCompareFalse &&
		res.Code != ldap.ResultSaslBindInProgress {
		span.SetStatus(codes.Error, res.Code.String())
	}
	span.End()
	return nil
}
