package interceptor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// Executor computes an operation's result, normally by invoking the entry
// store. It runs only when no pre hook supplied an early result.
type Executor func(ctx context.Context, op *Operation) *ldap.Result

// Chain holds the ordered interceptor list. Registration is append-only
// until Freeze; afterwards the list is shared read-only across connections,
// so processing needs no locking.
type Chain struct {
	log          zerolog.Logger
	interceptors []Interceptor
	frozen       atomic.Bool
}

// NewChain returns an empty chain logging through logger.
func NewChain(logger *zerolog.Logger) *Chain {
	return &Chain{log: logger.With().Str("component", "interceptor").Logger()}
}

// Register appends interceptors in invocation order. Registering after the
// server started serving is a configuration error.
func (c *Chain) Register(ics ...Interceptor) error {
	if c.frozen.Load() {
		return &ldap.ConfigurationError{
			Message: "interceptor registration after server start",
		}
	}
	c.interceptors = append(c.interceptors, ics...)
	return nil
}

// Freeze marks the chain read-only. Called once when serving begins.
func (c *Chain) Freeze() {
	c.frozen.Store(true)
}

// Run processes one operation through the chain: pre hooks in registration
// order, the executor unless a pre hook short-circuited, then post hooks in
// the same registration order. The returned result is never nil.
func (c *Chain) Run(ctx context.Context, op *Operation, exec Executor) *ldap.Result {
	op.chain = c

	for _, i := range c.interceptors {
		if err := c.runPre(ctx, i, op); err != nil {
			op.SetResult(failureResult(err))
			break
		}
	}

	if op.Result() == nil {
		op.SetResult(exec(ctx, op))
	}
	if op.Result() == nil {
		op.SetResult(&ldap.Result{
			Code:              ldap.ResultOperationsError,
			DiagnosticMessage: "executor produced no result",
		})
	}

	for _, i := range c.interceptors {
		c.runPost(ctx, i, op)
	}
	return op.Result()
}

// ObserveSearchEntry fans a streamed search entry out to every registered
// observer.
func (c *Chain) ObserveSearchEntry(op *Operation, entry *ldap.SearchResultEntry) {
	for _, i := range c.interceptors {
		if obs, ok := i.(SearchEntryObserver); ok {
			obs.ObserveSearchEntry(op, entry)
		}
	}
}

func (c *Chain) observeIntermediate(op *Operation, resp *ldap.IntermediateResponse) {
	for _, i := range c.interceptors {
		if obs, ok := i.(IntermediateObserver); ok {
			obs.ObserveIntermediate(op, resp)
		}
	}
}

func (c *Chain) runPre(ctx context.Context, i Interceptor, op *Operation) error {
	if pre, ok := i.(OperationPre); ok {
		if err := pre.PreOperation(ctx, op); err != nil {
			return err
		}
	}
	switch op.Kind() {
	case KindBind:
		if pre, ok := i.(BindPre); ok {
			return pre.PreBind(ctx, op)
		}
	case KindSearch:
		if pre, ok := i.(SearchPre); ok {
			return pre.PreSearch(ctx, op)
		}
	case KindModify:
		if pre, ok := i.(ModifyPre); ok {
			return pre.PreModify(ctx, op)
		}
	case KindAdd:
		if pre, ok := i.(AddPre); ok {
			return pre.PreAdd(ctx, op)
		}
	case KindDelete:
		if pre, ok := i.(DeletePre); ok {
			return pre.PreDelete(ctx, op)
		}
	case KindModifyDN:
		if pre, ok := i.(ModifyDNPre); ok {
			return pre.PreModifyDN(ctx, op)
		}
	case KindCompare:
		if pre, ok := i.(ComparePre); ok {
			return pre.PreCompare(ctx, op)
		}
	case KindExtended:
		if pre, ok := i.(ExtendedPre); ok {
			return pre.PreExtended(ctx, op)
		}
	}
	return nil
}

// runPost invokes a post hook and swallows anything escaping it: the
// already-computed result must never be masked.
func (c *Chain) runPost(ctx context.Context, i Interceptor, op *Operation) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("interceptor", i.Name()).
				Str("operation", op.Kind().String()).
				Interface("panic", r).
				Msg("post hook panicked; suppressed")
		}
	}()

	var err error
	if post, ok := i.(OperationPost); ok {
		err = post.PostOperation(ctx, op)
	}
	if err == nil {
		err = c.runKindPost(ctx, i, op)
	}
	if err != nil {
		c.log.Error().
			Err(err).
			Str("interceptor", i.Name()).
			Str("operation", op.Kind().String()).
			Msg("post hook failed; suppressed")
	}
}

func (c *Chain) runKindPost(ctx context.Context, i Interceptor, op *Operation) error {
	switch op.Kind() {
	case KindBind:
		if post, ok := i.(BindPost); ok {
			return post.PostBind(ctx, op)
		}
	case KindSearch:
		if post, ok := i.(SearchPost); ok {
			return post.PostSearch(ctx, op)
		}
	case KindModify:
		if post, ok := i.(ModifyPost); ok {
			return post.PostModify(ctx, op)
		}
	case KindAdd:
		if post, ok := i.(AddPost); ok {
			return post.PostAdd(ctx, op)
		}
	case KindDelete:
		if post, ok := i.(DeletePost); ok {
			return post.PostDelete(ctx, op)
		}
	case KindModifyDN:
		if post, ok := i.(ModifyDNPost); ok {
			return post.PostModifyDN(ctx, op)
		}
	case KindCompare:
		if post, ok := i.(ComparePost); ok {
			return post.PostCompare(ctx, op)
		}
	case KindExtended:
		if post, ok := i.(ExtendedPost); ok {
			return post.PostExtended(ctx, op)
		}
	}
	return nil
}

// failureResult folds a pre hook failure into the operation's result.
func failureResult(err error) *ldap.Result {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return lerr.Result()
	}
	return &ldap.Result{
		Code:              ldap.ResultOperationsError,
		DiagnosticMessage: fmt.Sprintf("interceptor rejected operation: %v", err),
	}
}
