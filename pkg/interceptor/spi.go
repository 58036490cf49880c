package interceptor

import (
	"context"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// Interceptor is the marker every registered hook implementation carries.
// Capability interfaces below are discovered by type assertion; an
// interceptor implements only the hooks it cares about.
type Interceptor interface {
	Name() string
}

// Per-operation pre hooks. A pre hook may replace the request, set an early
// result (the store is then skipped), or return an error, which aborts the
// remaining pre hooks and becomes the operation's result.

type BindPre interface {
	PreBind(ctx context.Context, op *Operation) error
}

type SearchPre interface {
	PreSearch(ctx context.Context, op *Operation) error
}

type ModifyPre interface {
	PreModify(ctx context.Context, op *Operation) error
}

type AddPre interface {
	PreAdd(ctx context.Context, op *Operation) error
}

type DeletePre interface {
	PreDelete(ctx context.Context, op *Operation) error
}

type ModifyDNPre interface {
	PreModifyDN(ctx context.Context, op *Operation) error
}

type ComparePre interface {
	PreCompare(ctx context.Context, op *Operation) error
}

type ExtendedPre interface {
	PreExtended(ctx context.Context, op *Operation) error
}

// Per-operation post hooks, invoked in registration order after the result
// is known. Errors and panics escaping a post hook are logged and
// suppressed; they never change the result.

type BindPost interface {
	PostBind(ctx context.Context, op *Operation) error
}

type SearchPost interface {
	PostSearch(ctx context.Context, op *Operation) error
}

type ModifyPost interface {
	PostModify(ctx context.Context, op *Operation) error
}

type AddPost interface {
	PostAdd(ctx context.Context, op *Operation) error
}

type DeletePost interface {
	PostDelete(ctx context.Context, op *Operation) error
}

type ModifyDNPost interface {
	PostModifyDN(ctx context.Context, op *Operation) error
}

type ComparePost interface {
	PostCompare(ctx context.Context, op *Operation) error
}

type ExtendedPost interface {
	PostExtended(ctx context.Context, op *Operation) error
}

// OperationPre and OperationPost run for every operation kind, before the
// kind-specific hook of the same interceptor. Cross-cutting interceptors
// (logging, metrics, tracing) implement these instead of all sixteen
// kind-specific interfaces.

type OperationPre interface {
	PreOperation(ctx context.Context, op *Operation) error
}

type OperationPost interface {
	PostOperation(ctx context.Context, op *Operation) error
}

// SearchEntryObserver sees every entry a search streams to the client,
// after the search pre hooks accepted the request.
type SearchEntryObserver interface {
	ObserveSearchEntry(op *Operation, entry *ldap.SearchResultEntry)
}

// IntermediateObserver sees every intermediate response synthesized during
// the operation, before it is sent to the client.
type IntermediateObserver interface {
	ObserveIntermediate(op *Operation, resp *ldap.IntermediateResponse)
}
