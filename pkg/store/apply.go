package store

import (
	"context"
	"errors"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// Apply dispatches a mutating or compare operation and folds its outcome
// into an LDAPResult. Unknown operation types report unwillingToPerform.
func (s *Store) Apply(ctx context.Context, op ldap.Op) *ldap.Result {
	switch req := op.(type) {
	case *ldap.AddRequest:
		return toResult(s.Add(ctx, req))
	case *ldap.DelRequest:
		return toResult(s.Delete(ctx, req.DN))
	case *ldap.ModifyRequest:
		return toResult(s.Modify(ctx, req))
	case *ldap.ModifyDNRequest:
		return toResult(s.ModifyDN(ctx, req))
	case *ldap.CompareRequest:
		ok, err := s.Compare(ctx, req.DN, req.Attribute, req.Value)
		if err != nil {
			return toResult(err)
		}
		if ok {
			return &ldap.Result{Code: ldap.ResultCompareTrue}
		}
		return &ldap.Result{Code: ldap.ResultCompareFalse}
	default:
		return &ldap.Result{
			Code:              ldap.ResultUnwillingToPerform,
			DiagnosticMessage: "operation not supported by the entry store",
		}
	}
}

// toResult converts a store error into an LDAPResult, preserving result
// code, matchedDN and diagnostics for recoverable operation errors.
func toResult(err error) *ldap.Result {
	if err == nil {
		return &ldap.Result{Code: ldap.ResultSuccess}
	}
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return lerr.Result()
	}
	return &ldap.Result{Code: ldap.ResultOther, DiagnosticMessage: err.Error()}
}
