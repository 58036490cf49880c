package store

import (
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/matching"
)

// matchEntry evaluates a search filter against one entry under the store's
// schema. Approximate match is folded into equality.
func (s *Store) matchEntry(e *Entry, f *ldap.Filter) (bool, error) {
	switch f.Kind {
	case ldap.FilterAnd:
		for _, sub := range f.Subs {
			ok, err := s.matchEntry(e, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case ldap.FilterOr:
		for _, sub := range f.Subs {
			ok, err := s.matchEntry(e, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case ldap.FilterNot:
		ok, err := s.matchEntry(e, f.Subs[0])
		return !ok, err

	case ldap.FilterPresent:
		return e.HasAttribute(f.Attribute), nil

	case ldap.FilterEquality, ldap.FilterApproxMatch:
		rule := s.schema.Rule(f.Attribute)
		for _, stored := range e.Values(f.Attribute) {
			ok, err := matching.MatchAssertion(rule, stored, f.Value)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case ldap.FilterGreaterOrEqual, ldap.FilterLessOrEqual:
		rule := s.schema.Rule(f.Attribute)
		assertion, err := matching.NormalizeAssertion(rule, f.Value)
		if err != nil {
			return false, err
		}
		for _, stored := range e.Values(f.Attribute) {
			cmp, err := matching.CompareWith(rule, stored, assertion)
			if err != nil {
				return false, err
			}
			if f.Kind == ldap.FilterGreaterOrEqual && cmp >= 0 {
				return true, nil
			}
			if f.Kind == ldap.FilterLessOrEqual && cmp <= 0 {
				return true, nil
			}
		}
		return false, nil

	case ldap.FilterSubstrings:
		rule := s.schema.Rule(f.Attribute)
		for _, stored := range e.Values(f.Attribute) {
			ok, err := matching.SubstringsWith(rule, stored,
				f.Substrings.Initial, f.Substrings.Any, f.Substrings.Final)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, ldap.NewError(ldap.ResultProtocolError, "unsupported filter kind %d", f.Kind)
	}
}
