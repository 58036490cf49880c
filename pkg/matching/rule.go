// Package matching implements the matching-rule contract used to evaluate
// compare requests and search filters against stored attribute values.
// Rules are stateless singletons identified by name and OID.
package matching

import (
	"fmt"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// Rule is an equality matching rule.
//
// Normalize must be idempotent (normalize(normalize(x)) == normalize(x)),
// must never mutate its input, and rejects malformed values with a
// *SyntaxError wrapped in an invalidAttributeSyntax ldap.Error.
type Rule interface {
	Name() string
	OID() string
	Normalize(value []byte) ([]byte, error)
	ValuesMatch(a, b []byte) (bool, error)
}

// OrderingRule additionally defines a strict total order over normalized
// values, consistent with ValuesMatch: CompareValues(a,b)==0 exactly when
// ValuesMatch(a,b).
type OrderingRule interface {
	Rule
	CompareValues(a, b []byte) (int, error)
}

// SubstringRule additionally matches substring assertions. Rules that do
// not support substring matching are simply not SubstringRules; asking the
// engine anyway yields an inappropriateMatching error, never a syntax error.
type SubstringRule interface {
	Rule
	MatchesSubstring(value, initial []byte, any [][]byte, final []byte) (bool, error)
}

// AssertionNormalizer is implemented by rules that accept assertion values
// in a more permissive form than the stored canonical one. Integer matching
// uses this to forgive leading zeros in a compare or filter assertion while
// still rejecting them in stored values.
type AssertionNormalizer interface {
	NormalizeAssertion(value []byte) ([]byte, error)
}

// NormalizeAssertion canonicalizes an assertion value, using the rule's
// permissive path when it has one.
func NormalizeAssertion(rule Rule, value []byte) ([]byte, error) {
	if an, ok := rule.(AssertionNormalizer); ok {
		return an.NormalizeAssertion(value)
	}
	return rule.Normalize(value)
}

// MatchAssertion tests an assertion value from the wire against a stored
// value. The stored value is held to the strict syntax; the assertion gets
// the permissive path.
func MatchAssertion(rule Rule, stored, assertion []byte) (bool, error) {
	na, err := NormalizeAssertion(rule, assertion)
	if err != nil {
		return false, err
	}
	return rule.ValuesMatch(stored, na)
}

// SyntaxError describes a malformed attribute value, with the offending
// position for diagnostics.
type SyntaxError struct {
	Position int
	Message  string
}

func (e *SyntaxError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s (at position %d)", e.Message, e.Position)
	}
	return e.Message
}

// syntaxError wraps a *SyntaxError into the operation-error taxonomy.
func syntaxError(pos int, format string, args ...interface{}) error {
	se := &SyntaxError{Position: pos, Message: fmt.Sprintf(format, args...)}
	return &ldap.Error{Code: ldap.ResultInvalidAttributeSyntax, Message: se.Error(), Err: se}
}

// errInappropriate reports an assertion type the rule does not define.
func errInappropriate(rule, what string) error {
	return ldap.NewError(ldap.ResultInappropriateMatching,
		"%s does not support %s matching", rule, what)
}

// CompareWith orders a and b under rule, failing with inappropriateMatching
// when the rule defines no ordering.
func CompareWith(rule Rule, a, b []byte) (int, error) {
	ord, ok := rule.(OrderingRule)
	if !ok {
		return 0, errInappropriate(rule.Name(), "ordering")
	}
	return ord.CompareValues(a, b)
}

// SubstringsWith evaluates a substring assertion under rule, failing with
// inappropriateMatching when the rule defines none.
func SubstringsWith(rule Rule, value, initial []byte, any [][]byte, final []byte) (bool, error) {
	sub, ok := rule.(SubstringRule)
	if !ok {
		return false, errInappropriate(rule.Name(), "substring")
	}
	return sub.MatchesSubstring(value, initial, any, final)
}
