// Package store provides the in-memory entry store the protocol engine
// operates against. Entries are kept under their normalized DN; mutating
// operations are serialized and atomic, reads run concurrently.
package store

import (
	"strings"

	"github.com/jinzhu/copier"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/matching"
)

// Entry is one directory entry. Attribute order is preserved as written.
type Entry struct {
	DN         string
	Attributes []ldap.Attribute
}

// Clone deep-copies the entry so callers never alias stored state.
func (e *Entry) Clone() *Entry {
	out := &Entry{}
	if err := copier.CopyWithOption(out, e, copier.Option{DeepCopy: true}); err != nil {
		// Entry contains nothing copier can fail on.
		panic(err)
	}
	return out
}

// Values returns the values of the named attribute, nil when absent. The
// lookup is case-insensitive per attribute description rules.
func (e *Entry) Values(attr string) [][]byte {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Type, attr) {
			return a.Values
		}
	}
	return nil
}

// HasAttribute reports whether the entry carries the named attribute.
func (e *Entry) HasAttribute(attr string) bool {
	return e.Values(attr) != nil
}

// Schema binds attribute descriptions (lowercased) to matching rules.
// Unbound attributes fall back to caseIgnoreMatch.
type Schema map[string]matching.Rule

// DefaultSchema covers the attributes the engine is commonly exercised with.
func DefaultSchema() Schema {
	return Schema{
		"employeenumber":  matching.IntegerRule{},
		"uidnumber":       matching.IntegerRule{},
		"gidnumber":       matching.IntegerRule{},
		"userpassword":    matching.OctetStringRule{},
		"member":          matching.DistinguishedNameRule{},
		"manager":         matching.DistinguishedNameRule{},
		"telephonenumber": matching.TelephoneNumberRule{},
	}
}

// Rule resolves the matching rule for an attribute description.
func (s Schema) Rule(attr string) matching.Rule {
	if r, ok := s[strings.ToLower(attr)]; ok {
		return r
	}
	return matching.CaseIgnoreRule
}
