package matching

import (
	"fmt"
	"strings"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// rules indexes every registered rule by lowercased name and by OID. Built
// once at init and read-only afterwards, so lookups need no locking.
var rules = map[string]Rule{}

func register(r Rule, aliases ...string) {
	rules[strings.ToLower(r.Name())] = r
	rules[r.OID()] = r
	for _, a := range aliases {
		rules[strings.ToLower(a)] = r
	}
}

func init() {
	register(IntegerRule{}, "integerOrderingMatch", "2.5.13.15")
	register(CaseIgnoreRule,
		"caseIgnoreOrderingMatch", "2.5.13.3",
		"caseIgnoreSubstringsMatch", "2.5.13.4")
	register(CaseExactRule,
		"caseExactOrderingMatch", "2.5.13.6",
		"caseExactSubstringsMatch", "2.5.13.7")
	register(OctetStringRule{}, "octetStringOrderingMatch", "2.5.13.18")
	register(BooleanRule{})
	register(DistinguishedNameRule{})
	register(NumericStringRule{}, "numericStringSubstringsMatch", "2.5.13.10")
	register(TelephoneNumberRule{}, "telephoneNumberSubstringsMatch", "2.5.13.21")
}

// Lookup resolves a matching rule by name (case-insensitive) or OID. An
// unknown rule is a configuration error at schema-load time, not a
// per-operation error.
func Lookup(nameOrOID string) (Rule, error) {
	r, ok := rules[strings.ToLower(nameOrOID)]
	if !ok {
		return nil, &ldap.ConfigurationError{
			Message: fmt.Sprintf("unknown matching rule %q", nameOrOID),
		}
	}
	return r, nil
}

// MustLookup is Lookup for rules known at compile time, such as schema
// defaults.
func MustLookup(nameOrOID string) Rule {
	r, err := Lookup(nameOrOID)
	if err != nil {
		panic(err)
	}
	return r
}
