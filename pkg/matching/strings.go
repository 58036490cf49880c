package matching

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// caseStringRule backs caseIgnoreMatch and caseExactMatch. Normalization
// trims surrounding whitespace, collapses internal runs of spaces to one,
// and folds case for the ignore variant.
type caseStringRule struct {
	name     string
	oid      string
	foldCase bool
}

// CaseIgnoreRule is caseIgnoreMatch (2.5.13.2) with ordering and substrings.
var CaseIgnoreRule = caseStringRule{name: "caseIgnoreMatch", oid: "2.5.13.2", foldCase: true}

// CaseExactRule is caseExactMatch (2.5.13.5) with ordering and substrings.
var CaseExactRule = caseStringRule{name: "caseExactMatch", oid: "2.5.13.5"}

func (r caseStringRule) Name() string { return r.name }
func (r caseStringRule) OID() string  { return r.oid }

func (r caseStringRule) Normalize(value []byte) ([]byte, error) {
	if !utf8.Valid(value) {
		return nil, syntaxError(invalidUTF8At(value), "value is not valid UTF-8")
	}
	s := strings.TrimSpace(string(value))
	s = strings.Join(strings.Fields(s), " ")
	if r.foldCase {
		s = strings.ToLower(s)
	}
	return []byte(s), nil
}

func (r caseStringRule) ValuesMatch(a, b []byte) (bool, error) {
	na, err := r.Normalize(a)
	if err != nil {
		return false, err
	}
	nb, err := r.Normalize(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(na, nb), nil
}

func (r caseStringRule) CompareValues(a, b []byte) (int, error) {
	na, err := r.Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := r.Normalize(b)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(na, nb), nil
}

func (r caseStringRule) MatchesSubstring(value, initial []byte, any [][]byte, final []byte) (bool, error) {
	return substringWithNormalize(r, value, initial, any, final)
}

func invalidUTF8At(value []byte) int {
	for i := 0; i < len(value); {
		r, size := utf8.DecodeRune(value[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
