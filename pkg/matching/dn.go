package matching

import (
	"bytes"
	"strings"
)

// DistinguishedNameRule implements distinguishedNameMatch. Normalization
// splits the DN into RDN components on unescaped commas, trims whitespace
// around each component and around the '=' inside it, and folds attribute
// types and values to lowercase. Multi-valued RDNs keep their '+' joins with
// the components sorted for a stable form.
type DistinguishedNameRule struct{}

func (DistinguishedNameRule) Name() string { return "distinguishedNameMatch" }
func (DistinguishedNameRule) OID() string  { return "2.5.13.1" }

func (DistinguishedNameRule) Normalize(value []byte) ([]byte, error) {
	s := strings.TrimSpace(string(value))
	if s == "" {
		// The empty DN names the root DSE and is legal.
		return []byte{}, nil
	}
	rdns, err := splitDN(s, ',')
	if err != nil {
		return nil, err
	}
	for i, rdn := range rdns {
		avas, err := splitDN(rdn, '+')
		if err != nil {
			return nil, err
		}
		for j, ava := range avas {
			eq := indexUnescaped(ava, '=')
			if eq < 0 {
				return nil, syntaxError(-1, "RDN component %q has no '='", ava)
			}
			typ := strings.ToLower(strings.TrimSpace(ava[:eq]))
			val := strings.ToLower(strings.TrimSpace(ava[eq+1:]))
			if typ == "" {
				return nil, syntaxError(-1, "RDN component %q has an empty attribute type", ava)
			}
			avas[j] = typ + "=" + val
		}
		if len(avas) > 1 {
			sortStrings(avas)
		}
		rdns[i] = strings.Join(avas, "+")
	}
	return []byte(strings.Join(rdns, ",")), nil
}

func (r DistinguishedNameRule) ValuesMatch(a, b []byte) (bool, error) {
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

// splitDN splits s on unescaped occurrences of sep, trimming whitespace from
// each piece. An empty piece means two separators in a row, which is
// malformed.
func splitDN(s string, sep byte) ([]string, error) {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++ // skip the escaped character
		case sep:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, piece := range out {
		if piece == "" {
			return nil, syntaxError(-1, "empty RDN component in %q", s)
		}
	}
	return out, nil
}

func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

// sortStrings is an insertion sort; multi-valued RDNs are tiny.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
