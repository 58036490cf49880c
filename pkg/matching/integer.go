package matching

import (
	"bytes"
)

// IntegerRule implements integerMatch and integerOrderingMatch over the
// canonical decimal form: optional leading '-', no leading zeros except the
// literal "0", no surrounding whitespace. Substring matching is undefined
// for integers and reported as inappropriateMatching.
type IntegerRule struct{}

func (IntegerRule) Name() string { return "integerMatch" }
func (IntegerRule) OID() string  { return "2.5.13.14" }

func (r IntegerRule) Normalize(value []byte) ([]byte, error) {
	v := bytes.TrimSpace(value)
	if len(v) == 0 {
		return nil, syntaxError(-1, "integer value must not be empty")
	}
	for i, b := range v {
		switch b {
		case '-':
			// Only as the first character, and only when digits follow.
			if i != 0 || len(v) == 1 {
				return nil, syntaxError(i, "misplaced '-' in integer value")
			}
		case '0':
			// Legal anywhere except as a leading zero: "0" alone is fine,
			// "0..." and "-0..." are not.
			if (i == 0 && len(v) > 1) || (i == 1 && v[0] == '-') {
				return nil, syntaxError(i, "integer value has a leading zero")
			}
		case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		default:
			return nil, syntaxError(i, "invalid character %q in integer value", string(b))
		}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// NormalizeAssertion forgives leading zeros in assertion values ("007"
// canonicalizes to "7") before applying the strict syntax. "-0" and friends
// stay invalid: there is no negative zero.
func (r IntegerRule) NormalizeAssertion(value []byte) ([]byte, error) {
	v := bytes.TrimSpace(value)
	neg := len(v) > 1 && v[0] == '-'
	if neg {
		v = v[1:]
	}
	for len(v) > 1 && v[0] == '0' {
		v = v[1:]
	}
	canon := make([]byte, 0, len(v)+1)
	if neg {
		canon = append(canon, '-')
	}
	canon = append(canon, v...)
	return r.Normalize(canon)
}

func (r IntegerRule) ValuesMatch(a, b []byte) (bool, error) {
	cmp, err := r.CompareValues(a, b)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

// CompareValues orders by sign first, then by digit-string length (reversed
// for negatives, since a longer negative has the larger magnitude and is
// therefore smaller), then bytewise.
func (r IntegerRule) CompareValues(a, b []byte) (int, error) {
	na, err := r.Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := r.Normalize(b)
	if err != nil {
		return 0, err
	}

	negA := na[0] == '-'
	negB := nb[0] == '-'
	switch {
	case negA && !negB:
		return -1, nil
	case !negA && negB:
		return 1, nil
	case negA && negB:
		if len(na) != len(nb) {
			if len(na) < len(nb) {
				return 1, nil
			}
			return -1, nil
		}
		return bytes.Compare(nb, na), nil
	default:
		if len(na) != len(nb) {
			if len(na) < len(nb) {
				return -1, nil
			}
			return 1, nil
		}
		return bytes.Compare(na, nb), nil
	}
}
