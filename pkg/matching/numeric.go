package matching

import (
	"bytes"
)

// NumericStringRule implements numericStringMatch. Normalization removes
// every space; remaining characters must be digits.
type NumericStringRule struct{}

func (NumericStringRule) Name() string { return "numericStringMatch" }
func (NumericStringRule) OID() string  { return "2.5.13.8" }

func (NumericStringRule) Normalize(value []byte) ([]byte, error) {
	out := make([]byte, 0, len(value))
	for i, b := range value {
		switch {
		case b == ' ':
		case b >= '0' && b <= '9':
			out = append(out, b)
		default:
			return nil, syntaxError(i, "invalid character %q in numeric string", string(b))
		}
	}
	return out, nil
}

func (r NumericStringRule) ValuesMatch(a, b []byte) (bool, error) {
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

func (r NumericStringRule) MatchesSubstring(value, initial []byte, any [][]byte, final []byte) (bool, error) {
	return substringWithNormalize(r, value, initial, any, final)
}

// TelephoneNumberRule implements telephoneNumberMatch. Normalization removes
// spaces and hyphens; the remainder is matched verbatim.
type TelephoneNumberRule struct{}

func (TelephoneNumberRule) Name() string { return "telephoneNumberMatch" }
func (TelephoneNumberRule) OID() string  { return "2.5.13.20" }

func (TelephoneNumberRule) Normalize(value []byte) ([]byte, error) {
	out := make([]byte, 0, len(value))
	for _, b := range value {
		if b == ' ' || b == '-' {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r TelephoneNumberRule) ValuesMatch(a, b []byte) (bool, error) {
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

func (r TelephoneNumberRule) MatchesSubstring(value, initial []byte, any [][]byte, final []byte) (bool, error) {
	return substringWithNormalize(r, value, initial, any, final)
}

// substringWithNormalize runs the standard anchored substring walk over
// rule-normalized components.
func substringWithNormalize(rule Rule, value, initial []byte, any [][]byte, final []byte) (bool, error) {
	nv, err := rule.Normalize(value)
	if err != nil {
		return false, err
	}
	rest := nv
	if initial != nil {
		ni, err := rule.Normalize(initial)
		if err != nil {
			return false, err
		}
		if !bytes.HasPrefix(rest, ni) {
			return false, nil
		}
		rest = rest[len(ni):]
	}
	if final != nil {
		nf, err := rule.Normalize(final)
		if err != nil {
			return false, err
		}
		if !bytes.HasSuffix(rest, nf) {
			return false, nil
		}
		rest = rest[:len(rest)-len(nf)]
	}
	for _, a := range any {
		na, err := rule.Normalize(a)
		if err != nil {
			return false, err
		}
		idx := bytes.Index(rest, na)
		if idx < 0 {
			return false, nil
		}
		rest = rest[idx+len(na):]
	}
	return true, nil
}
