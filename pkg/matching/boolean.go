package matching

import (
	"bytes"
)

// BooleanRule implements booleanMatch over the literal strings TRUE and
// FALSE. Anything else, including lowercase spellings, is a syntax error.
type BooleanRule struct{}

func (BooleanRule) Name() string { return "booleanMatch" }
func (BooleanRule) OID() string  { return "2.5.13.13" }

func (BooleanRule) Normalize(value []byte) ([]byte, error) {
	switch {
	case bytes.Equal(value, []byte("TRUE")):
		return []byte("TRUE"), nil
	case bytes.Equal(value, []byte("FALSE")):
		return []byte("FALSE"), nil
	default:
		return nil, syntaxError(0, "boolean value must be TRUE or FALSE")
	}
}

func (r BooleanRule) ValuesMatch(a, b []byte) (bool, error) {
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
