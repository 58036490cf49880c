package matching

import (
	"bytes"
)

// OctetStringRule implements octetStringMatch and octetStringOrderingMatch.
// Values are opaque: normalization is the identity and comparison is an
// unsigned bytewise order.
type OctetStringRule struct{}

func (OctetStringRule) Name() string { return "octetStringMatch" }
func (OctetStringRule) OID() string  { return "2.5.13.17" }

func (OctetStringRule) Normalize(value []byte) ([]byte, error) {
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (OctetStringRule) ValuesMatch(a, b []byte) (bool, error) {
	return bytes.Equal(a, b), nil
}

func (OctetStringRule) CompareValues(a, b []byte) (int, error) {
	return bytes.Compare(a, b), nil
}
