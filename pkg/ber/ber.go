// Package ber implements the subset of ASN.1 BER (ITU-T X.690) used by the
// LDAP protocol: definite-length tag-length-value elements with primitive
// and constructed encodings.
package ber

import "fmt"

// Tag class constants (bits 7-8 of the identifier octet).
const (
	ClassUniversal   = 0x00
	ClassApplication = 0x40
	ClassContext     = 0x80
	ClassPrivate     = 0xC0
)

// Universal tag numbers used by LDAP.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagNull        = 0x05
	TagEnumerated  = 0x0A
	TagSequence    = 0x10
	TagSet         = 0x11
)

// Length encoding constants.
const (
	longFormBit        = 0x80
	maxShortFormLength = 127
)

// Element is a decoded BER tag-length-value. Primitive elements carry their
// contents in Value; constructed elements carry nested elements in Children
// and ignore Value.
type Element struct {
	Class       int
	Constructed bool
	Tag         int
	Value       []byte
	Children    []*Element
}

// NewSequence returns a universal SEQUENCE element with the given children.
func NewSequence(children ...*Element) *Element {
	return &Element{Class: ClassUniversal, Constructed: true, Tag: TagSequence, Children: children}
}

// NewSet returns a universal SET element with the given children.
func NewSet(children ...*Element) *Element {
	return &Element{Class: ClassUniversal, Constructed: true, Tag: TagSet, Children: children}
}

// NewInteger returns a universal INTEGER element.
func NewInteger(v int64) *Element {
	return &Element{Class: ClassUniversal, Tag: TagInteger, Value: encodeInt(v)}
}

// NewEnumerated returns a universal ENUMERATED element.
func NewEnumerated(v int64) *Element {
	return &Element{Class: ClassUniversal, Tag: TagEnumerated, Value: encodeInt(v)}
}

// NewBoolean returns a universal BOOLEAN element. TRUE is encoded as 0xFF.
func NewBoolean(v bool) *Element {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return &Element{Class: ClassUniversal, Tag: TagBoolean, Value: []byte{b}}
}

// NewOctetString returns a universal OCTET STRING element.
func NewOctetString(v []byte) *Element {
	return &Element{Class: ClassUniversal, Tag: TagOctetString, Value: v}
}

// NewString returns a universal OCTET STRING element holding s.
func NewString(s string) *Element {
	return NewOctetString([]byte(s))
}

// NewNull returns a universal NULL element.
func NewNull() *Element {
	return &Element{Class: ClassUniversal, Tag: TagNull}
}

// NewContext returns a primitive context-specific element [tag] with value v.
func NewContext(tag int, v []byte) *Element {
	return &Element{Class: ClassContext, Tag: tag, Value: v}
}

// NewContextConstructed returns a constructed context-specific element [tag].
func NewContextConstructed(tag int, children ...*Element) *Element {
	return &Element{Class: ClassContext, Constructed: true, Tag: tag, Children: children}
}

// NewApplication returns a constructed application element [APPLICATION tag].
func NewApplication(tag int, children ...*Element) *Element {
	return &Element{Class: ClassApplication, Constructed: true, Tag: tag, Children: children}
}

// NewApplicationPrimitive returns a primitive application element.
func NewApplicationPrimitive(tag int, v []byte) *Element {
	return &Element{Class: ClassApplication, Tag: tag, Value: v}
}

// Integer interprets the element's value as a two's complement integer.
func (e *Element) Integer() (int64, error) {
	if e.Constructed {
		return 0, &DecodeError{Message: "integer must be primitive"}
	}
	if len(e.Value) == 0 {
		return 0, &DecodeError{Message: "integer needs at least one content octet"}
	}
	if len(e.Value) > 8 {
		return 0, &DecodeError{Message: "integer exceeds 64 bits"}
	}
	var v int64
	if e.Value[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range e.Value {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// Boolean interprets the element's value as a BOOLEAN. Per X.690 any
// non-zero content octet is TRUE.
func (e *Element) Boolean() (bool, error) {
	if e.Constructed || len(e.Value) != 1 {
		return false, &DecodeError{Message: "boolean must be primitive with one content octet"}
	}
	return e.Value[0] != 0x00, nil
}

// StringValue interprets the element's value as a string.
func (e *Element) StringValue() string {
	return string(e.Value)
}

// Child returns the i-th child, or an error describing the missing element.
func (e *Element) Child(i int) (*Element, error) {
	if i >= len(e.Children) {
		return nil, &DecodeError{Message: fmt.Sprintf("missing mandatory element at index %d", i)}
	}
	return e.Children[i], nil
}

// Is reports whether the element carries the given class and tag.
func (e *Element) Is(class, tag int) bool {
	return e.Class == class && e.Tag == tag
}

// encodeInt produces the minimal two's complement encoding of v.
func encodeInt(v int64) []byte {
	n := 1
	for ; n < 8; n++ {
		// The value fits in n bytes when shifting out n*8-1 bits leaves
		// only the sign.
		if v>>(uint(n)*8-1) == 0 || v>>(uint(n)*8-1) == -1 {
			break
		}
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
