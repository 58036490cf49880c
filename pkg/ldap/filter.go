package ldap

import (
	"strings"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

// FilterKind discriminates the filter CHOICE (RFC 4511 §4.5.1.7).
type FilterKind int

const (
	FilterAnd FilterKind = iota
	FilterOr
	FilterNot
	FilterEquality
	FilterSubstrings
	FilterGreaterOrEqual
	FilterLessOrEqual
	FilterPresent
	FilterApproxMatch
)

// context tags of the filter CHOICE, indexed by FilterKind.
var filterTags = [...]int{0, 1, 2, 3, 4, 5, 6, 7, 8}

// Substrings holds the components of a substrings assertion. Initial and
// Final are nil when absent.
type Substrings struct {
	Initial []byte
	Any     [][]byte
	Final   []byte
}

// Filter is a search filter as a tagged union. Which fields are meaningful
// depends on Kind: Subs for and/or/not, Attribute alone for present,
// Attribute+Value for the comparison kinds, Attribute+Substrings for
// substrings.
type Filter struct {
	Kind       FilterKind
	Subs       []*Filter
	Attribute  string
	Value      []byte
	Substrings Substrings
}

func (f *Filter) element() *ber.Element {
	tag := filterTags[f.Kind]
	switch f.Kind {
	case FilterAnd, FilterOr, FilterNot:
		el := ber.NewContextConstructed(tag)
		for _, sub := range f.Subs {
			el.Children = append(el.Children, sub.element())
		}
		return el
	case FilterPresent:
		return ber.NewContext(tag, []byte(f.Attribute))
	case FilterSubstrings:
		seq := ber.NewSequence()
		if f.Substrings.Initial != nil {
			seq.Children = append(seq.Children, ber.NewContext(0, f.Substrings.Initial))
		}
		for _, any := range f.Substrings.Any {
			seq.Children = append(seq.Children, ber.NewContext(1, any))
		}
		if f.Substrings.Final != nil {
			seq.Children = append(seq.Children, ber.NewContext(2, f.Substrings.Final))
		}
		el := ber.NewContextConstructed(tag, ber.NewString(f.Attribute), seq)
		return el
	default: // equality, >=, <=, approx
		return ber.NewContextConstructed(tag,
			ber.NewString(f.Attribute), ber.NewOctetString(f.Value))
	}
}

func decodeFilter(el *ber.Element) (*Filter, error) {
	if el.Class != ber.ClassContext {
		return nil, shapeError("filter must carry a context tag")
	}
	switch el.Tag {
	case 0, 1: // and, or
		f := &Filter{Kind: FilterKind(el.Tag)}
		if len(el.Children) == 0 {
			return nil, shapeError("and/or filter needs at least one component")
		}
		for _, sub := range el.Children {
			inner, err := decodeFilter(sub)
			if err != nil {
				return nil, err
			}
			f.Subs = append(f.Subs, inner)
		}
		return f, nil
	case 2: // not
		if len(el.Children) != 1 {
			return nil, shapeError("not filter must wrap exactly one component")
		}
		inner, err := decodeFilter(el.Children[0])
		if err != nil {
			return nil, err
		}
		return &Filter{Kind: FilterNot, Subs: []*Filter{inner}}, nil
	case 3, 5, 6, 8: // equality, >=, <=, approx
		if len(el.Children) != 2 {
			return nil, shapeError("attribute value assertion must be SEQUENCE{desc, value}")
		}
		return &Filter{
			Kind:      kindForTag(int(el.Tag)),
			Attribute: el.Children[0].StringValue(),
			Value:     el.Children[1].Value,
		}, nil
	case 4: // substrings
		if len(el.Children) != 2 || !el.Children[1].Is(ber.ClassUniversal, ber.TagSequence) {
			return nil, shapeError("substrings filter must be SEQUENCE{type, substrings}")
		}
		f := &Filter{Kind: FilterSubstrings, Attribute: el.Children[0].StringValue()}
		for _, sub := range el.Children[1].Children {
			if sub.Class != ber.ClassContext {
				return nil, shapeError("substring component must carry a context tag")
			}
			switch sub.Tag {
			case 0:
				if f.Substrings.Initial != nil {
					return nil, shapeError("substrings filter allows only one initial")
				}
				f.Substrings.Initial = sub.Value
			case 1:
				f.Substrings.Any = append(f.Substrings.Any, sub.Value)
			case 2:
				if f.Substrings.Final != nil {
					return nil, shapeError("substrings filter allows only one final")
				}
				f.Substrings.Final = sub.Value
			default:
				return nil, shapeError("unknown substring component tag %d", sub.Tag)
			}
		}
		if f.Substrings.Initial == nil && len(f.Substrings.Any) == 0 && f.Substrings.Final == nil {
			return nil, shapeError("substrings filter needs at least one component")
		}
		return f, nil
	case 7: // present
		return &Filter{Kind: FilterPresent, Attribute: el.StringValue()}, nil
	default:
		return nil, shapeError("unsupported filter tag %d", el.Tag)
	}
}

func kindForTag(tag int) FilterKind {
	switch tag {
	case 3:
		return FilterEquality
	case 5:
		return FilterGreaterOrEqual
	case 6:
		return FilterLessOrEqual
	default:
		return FilterApproxMatch
	}
}

// String renders the filter in RFC 4515 text form, mainly for logs.
func (f *Filter) String() string {
	var b strings.Builder
	f.writeTo(&b)
	return b.String()
}

func (f *Filter) writeTo(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Kind {
	case FilterAnd, FilterOr, FilterNot:
		ops := map[FilterKind]byte{FilterAnd: '&', FilterOr: '|', FilterNot: '!'}
		b.WriteByte(ops[f.Kind])
		for _, sub := range f.Subs {
			sub.writeTo(b)
		}
	case FilterPresent:
		b.WriteString(f.Attribute)
		b.WriteString("=*")
	case FilterSubstrings:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		if f.Substrings.Initial != nil {
			b.Write(f.Substrings.Initial)
		}
		for _, any := range f.Substrings.Any {
			b.WriteByte('*')
			b.Write(any)
		}
		b.WriteByte('*')
		if f.Substrings.Final != nil {
			b.Write(f.Substrings.Final)
		}
	default:
		b.WriteString(f.Attribute)
		switch f.Kind {
		case FilterGreaterOrEqual:
			b.WriteString(">=")
		case FilterLessOrEqual:
			b.WriteString("<=")
		case FilterApproxMatch:
			b.WriteString("~=")
		default:
			b.WriteByte('=')
		}
		b.Write(f.Value)
	}
	b.WriteByte(')')
}
