package ldap

import (
	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

// Attribute is one attribute description with its values.
type Attribute struct {
	Type   string
	Values [][]byte
}

func (a Attribute) element() *ber.Element {
	vals := ber.NewSet()
	for _, v := range a.Values {
		vals.Children = append(vals.Children, ber.NewOctetString(v))
	}
	return ber.NewSequence(ber.NewString(a.Type), vals)
}

func decodeAttribute(el *ber.Element) (Attribute, error) {
	var a Attribute
	if !el.Is(ber.ClassUniversal, ber.TagSequence) || len(el.Children) != 2 {
		return a, shapeError("attribute must be SEQUENCE{type, vals}")
	}
	a.Type = el.Children[0].StringValue()
	if !el.Children[1].Is(ber.ClassUniversal, ber.TagSet) {
		return a, shapeError("attribute values must be a SET")
	}
	for _, v := range el.Children[1].Children {
		a.Values = append(a.Values, v.Value)
	}
	return a, nil
}

// SASLCredentials is the SASL choice of a bind request's authentication.
type SASLCredentials struct {
	Mechanism   string
	Credentials []byte
}

// BindRequest authenticates a connection. Exactly one of Password (simple
// bind, possibly empty for anonymous) or SASL is used; SASL wins when set.
type BindRequest struct {
	Version  int
	DN       string
	Password []byte
	SASL     *SASLCredentials
}

func (r *BindRequest) AppTag() int { return ApplicationBindRequest }

func (r *BindRequest) element() *ber.Element {
	el := ber.NewApplication(ApplicationBindRequest,
		ber.NewInteger(int64(r.Version)),
		ber.NewString(r.DN),
	)
	if r.SASL != nil {
		auth := ber.NewContextConstructed(3, ber.NewString(r.SASL.Mechanism))
		if r.SASL.Credentials != nil {
			auth.Children = append(auth.Children, ber.NewOctetString(r.SASL.Credentials))
		}
		el.Children = append(el.Children, auth)
	} else {
		el.Children = append(el.Children, ber.NewContext(0, r.Password))
	}
	return el
}

func decodeBindRequest(el *ber.Element) (*BindRequest, error) {
	if len(el.Children) != 3 {
		return nil, shapeError("bind request must be SEQUENCE{version, name, authentication}")
	}
	version, err := el.Children[0].Integer()
	if err != nil {
		return nil, err
	}
	r := &BindRequest{Version: int(version), DN: el.Children[1].StringValue()}

	auth := el.Children[2]
	if auth.Class != ber.ClassContext {
		return nil, shapeError("bind authentication must carry a context tag")
	}
	switch auth.Tag {
	case 0: // simple
		r.Password = auth.Value
	case 3: // sasl
		if len(auth.Children) == 0 {
			return nil, shapeError("sasl credentials need a mechanism")
		}
		sasl := &SASLCredentials{Mechanism: auth.Children[0].StringValue()}
		if len(auth.Children) > 1 {
			sasl.Credentials = auth.Children[1].Value
		}
		r.SASL = sasl
	default:
		return nil, shapeError("unsupported bind authentication choice %d", auth.Tag)
	}
	return r, nil
}

// UnbindRequest terminates the session; it has no response.
type UnbindRequest struct{}

func (r *UnbindRequest) AppTag() int { return ApplicationUnbindRequest }

func (r *UnbindRequest) element() *ber.Element {
	return ber.NewApplicationPrimitive(ApplicationUnbindRequest, nil)
}

// SearchRequest asks for entries under BaseDN matching Filter.
type SearchRequest struct {
	BaseDN       string
	Scope        int
	DerefAliases int
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       *Filter
	Attributes   []string
}

func (r *SearchRequest) AppTag() int { return ApplicationSearchRequest }

func (r *SearchRequest) element() *ber.Element {
	attrs := ber.NewSequence()
	for _, a := range r.Attributes {
		attrs.Children = append(attrs.Children, ber.NewString(a))
	}
	return ber.NewApplication(ApplicationSearchRequest,
		ber.NewString(r.BaseDN),
		ber.NewEnumerated(int64(r.Scope)),
		ber.NewEnumerated(int64(r.DerefAliases)),
		ber.NewInteger(int64(r.SizeLimit)),
		ber.NewInteger(int64(r.TimeLimit)),
		ber.NewBoolean(r.TypesOnly),
		r.Filter.element(),
		attrs,
	)
}

func decodeSearchRequest(el *ber.Element) (*SearchRequest, error) {
	if len(el.Children) != 8 {
		return nil, shapeError("search request must have 8 elements, got %d", len(el.Children))
	}
	scope, err := el.Children[1].Integer()
	if err != nil {
		return nil, err
	}
	deref, err := el.Children[2].Integer()
	if err != nil {
		return nil, err
	}
	sizeLimit, err := el.Children[3].Integer()
	if err != nil {
		return nil, err
	}
	timeLimit, err := el.Children[4].Integer()
	if err != nil {
		return nil, err
	}
	typesOnly, err := el.Children[5].Boolean()
	if err != nil {
		return nil, err
	}
	filter, err := decodeFilter(el.Children[6])
	if err != nil {
		return nil, err
	}
	r := &SearchRequest{
		BaseDN:       el.Children[0].StringValue(),
		Scope:        int(scope),
		DerefAliases: int(deref),
		SizeLimit:    int(sizeLimit),
		TimeLimit:    int(timeLimit),
		TypesOnly:    typesOnly,
		Filter:       filter,
	}
	if !el.Children[7].Is(ber.ClassUniversal, ber.TagSequence) {
		return nil, shapeError("search attribute selection must be a SEQUENCE")
	}
	for _, a := range el.Children[7].Children {
		r.Attributes = append(r.Attributes, a.StringValue())
	}
	return r, nil
}

// Modification is one change of a modify request.
type Modification struct {
	Op        int // ModAdd, ModDelete or ModReplace
	Attribute Attribute
}

// ModifyRequest alters the attributes of the entry named by DN.
type ModifyRequest struct {
	DN      string
	Changes []Modification
}

func (r *ModifyRequest) AppTag() int { return ApplicationModifyRequest }

func (r *ModifyRequest) element() *ber.Element {
	changes := ber.NewSequence()
	for _, ch := range r.Changes {
		changes.Children = append(changes.Children,
			ber.NewSequence(ber.NewEnumerated(int64(ch.Op)), ch.Attribute.element()))
	}
	return ber.NewApplication(ApplicationModifyRequest, ber.NewString(r.DN), changes)
}

func decodeModifyRequest(el *ber.Element) (*ModifyRequest, error) {
	if len(el.Children) != 2 {
		return nil, shapeError("modify request must be SEQUENCE{object, changes}")
	}
	r := &ModifyRequest{DN: el.Children[0].StringValue()}
	if !el.Children[1].Is(ber.ClassUniversal, ber.TagSequence) {
		return nil, shapeError("modify changes must be a SEQUENCE")
	}
	for _, chEl := range el.Children[1].Children {
		if !chEl.Is(ber.ClassUniversal, ber.TagSequence) || len(chEl.Children) != 2 {
			return nil, shapeError("modify change must be SEQUENCE{operation, modification}")
		}
		op, err := chEl.Children[0].Integer()
		if err != nil {
			return nil, err
		}
		attr, err := decodeAttribute(chEl.Children[1])
		if err != nil {
			return nil, err
		}
		r.Changes = append(r.Changes, Modification{Op: int(op), Attribute: attr})
	}
	return r, nil
}

// AddRequest creates the entry named by DN with the given attributes.
type AddRequest struct {
	DN         string
	Attributes []Attribute
}

func (r *AddRequest) AppTag() int { return ApplicationAddRequest }

func (r *AddRequest) element() *ber.Element {
	attrs := ber.NewSequence()
	for _, a := range r.Attributes {
		attrs.Children = append(attrs.Children, a.element())
	}
	return ber.NewApplication(ApplicationAddRequest, ber.NewString(r.DN), attrs)
}

func decodeAddRequest(el *ber.Element) (*AddRequest, error) {
	if len(el.Children) != 2 {
		return nil, shapeError("add request must be SEQUENCE{entry, attributes}")
	}
	r := &AddRequest{DN: el.Children[0].StringValue()}
	if !el.Children[1].Is(ber.ClassUniversal, ber.TagSequence) {
		return nil, shapeError("add attribute list must be a SEQUENCE")
	}
	for _, aEl := range el.Children[1].Children {
		attr, err := decodeAttribute(aEl)
		if err != nil {
			return nil, err
		}
		r.Attributes = append(r.Attributes, attr)
	}
	return r, nil
}

// DelRequest removes the entry named by DN. On the wire it is a primitive
// application element whose value is the DN itself.
type DelRequest struct {
	DN string
}

func (r *DelRequest) AppTag() int { return ApplicationDelRequest }

func (r *DelRequest) element() *ber.Element {
	return ber.NewApplicationPrimitive(ApplicationDelRequest, []byte(r.DN))
}

// ModifyDNRequest renames an entry and optionally moves it under NewSuperior.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

func (r *ModifyDNRequest) AppTag() int { return ApplicationModifyDNRequest }

func (r *ModifyDNRequest) element() *ber.Element {
	el := ber.NewApplication(ApplicationModifyDNRequest,
		ber.NewString(r.DN),
		ber.NewString(r.NewRDN),
		ber.NewBoolean(r.DeleteOldRDN),
	)
	if r.NewSuperior != "" {
		el.Children = append(el.Children, ber.NewContext(0, []byte(r.NewSuperior)))
	}
	return el
}

func decodeModifyDNRequest(el *ber.Element) (*ModifyDNRequest, error) {
	if len(el.Children) < 3 || len(el.Children) > 4 {
		return nil, shapeError("modify DN request must have 3 or 4 elements")
	}
	deleteOld, err := el.Children[2].Boolean()
	if err != nil {
		return nil, err
	}
	r := &ModifyDNRequest{
		DN:           el.Children[0].StringValue(),
		NewRDN:       el.Children[1].StringValue(),
		DeleteOldRDN: deleteOld,
	}
	if len(el.Children) == 4 {
		sup := el.Children[3]
		if !sup.Is(ber.ClassContext, 0) {
			return nil, shapeError("newSuperior must carry context tag [0]")
		}
		r.NewSuperior = sup.StringValue()
	}
	return r, nil
}

// CompareRequest asserts that the entry named by DN holds Value for
// Attribute, judged by the attribute's equality matching rule.
type CompareRequest struct {
	DN        string
	Attribute string
	Value     []byte
}

func (r *CompareRequest) AppTag() int { return ApplicationCompareRequest }

func (r *CompareRequest) element() *ber.Element {
	return ber.NewApplication(ApplicationCompareRequest,
		ber.NewString(r.DN),
		ber.NewSequence(ber.NewString(r.Attribute), ber.NewOctetString(r.Value)),
	)
}

func decodeCompareRequest(el *ber.Element) (*CompareRequest, error) {
	if len(el.Children) != 2 {
		return nil, shapeError("compare request must be SEQUENCE{entry, ava}")
	}
	ava := el.Children[1]
	if !ava.Is(ber.ClassUniversal, ber.TagSequence) || len(ava.Children) != 2 {
		return nil, shapeError("compare ava must be SEQUENCE{desc, value}")
	}
	return &CompareRequest{
		DN:        el.Children[0].StringValue(),
		Attribute: ava.Children[0].StringValue(),
		Value:     ava.Children[1].Value,
	}, nil
}

// AbandonRequest asks the server to stop delivering the response of an
// outstanding operation. It has no response of its own, and suppression is
// advisory: the targeted operation may still run to completion.
type AbandonRequest struct {
	IDToAbandon int
}

func (r *AbandonRequest) AppTag() int { return ApplicationAbandonRequest }

func (r *AbandonRequest) element() *ber.Element {
	el := ber.NewInteger(int64(r.IDToAbandon))
	el.Class = ber.ClassApplication
	el.Tag = ApplicationAbandonRequest
	return el
}

// ExtendedRequest invokes the operation named by OID with an opaque value.
type ExtendedRequest struct {
	OID   string
	Value []byte
}

func (r *ExtendedRequest) AppTag() int { return ApplicationExtendedRequest }

func (r *ExtendedRequest) element() *ber.Element {
	el := ber.NewApplication(ApplicationExtendedRequest, ber.NewContext(0, []byte(r.OID)))
	if r.Value != nil {
		el.Children = append(el.Children, ber.NewContext(1, r.Value))
	}
	return el
}

func decodeExtendedRequest(el *ber.Element) (*ExtendedRequest, error) {
	if len(el.Children) < 1 {
		return nil, shapeError("extended request needs a requestName")
	}
	if !el.Children[0].Is(ber.ClassContext, 0) {
		return nil, shapeError("extended requestName must carry context tag [0]")
	}
	r := &ExtendedRequest{OID: el.Children[0].StringValue()}
	if len(el.Children) > 1 {
		if !el.Children[1].Is(ber.ClassContext, 1) {
			return nil, shapeError("extended requestValue must carry context tag [1]")
		}
		r.Value = el.Children[1].Value
	}
	return r, nil
}
