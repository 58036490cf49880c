package ldap

import (
	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

// context tag for the optional referral URL list inside LDAPResult.
const contextTagReferral = 3

// Result is the LDAPResult shared by every response operation.
type Result struct {
	Code              ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referrals         []string
}

// resultChildren renders the LDAPResult fields in wire order.
func (r *Result) resultChildren() []*ber.Element {
	children := []*ber.Element{
		ber.NewEnumerated(int64(r.Code)),
		ber.NewString(r.MatchedDN),
		ber.NewString(r.DiagnosticMessage),
	}
	if len(r.Referrals) > 0 {
		ref := ber.NewContextConstructed(contextTagReferral)
		for _, url := range r.Referrals {
			ref.Children = append(ref.Children, ber.NewString(url))
		}
		children = append(children, ref)
	}
	return children
}

// decodeResult reads an LDAPResult from the children of el.
func decodeResult(el *ber.Element) (*Result, error) {
	if len(el.Children) < 3 {
		return nil, shapeError("LDAPResult needs resultCode, matchedDN and diagnosticMessage")
	}
	code, err := el.Children[0].Integer()
	if err != nil {
		return nil, err
	}
	r := &Result{
		Code:              ResultCode(code),
		MatchedDN:         el.Children[1].StringValue(),
		DiagnosticMessage: el.Children[2].StringValue(),
	}
	for _, extra := range el.Children[3:] {
		if extra.Is(ber.ClassContext, contextTagReferral) {
			for _, url := range extra.Children {
				r.Referrals = append(r.Referrals, url.StringValue())
			}
		}
	}
	return r, nil
}

// BindResponse answers a bind request. ServerSASLCreds carries the server's
// challenge or final data during SASL negotiation.
type BindResponse struct {
	Result
	ServerSASLCreds []byte
}

func (r *BindResponse) AppTag() int { return ApplicationBindResponse }

func (r *BindResponse) element() *ber.Element {
	el := ber.NewApplication(ApplicationBindResponse, r.resultChildren()...)
	if r.ServerSASLCreds != nil {
		el.Children = append(el.Children, ber.NewContext(7, r.ServerSASLCreds))
	}
	return el
}

func decodeBindResponse(el *ber.Element) (*BindResponse, error) {
	res, err := decodeResult(el)
	if err != nil {
		return nil, err
	}
	r := &BindResponse{Result: *res}
	for _, extra := range el.Children[3:] {
		if extra.Is(ber.ClassContext, 7) {
			r.ServerSASLCreds = extra.Value
		}
	}
	return r, nil
}

// SearchResultEntry carries one entry matched by a search.
type SearchResultEntry struct {
	DN         string
	Attributes []Attribute
}

func (r *SearchResultEntry) AppTag() int { return ApplicationSearchResultEntry }

func (r *SearchResultEntry) element() *ber.Element {
	attrs := ber.NewSequence()
	for _, a := range r.Attributes {
		attrs.Children = append(attrs.Children, a.element())
	}
	return ber.NewApplication(ApplicationSearchResultEntry, ber.NewString(r.DN), attrs)
}

func decodeSearchResultEntry(el *ber.Element) (*SearchResultEntry, error) {
	if len(el.Children) != 2 {
		return nil, shapeError("search result entry must be SEQUENCE{objectName, attributes}")
	}
	r := &SearchResultEntry{DN: el.Children[0].StringValue()}
	if !el.Children[1].Is(ber.ClassUniversal, ber.TagSequence) {
		return nil, shapeError("search entry attribute list must be a SEQUENCE")
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

// SearchResultReference points the client at other servers.
type SearchResultReference struct {
	URIs []string
}

func (r *SearchResultReference) AppTag() int { return ApplicationSearchResultReference }

func (r *SearchResultReference) element() *ber.Element {
	el := ber.NewApplication(ApplicationSearchResultReference)
	for _, uri := range r.URIs {
		el.Children = append(el.Children, ber.NewString(uri))
	}
	return el
}

func decodeSearchResultReference(el *ber.Element) (*SearchResultReference, error) {
	if len(el.Children) == 0 {
		return nil, shapeError("search result reference needs at least one URI")
	}
	r := &SearchResultReference{}
	for _, uri := range el.Children {
		r.URIs = append(r.URIs, uri.StringValue())
	}
	return r, nil
}

// SearchResultDone closes a search with its final result.
type SearchResultDone struct {
	Result
}

func (r *SearchResultDone) AppTag() int { return ApplicationSearchResultDone }

func (r *SearchResultDone) element() *ber.Element {
	return ber.NewApplication(ApplicationSearchResultDone, r.resultChildren()...)
}

// ModifyResponse answers a modify request.
type ModifyResponse struct {
	Result
}

func (r *ModifyResponse) AppTag() int { return ApplicationModifyResponse }

func (r *ModifyResponse) element() *ber.Element {
	return ber.NewApplication(ApplicationModifyResponse, r.resultChildren()...)
}

// AddResponse answers an add request.
type AddResponse struct {
	Result
}

func (r *AddResponse) AppTag() int { return ApplicationAddResponse }

func (r *AddResponse) element() *ber.Element {
	return ber.NewApplication(ApplicationAddResponse, r.resultChildren()...)
}

// DelResponse answers a del request.
type DelResponse struct {
	Result
}

func (r *DelResponse) AppTag() int { return ApplicationDelResponse }

func (r *DelResponse) element() *ber.Element {
	return ber.NewApplication(ApplicationDelResponse, r.resultChildren()...)
}

// ModifyDNResponse answers a modify DN request.
type ModifyDNResponse struct {
	Result
}

func (r *ModifyDNResponse) AppTag() int { return ApplicationModifyDNResponse }

func (r *ModifyDNResponse) element() *ber.Element {
	return ber.NewApplication(ApplicationModifyDNResponse, r.resultChildren()...)
}

// CompareResponse answers a compare request; Code is ResultCompareTrue or
// ResultCompareFalse on success.
type CompareResponse struct {
	Result
}

func (r *CompareResponse) AppTag() int { return ApplicationCompareResponse }

func (r *CompareResponse) element() *ber.Element {
	return ber.NewApplication(ApplicationCompareResponse, r.resultChildren()...)
}

// ExtendedResponse answers an extended request.
type ExtendedResponse struct {
	Result
	OID   string
	Value []byte
}

func (r *ExtendedResponse) AppTag() int { return ApplicationExtendedResponse }

func (r *ExtendedResponse) element() *ber.Element {
	el := ber.NewApplication(ApplicationExtendedResponse, r.resultChildren()...)
	if r.OID != "" {
		el.Children = append(el.Children, ber.NewContext(10, []byte(r.OID)))
	}
	if r.Value != nil {
		el.Children = append(el.Children, ber.NewContext(11, r.Value))
	}
	return el
}

func decodeExtendedResponse(el *ber.Element) (*ExtendedResponse, error) {
	res, err := decodeResult(el)
	if err != nil {
		return nil, err
	}
	r := &ExtendedResponse{Result: *res}
	for _, extra := range el.Children[3:] {
		switch {
		case extra.Is(ber.ClassContext, 10):
			r.OID = extra.StringValue()
		case extra.Is(ber.ClassContext, 11):
			r.Value = extra.Value
		}
	}
	return r, nil
}

// IntermediateResponse is delivered out-of-band before an operation's final
// result (RFC 4511 §4.13); only extended operations use it in practice.
type IntermediateResponse struct {
	OID   string
	Value []byte
}

func (r *IntermediateResponse) AppTag() int { return ApplicationIntermediateResponse }

func (r *IntermediateResponse) element() *ber.Element {
	el := ber.NewApplication(ApplicationIntermediateResponse)
	if r.OID != "" {
		el.Children = append(el.Children, ber.NewContext(0, []byte(r.OID)))
	}
	if r.Value != nil {
		el.Children = append(el.Children, ber.NewContext(1, r.Value))
	}
	return el
}

func decodeIntermediateResponse(el *ber.Element) (*IntermediateResponse, error) {
	r := &IntermediateResponse{}
	for _, child := range el.Children {
		switch {
		case child.Is(ber.ClassContext, 0):
			r.OID = child.StringValue()
		case child.Is(ber.ClassContext, 1):
			r.Value = child.Value
		default:
			return nil, shapeError("unexpected element inside intermediate response")
		}
	}
	return r, nil
}
