package ldap

import (
	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

// context tag for the optional controls list inside LDAPMessage.
const contextTagControls = 0

// Op is one LDAP protocol operation: a request or response that can appear
// as the protocolOp CHOICE of an LDAPMessage.
type Op interface {
	// AppTag returns the operation's assigned application tag number.
	AppTag() int
	// element renders the operation as its BER wire element.
	element() *ber.Element
}

// Message is one LDAP PDU:
//
//	LDAPMessage ::= SEQUENCE {
//	     messageID  MessageID,
//	     protocolOp CHOICE { ... },
//	     controls   [0] Controls OPTIONAL }
//
// MessageID is caller-assigned on requests and echoed on responses; the
// codec does not enforce uniqueness.
type Message struct {
	MessageID int
	Op        Op
	Controls  []Control
}

// Encode serializes the message to its BER wire form.
func (m *Message) Encode() []byte {
	children := []*ber.Element{
		ber.NewInteger(int64(m.MessageID)),
		m.Op.element(),
	}
	if len(m.Controls) > 0 {
		ctl := ber.NewContextConstructed(contextTagControls)
		for _, c := range m.Controls {
			ctl.Children = append(ctl.Children, c.element())
		}
		children = append(children, ctl)
	}
	return ber.Encode(ber.NewSequence(children...))
}

// ParseMessage decodes one LDAPMessage from buf, returning the number of
// bytes consumed. A short buffer yields ber.ErrIncomplete; callers should
// read more bytes and retry. Structural damage and illegal message shapes
// both surface as *ber.DecodeError.
func ParseMessage(buf []byte) (*Message, int, error) {
	el, n, err := ber.Decode(buf)
	if err != nil {
		return nil, 0, err
	}
	if !el.Is(ber.ClassUniversal, ber.TagSequence) || !el.Constructed {
		return nil, 0, shapeError("LDAPMessage must be a SEQUENCE")
	}
	if len(el.Children) < 2 {
		return nil, 0, shapeError("LDAPMessage needs messageID and protocolOp")
	}

	idEl := el.Children[0]
	if !idEl.Is(ber.ClassUniversal, ber.TagInteger) {
		return nil, 0, shapeError("messageID must be an INTEGER")
	}
	id, err := idEl.Integer()
	if err != nil {
		return nil, 0, err
	}
	if id < 0 || id > 2147483647 {
		return nil, 0, shapeError("messageID %d out of range", id)
	}

	op, err := decodeOp(el.Children[1])
	if err != nil {
		return nil, 0, err
	}

	msg := &Message{MessageID: int(id), Op: op}

	if len(el.Children) > 2 {
		ctl := el.Children[2]
		if !ctl.Is(ber.ClassContext, contextTagControls) {
			return nil, 0, shapeError("unexpected element after protocolOp")
		}
		for _, c := range ctl.Children {
			control, err := decodeControl(c)
			if err != nil {
				return nil, 0, err
			}
			msg.Controls = append(msg.Controls, *control)
		}
	}

	return msg, n, nil
}

// decodeOp interprets the protocolOp CHOICE by its application tag.
func decodeOp(el *ber.Element) (Op, error) {
	if el.Class != ber.ClassApplication {
		return nil, shapeError("protocolOp must carry an application tag, got class 0x%02x", el.Class)
	}
	switch el.Tag {
	case ApplicationBindRequest:
		return decodeBindRequest(el)
	case ApplicationBindResponse:
		return decodeBindResponse(el)
	case ApplicationUnbindRequest:
		return &UnbindRequest{}, nil
	case ApplicationSearchRequest:
		return decodeSearchRequest(el)
	case ApplicationSearchResultEntry:
		return decodeSearchResultEntry(el)
	case ApplicationSearchResultDone:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &SearchResultDone{Result: *r}, nil
	case ApplicationSearchResultReference:
		return decodeSearchResultReference(el)
	case ApplicationModifyRequest:
		return decodeModifyRequest(el)
	case ApplicationModifyResponse:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &ModifyResponse{Result: *r}, nil
	case ApplicationAddRequest:
		return decodeAddRequest(el)
	case ApplicationAddResponse:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &AddResponse{Result: *r}, nil
	case ApplicationDelRequest:
		if el.Constructed {
			return nil, shapeError("del request must be primitive")
		}
		return &DelRequest{DN: el.StringValue()}, nil
	case ApplicationDelResponse:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &DelResponse{Result: *r}, nil
	case ApplicationModifyDNRequest:
		return decodeModifyDNRequest(el)
	case ApplicationModifyDNResponse:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &ModifyDNResponse{Result: *r}, nil
	case ApplicationCompareRequest:
		return decodeCompareRequest(el)
	case ApplicationCompareResponse:
		r, err := decodeResult(el)
		if err != nil {
			return nil, err
		}
		return &CompareResponse{Result: *r}, nil
	case ApplicationAbandonRequest:
		if el.Constructed {
			return nil, shapeError("abandon request must be primitive")
		}
		id, err := el.Integer()
		if err != nil {
			return nil, err
		}
		return &AbandonRequest{IDToAbandon: int(id)}, nil
	case ApplicationExtendedRequest:
		return decodeExtendedRequest(el)
	case ApplicationExtendedResponse:
		return decodeExtendedResponse(el)
	case ApplicationIntermediateResponse:
		return decodeIntermediateResponse(el)
	default:
		return nil, shapeError("unknown protocolOp tag %d", el.Tag)
	}
}

// Control is attached to exactly one message and immutable once built.
// A nil Value means the control carries no controlValue.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

func (c Control) element() *ber.Element {
	el := ber.NewSequence(ber.NewString(c.OID))
	if c.Criticality {
		el.Children = append(el.Children, ber.NewBoolean(true))
	}
	if c.Value != nil {
		el.Children = append(el.Children, ber.NewOctetString(c.Value))
	}
	return el
}

func decodeControl(el *ber.Element) (*Control, error) {
	if !el.Is(ber.ClassUniversal, ber.TagSequence) || len(el.Children) == 0 {
		return nil, shapeError("control must be a SEQUENCE with a controlType")
	}
	c := &Control{OID: el.Children[0].StringValue()}
	for _, child := range el.Children[1:] {
		switch {
		case child.Is(ber.ClassUniversal, ber.TagBoolean):
			crit, err := child.Boolean()
			if err != nil {
				return nil, err
			}
			c.Criticality = crit
		case child.Is(ber.ClassUniversal, ber.TagOctetString):
			c.Value = child.Value
		default:
			return nil, shapeError("unexpected element inside control %s", c.OID)
		}
	}
	return c, nil
}
