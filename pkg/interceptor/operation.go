// Package interceptor implements the ordered hook chain that wraps every
// operation between the wire and the entry store. Interceptors opt into
// operation kinds by implementing the capability interfaces in spi.go; the
// chain discovers hooks by type assertion, so unimplemented hooks cost
// nothing.
package interceptor

import (
	"fmt"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
)

// Kind tags the operation variant carried by an Operation.
type Kind int

const (
	KindBind Kind = iota
	KindSearch
	KindModify
	KindAdd
	KindDelete
	KindModifyDN
	KindCompare
	KindExtended
)

var kindNames = [...]string{
	KindBind:     "bind",
	KindSearch:   "search",
	KindModify:   "modify",
	KindAdd:      "add",
	KindDelete:   "delete",
	KindModifyDN: "modifydn",
	KindCompare:  "compare",
	KindExtended: "extended",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf maps a decoded request to its operation kind. Unbind and abandon
// are connection-level signals and never reach the chain.
func KindOf(op ldap.Op) (Kind, bool) {
	switch op.(type) {
	case *ldap.BindRequest:
		return KindBind, true
	case *ldap.SearchRequest:
		return KindSearch, true
	case *ldap.ModifyRequest:
		return KindModify, true
	case *ldap.AddRequest:
		return KindAdd, true
	case *ldap.DelRequest:
		return KindDelete, true
	case *ldap.ModifyDNRequest:
		return KindModifyDN, true
	case *ldap.CompareRequest:
		return KindCompare, true
	case *ldap.ExtendedRequest:
		return KindExtended, true
	default:
		return 0, false
	}
}

// ConnInfo identifies the connection an operation arrived on.
type ConnInfo struct {
	ID         uint64
	RemoteAddr string
	BoundDN    string
}

// IntermediateSender delivers an intermediate response to the client
// out-of-band from the operation's final result.
type IntermediateSender func(*ldap.IntermediateResponse) error

// Operation is the single intercepted-operation value handed to every hook.
// The chain owns it for the duration of one operation; hooks receive it
// mutably for their invocation only and must not retain it.
type Operation struct {
	kind      Kind
	conn      ConnInfo
	messageID int
	request   ldap.Op
	result    *ldap.Result

	props     map[string]interface{}
	connProps map[string]interface{}

	chain *Chain
	send  IntermediateSender
}

// NewOperation wraps a decoded request. connProps is the connection-scoped
// bag shared by every operation on the same connection; the caller keeps it
// alive for the connection's lifetime.
func NewOperation(conn ConnInfo, messageID int, req ldap.Op, connProps map[string]interface{}, send IntermediateSender) (*Operation, error) {
	kind, ok := KindOf(req)
	if !ok {
		return nil, &ldap.ConfigurationError{
			Message: fmt.Sprintf("operation tag %d cannot be intercepted", req.AppTag()),
		}
	}
	return &Operation{
		kind:      kind,
		conn:      conn,
		messageID: messageID,
		request:   req,
		connProps: connProps,
		send:      send,
	}, nil
}

func (o *Operation) Kind() Kind      { return o.kind }
func (o *Operation) Conn() ConnInfo  { return o.conn }
func (o *Operation) MessageID() int  { return o.messageID }
func (o *Operation) Request() ldap.Op { return o.request }

// ReplaceRequest substitutes the request a later hook and the store will
// see. The replacement must keep the operation's kind.
func (o *Operation) ReplaceRequest(req ldap.Op) error {
	kind, ok := KindOf(req)
	if !ok || kind != o.kind {
		return ldap.NewError(ldap.ResultUnwillingToPerform,
			"replacement request must stay a %s operation", o.kind)
	}
	o.request = req
	return nil
}

// Result returns the operation's result, nil while none has been computed.
func (o *Operation) Result() *ldap.Result { return o.result }

// SetResult supplies the operation's result. From a pre hook this
// short-circuits the store.
func (o *Operation) SetResult(r *ldap.Result) { o.result = r }

// Get reads the operation-scoped property bag.
func (o *Operation) Get(key string) (interface{}, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Set writes the operation-scoped property bag.
func (o *Operation) Set(key string, value interface{}) {
	if o.props == nil {
		o.props = map[string]interface{}{}
	}
	o.props[key] = value
}

// ConnGet reads the connection-scoped property bag.
func (o *Operation) ConnGet(key string) (interface{}, bool) {
	v, ok := o.connProps[key]
	return v, ok
}

// ConnSet writes the connection-scoped property bag.
func (o *Operation) ConnSet(key string, value interface{}) {
	if o.connProps == nil {
		return
	}
	o.connProps[key] = value
}

// SendIntermediate delivers an intermediate response to the client. The
// response first passes through every registered IntermediateObserver.
func (o *Operation) SendIntermediate(resp *ldap.IntermediateResponse) error {
	if o.chain != nil {
		o.chain.observeIntermediate(o, resp)
	}
	if o.send == nil {
		return ldap.NewError(ldap.ResultUnwillingToPerform,
			"operation cannot deliver intermediate responses")
	}
	return o.send(resp)
}

// Typed accessors, gated by kind.

func (o *Operation) BindRequest() (*ldap.BindRequest, bool) {
	r, ok := o.request.(*ldap.BindRequest)
	return r, ok
}

func (o *Operation) SearchRequest() (*ldap.SearchRequest, bool) {
	r, ok := o.request.(*ldap.SearchRequest)
	return r, ok
}

func (o *Operation) ModifyRequest() (*ldap.ModifyRequest, bool) {
	r, ok := o.request.(*ldap.ModifyRequest)
	return r, ok
}

func (o *Operation) AddRequest() (*ldap.AddRequest, bool) {
	r, ok := o.request.(*ldap.AddRequest)
	return r, ok
}

func (o *Operation) DelRequest() (*ldap.DelRequest, bool) {
	r, ok := o.request.(*ldap.DelRequest)
	return r, ok
}

func (o *Operation) ModifyDNRequest() (*ldap.ModifyDNRequest, bool) {
	r, ok := o.request.(*ldap.ModifyDNRequest)
	return r, ok
}

func (o *Operation) CompareRequest() (*ldap.CompareRequest, bool) {
	r, ok := o.request.(*ldap.CompareRequest)
	return r, ok
}

func (o *Operation) ExtendedRequest() (*ldap.ExtendedRequest, bool) {
	r, ok := o.request.(*ldap.ExtendedRequest)
	return r, ok
}
