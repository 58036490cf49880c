package server

import (
	"context"
	"errors"
	"time"

	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/stats"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

// op property keys used between the executor and the response builder.
const (
	propSASLCreds     = "bind.serverSASLCreds"
	propExtendedValue = "extended.value"
)

// dispatch runs one queued operation through the interceptor chain and
// writes its response. Runs on the processor goroutine only.
func (c *conn) dispatch(msg *ldap.Message) {
	ctx := c.srv.baseCtx
	if t := c.srv.c.Behaviors.OperationTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	op, err := interceptor.NewOperation(
		c.connInfo(), msg.MessageID, msg.Op, c.connProps,
		func(resp *ldap.IntermediateResponse) error {
			return c.writeMessage(msg.MessageID, resp)
		},
	)
	if err != nil {
		// Response tags and other non-requests are never legal from a client.
		c.log.Warn().Int("msgid", msg.MessageID).Err(err).Msg("unexpected protocol op")
		c.closeWith(ldap.ResultProtocolError, "unexpected protocol op")
		return
	}

	res := c.srv.chain.Run(ctx, op, c.execute)
	c.finishBind(op, res)

	if err := c.writeMessage(msg.MessageID, c.buildResponse(op, res)); err != nil {
		if !errors.Is(err, errAbandoned) && !errors.Is(err, errClosing) {
			c.log.Debug().Err(err).Int("msgid", msg.MessageID).Msg("write failed")
		}
	}
}

// execute computes an operation's result against the store. It runs only
// when no pre hook short-circuited.
func (c *conn) execute(ctx context.Context, op *interceptor.Operation) *ldap.Result {
	switch op.Kind() {
	case interceptor.KindBind:
		return c.executeBind(op)
	case interceptor.KindSearch:
		return c.executeSearch(ctx, op)
	case interceptor.KindExtended:
		return c.executeExtended(op)
	default:
		return c.srv.store.Apply(ctx, op.Request())
	}
}

func (c *conn) executeBind(op *interceptor.Operation) *ldap.Result {
	c.srv.addStat(&c.srv.stats.binds, 1)
	stats.Server.Add("binds", 1)

	req, _ := op.BindRequest()
	if req.Version != 3 {
		return &ldap.Result{
			Code:              ldap.ResultProtocolError,
			DiagnosticMessage: "only LDAPv3 is supported",
		}
	}

	if req.SASL != nil {
		// A fresh bind aborts any in-progress negotiation without touching
		// the connection's completed authorization state.
		if c.sasl == nil || c.sasl.state != saslInProgress || c.sasl.mechanism != req.SASL.Mechanism {
			c.sasl = &saslSession{mechanism: req.SASL.Mechanism}
		}
		resp := c.sasl.step(c.srv.store, req.SASL)
		if resp.ServerSASLCreds != nil {
			op.Set(propSASLCreds, resp.ServerSASLCreds)
		}
		return &resp.Result
	}

	// A simple bind likewise aborts an in-progress SASL negotiation.
	c.sasl = nil

	if len(req.Password) == 0 {
		// Anonymous and unauthenticated binds succeed without authorization.
		return &ldap.Result{Code: ldap.ResultSuccess}
	}
	if req.DN == "" {
		return &ldap.Result{Code: ldap.ResultInvalidCredentials}
	}
	if !c.srv.store.Bind(req.DN, req.Password) {
		return &ldap.Result{Code: ldap.ResultInvalidCredentials}
	}
	return &ldap.Result{Code: ldap.ResultSuccess}
}

// finishBind commits authentication state once a bind fully completes.
// Runs after the chain, so a short-circuited bind also lands here.
func (c *conn) finishBind(op *interceptor.Operation, res *ldap.Result) {
	if op.Kind() != interceptor.KindBind {
		return
	}
	switch res.Code {
	case ldap.ResultSaslBindInProgress:
		// Negotiation continues; authorization state is untouched.
	case ldap.ResultSuccess:
		if c.sasl != nil && c.sasl.state == saslComplete {
			c.boundDN = c.sasl.boundDN
			c.sasl = nil
			return
		}
		c.sasl = nil
		req, _ := op.BindRequest()
		if req != nil && len(req.Password) > 0 {
			c.boundDN = req.DN
		} else {
			c.boundDN = ""
		}
	default:
		// A failed bind leaves the connection anonymous.
		c.sasl = nil
		c.boundDN = ""
	}
}

func (c *conn) executeSearch(ctx context.Context, op *interceptor.Operation) *ldap.Result {
	c.srv.addStat(&c.srv.stats.searches, 1)
	stats.Server.Add("searches", 1)

	req, _ := op.SearchRequest()
	if req.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeLimit)*time.Second)
		defer cancel()
	}

	err := c.srv.store.Search(ctx, req, func(e *store.Entry) error {
		if c.isAbandoned(op.MessageID()) {
			return errAbandoned
		}
		entry := &ldap.SearchResultEntry{DN: e.DN, Attributes: e.Attributes}
		c.srv.chain.ObserveSearchEntry(op, entry)
		return c.writeMessage(op.MessageID(), entry)
	})
	switch {
	case err == nil:
		return &ldap.Result{Code: ldap.ResultSuccess}
	case errors.Is(err, errAbandoned), errors.Is(err, errClosing):
		// The final result will be suppressed on write anyway.
		return &ldap.Result{Code: ldap.ResultSuccess}
	default:
		var lerr *ldap.Error
		if errors.As(err, &lerr) {
			return lerr.Result()
		}
		return &ldap.Result{Code: ldap.ResultOther, DiagnosticMessage: err.Error()}
	}
}

func (c *conn) executeExtended(op *interceptor.Operation) *ldap.Result {
	req, _ := op.ExtendedRequest()
	switch req.OID {
	case ldap.WhoAmIOID:
		authzid := ""
		if c.boundDN != "" {
			authzid = "dn:" + c.boundDN
		}
		op.Set(propExtendedValue, []byte(authzid))
		return &ldap.Result{Code: ldap.ResultSuccess}
	default:
		return &ldap.Result{
			Code:              ldap.ResultProtocolError,
			DiagnosticMessage: "unsupported extended operation " + req.OID,
		}
	}
}

// buildResponse renders the chain's result as the response op matching the
// request kind.
func (c *conn) buildResponse(op *interceptor.Operation, res *ldap.Result) ldap.Op {
	switch op.Kind() {
	case interceptor.KindBind:
		resp := &ldap.BindResponse{Result: *res}
		if creds, ok := op.Get(propSASLCreds); ok {
			resp.ServerSASLCreds = creds.([]byte)
		}
		return resp
	case interceptor.KindSearch:
		return &ldap.SearchResultDone{Result: *res}
	case interceptor.KindModify:
		return &ldap.ModifyResponse{Result: *res}
	case interceptor.KindAdd:
		return &ldap.AddResponse{Result: *res}
	case interceptor.KindDelete:
		return &ldap.DelResponse{Result: *res}
	case interceptor.KindModifyDN:
		return &ldap.ModifyDNResponse{Result: *res}
	case interceptor.KindCompare:
		return &ldap.CompareResponse{Result: *res}
	default: // extended
		// No responseName: WhoAmI responses carry none, and the notice of
		// disconnection is written directly by closeWith.
		resp := &ldap.ExtendedResponse{Result: *res}
		if value, ok := op.Get(propExtendedValue); ok {
			resp.Value = value.([]byte)
		}
		return resp
	}
}
