package server

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

const (
	babsDN  = "cn=babs,ou=people,dc=example,dc=com"
	baseDN  = "dc=example,dc=com"
	babsPwd = "secret"
)

func seedEntries(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.DefaultSchema())
	adds := []*ldap.AddRequest{
		{DN: baseDN, Attributes: []ldap.Attribute{
			{Type: "objectClass", Values: [][]byte{[]byte("domain")}},
			{Type: "dc", Values: [][]byte{[]byte("example")}},
		}},
		{DN: "ou=people," + baseDN, Attributes: []ldap.Attribute{
			{Type: "objectClass", Values: [][]byte{[]byte("organizationalUnit")}},
			{Type: "ou", Values: [][]byte{[]byte("people")}},
		}},
		{DN: babsDN, Attributes: []ldap.Attribute{
			{Type: "objectClass", Values: [][]byte{[]byte("person")}},
			{Type: "cn", Values: [][]byte{[]byte("babs")}},
			{Type: "userPassword", Values: [][]byte{[]byte(babsPwd)}},
			{Type: "employeeNumber", Values: [][]byte{[]byte("7")}},
		}},
	}
	for _, req := range adds {
		if err := st.Add(context.Background(), req); err != nil {
			t.Fatalf("seed %s: %v", req.DN, err)
		}
	}
	return st
}

// startServer brings up a server on a loopback listener and tears it down
// with the test.
func startServer(t *testing.T, ics ...interceptor.Interceptor) string {
	t.Helper()
	logger := zerolog.Nop()
	chain := interceptor.NewChain(&logger)
	if err := chain.Register(ics...); err != nil {
		t.Fatal(err)
	}

	s, err := NewServer(
		Logger(logger),
		Config(&config.Config{BaseDN: baseDN}),
		Store(seedEntries(t)),
		Chain(chain),
	)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return ln.Addr().String()
}

// testClient speaks the wire protocol over one connection.
type testClient struct {
	t   *testing.T
	nc  net.Conn
	buf []byte
}

func dialServer(t *testing.T, addr string) *testClient {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { nc.Close() })
	return &testClient{t: t, nc: nc}
}

func (c *testClient) send(msgs ...*ldap.Message) {
	c.t.Helper()
	var out []byte
	for _, m := range msgs {
		out = append(out, m.Encode()...)
	}
	if _, err := c.nc.Write(out); err != nil {
		c.t.Fatal(err)
	}
}

func (c *testClient) recv() *ldap.Message {
	c.t.Helper()
	chunk := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for {
		msg, n, err := ldap.ParseMessage(c.buf)
		if err == nil {
			c.buf = c.buf[n:]
			return msg
		}
		if !errors.Is(err, ber.ErrIncomplete) {
			c.t.Fatalf("server sent undecodable bytes: %v", err)
		}
		c.nc.SetReadDeadline(deadline)
		n, err = c.nc.Read(chunk)
		if err != nil {
			c.t.Fatalf("read: %v", err)
		}
		c.buf = append(c.buf, chunk[:n]...)
	}
}

func (c *testClient) bind(msgid int, dn, password string) *ldap.BindResponse {
	c.t.Helper()
	c.send(&ldap.Message{MessageID: msgid, Op: &ldap.BindRequest{
		Version: 3, DN: dn, Password: []byte(password),
	}})
	msg := c.recv()
	resp, ok := msg.Op.(*ldap.BindResponse)
	if !ok || msg.MessageID != msgid {
		c.t.Fatalf("expected bind response for %d, got %T (id %d)", msgid, msg.Op, msg.MessageID)
	}
	return resp
}

func TestSimpleBindAndWhoAmI(t *testing.T) {
	c := dialServer(t, startServer(t))

	if resp := c.bind(1, babsDN, babsPwd); resp.Code != ldap.ResultSuccess {
		t.Fatalf("bind failed: %d %s", resp.Code, resp.DiagnosticMessage)
	}

	c.send(&ldap.Message{MessageID: 2, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	msg := c.recv()
	resp, ok := msg.Op.(*ldap.ExtendedResponse)
	if !ok || resp.Code != ldap.ResultSuccess {
		t.Fatalf("whoami failed: %#v", msg.Op)
	}
	if got := string(resp.Value); got != "dn:"+babsDN {
		t.Fatalf("whoami = %q", got)
	}
}

func TestBindFailureLeavesConnectionAnonymous(t *testing.T) {
	c := dialServer(t, startServer(t))

	if resp := c.bind(1, babsDN, babsPwd); resp.Code != ldap.ResultSuccess {
		t.Fatal("good bind rejected")
	}
	if resp := c.bind(2, babsDN, "wrong"); resp.Code != ldap.ResultInvalidCredentials {
		t.Fatalf("bad bind: %d", resp.Code)
	}

	c.send(&ldap.Message{MessageID: 3, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	msg := c.recv()
	if resp := msg.Op.(*ldap.ExtendedResponse); len(resp.Value) != 0 {
		t.Fatalf("authorization should have been dropped, got %q", resp.Value)
	}
}

func TestBindVersionRejected(t *testing.T) {
	c := dialServer(t, startServer(t))

	c.send(&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
		Version: 2, DN: babsDN, Password: []byte(babsPwd),
	}})
	msg := c.recv()
	if resp := msg.Op.(*ldap.BindResponse); resp.Code != ldap.ResultProtocolError {
		t.Fatalf("v2 bind: %d", resp.Code)
	}
}

func TestBindOrdering(t *testing.T) {
	c := dialServer(t, startServer(t))

	// One write carrying a bind immediately followed by a search: the bind
	// response must still come back first.
	c.send(
		&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
			Version: 3, DN: babsDN, Password: []byte(babsPwd),
		}},
		&ldap.Message{MessageID: 2, Op: &ldap.SearchRequest{
			BaseDN: baseDN,
			Scope:  ldap.ScopeWholeSubtree,
			Filter: &ldap.Filter{Kind: ldap.FilterPresent, Attribute: "objectClass"},
		}},
	)

	first := c.recv()
	if _, ok := first.Op.(*ldap.BindResponse); !ok || first.MessageID != 1 {
		t.Fatalf("first response was %T (id %d), want the bind response", first.Op, first.MessageID)
	}

	entries := 0
	for {
		msg := c.recv()
		switch op := msg.Op.(type) {
		case *ldap.SearchResultEntry:
			entries++
		case *ldap.SearchResultDone:
			if op.Code != ldap.ResultSuccess {
				t.Fatalf("search failed: %d", op.Code)
			}
			if entries != 3 {
				t.Fatalf("got %d entries, want 3", entries)
			}
			return
		default:
			t.Fatalf("unexpected op %T", msg.Op)
		}
	}
}

func TestSASLPlainBind(t *testing.T) {
	c := dialServer(t, startServer(t))

	creds := append([]byte{0}, []byte(babsDN)...)
	creds = append(creds, 0)
	creds = append(creds, []byte(babsPwd)...)
	c.send(&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "PLAIN", Credentials: creds},
	}})

	msg := c.recv()
	if resp := msg.Op.(*ldap.BindResponse); resp.Code != ldap.ResultSuccess {
		t.Fatalf("PLAIN bind: %d %s", resp.Code, resp.DiagnosticMessage)
	}

	c.send(&ldap.Message{MessageID: 2, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	msg = c.recv()
	if got := string(msg.Op.(*ldap.ExtendedResponse).Value); got != "dn:"+babsDN {
		t.Fatalf("whoami after PLAIN = %q", got)
	}
}

func TestSASLCRAMMD5Bind(t *testing.T) {
	c := dialServer(t, startServer(t))

	// Round one: no credentials, expect the challenge.
	c.send(&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "CRAM-MD5"},
	}})
	msg := c.recv()
	resp := msg.Op.(*ldap.BindResponse)
	if resp.Code != ldap.ResultSaslBindInProgress {
		t.Fatalf("round one: %d", resp.Code)
	}
	if len(resp.ServerSASLCreds) == 0 {
		t.Fatal("round one carried no challenge")
	}

	// Round two: username and the keyed digest of the challenge.
	mac := hmac.New(md5.New, []byte(babsPwd))
	mac.Write(resp.ServerSASLCreds)
	proof := babsDN + " " + hex.EncodeToString(mac.Sum(nil))
	c.send(&ldap.Message{MessageID: 2, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "CRAM-MD5", Credentials: []byte(proof)},
	}})
	msg = c.recv()
	if resp := msg.Op.(*ldap.BindResponse); resp.Code != ldap.ResultSuccess {
		t.Fatalf("round two: %d %s", resp.Code, resp.DiagnosticMessage)
	}

	c.send(&ldap.Message{MessageID: 3, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	msg = c.recv()
	if got := string(msg.Op.(*ldap.ExtendedResponse).Value); got != "dn:"+babsDN {
		t.Fatalf("whoami after CRAM-MD5 = %q", got)
	}
}

func TestNewBindAbortsSASLInProgress(t *testing.T) {
	c := dialServer(t, startServer(t))

	if resp := c.bind(1, babsDN, babsPwd); resp.Code != ldap.ResultSuccess {
		t.Fatal("initial bind rejected")
	}

	// Start CRAM-MD5 and hold on to the challenge.
	c.send(&ldap.Message{MessageID: 2, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "CRAM-MD5"},
	}})
	resp := c.recv().Op.(*ldap.BindResponse)
	if resp.Code != ldap.ResultSaslBindInProgress {
		t.Fatalf("round one: %d", resp.Code)
	}
	challenge := resp.ServerSASLCreds

	// The pending negotiation must not disturb the committed identity.
	c.send(&ldap.Message{MessageID: 3, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	if got := string(c.recv().Op.(*ldap.ExtendedResponse).Value); got != "dn:"+babsDN {
		t.Fatalf("whoami during negotiation = %q", got)
	}

	// A fresh simple bind aborts the negotiation.
	if resp := c.bind(4, babsDN, babsPwd); resp.Code != ldap.ResultSuccess {
		t.Fatal("aborting bind rejected")
	}

	// The old challenge's proof can no longer complete the aborted session:
	// the server starts a new negotiation instead.
	mac := hmac.New(md5.New, []byte(babsPwd))
	mac.Write(challenge)
	proof := babsDN + " " + hex.EncodeToString(mac.Sum(nil))
	c.send(&ldap.Message{MessageID: 5, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "CRAM-MD5", Credentials: []byte(proof)},
	}})
	resp = c.recv().Op.(*ldap.BindResponse)
	if resp.Code == ldap.ResultSuccess {
		t.Fatal("stale proof completed an aborted negotiation")
	}
	if resp.Code != ldap.ResultSaslBindInProgress {
		t.Fatalf("got %d, want saslBindInProgress for a fresh negotiation", resp.Code)
	}
	if string(resp.ServerSASLCreds) == string(challenge) {
		t.Fatal("aborted session's challenge was reused")
	}

	c.send(&ldap.Message{MessageID: 6, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})
	if got := string(c.recv().Op.(*ldap.ExtendedResponse).Value); got != "dn:"+babsDN {
		t.Fatalf("whoami after abort = %q", got)
	}
}

func TestSASLUnsupportedMechanism(t *testing.T) {
	c := dialServer(t, startServer(t))

	c.send(&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
		Version: 3,
		SASL:    &ldap.SASLCredentials{Mechanism: "GSSAPI"},
	}})
	msg := c.recv()
	if resp := msg.Op.(*ldap.BindResponse); resp.Code != ldap.ResultAuthMethodNotSupported {
		t.Fatalf("got %d, want authMethodNotSupported", resp.Code)
	}
}

// gate blocks search dispatch until released, so tests can interleave other
// messages deterministically.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) Name() string { return "gate" }

func (g *gate) PreSearch(ctx context.Context, op *interceptor.Operation) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func TestAbandonSuppressesResponses(t *testing.T) {
	g := newGate()
	c := dialServer(t, startServer(t, g))

	c.send(&ldap.Message{MessageID: 2, Op: &ldap.SearchRequest{
		BaseDN: baseDN,
		Scope:  ldap.ScopeWholeSubtree,
		Filter: &ldap.Filter{Kind: ldap.FilterPresent, Attribute: "objectClass"},
	}})
	<-g.entered

	// The reader handles the abandon while the search is still blocked in
	// the processor, then the extended request queues behind it.
	c.send(
		&ldap.Message{MessageID: 3, Op: &ldap.AbandonRequest{IDToAbandon: 2}},
		&ldap.Message{MessageID: 4, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}},
	)
	time.Sleep(50 * time.Millisecond)
	close(g.release)

	msg := c.recv()
	if msg.MessageID != 4 {
		t.Fatalf("received a response for %d; abandoned search leaked output", msg.MessageID)
	}
	if _, ok := msg.Op.(*ldap.ExtendedResponse); !ok {
		t.Fatalf("unexpected op %T", msg.Op)
	}
}

func TestDuplicateMessageIDClosesConnection(t *testing.T) {
	g := newGate()
	c := dialServer(t, startServer(t, g))

	search := &ldap.Message{MessageID: 5, Op: &ldap.SearchRequest{
		BaseDN: baseDN,
		Scope:  ldap.ScopeBaseObject,
		Filter: &ldap.Filter{Kind: ldap.FilterPresent, Attribute: "objectClass"},
	}}
	c.send(search)
	<-g.entered

	// Reusing the in-flight message ID is a protocol error.
	c.send(&ldap.Message{MessageID: 5, Op: &ldap.ExtendedRequest{OID: ldap.WhoAmIOID}})

	msg := c.recv()
	notice, ok := msg.Op.(*ldap.ExtendedResponse)
	if !ok || msg.MessageID != 0 {
		t.Fatalf("expected an unsolicited notice, got %T (id %d)", msg.Op, msg.MessageID)
	}
	if notice.OID != ldap.NoticeOfDisconnectionOID || notice.Code != ldap.ResultProtocolError {
		t.Fatalf("notice = %s code %d", notice.OID, notice.Code)
	}
	close(g.release)
}

func TestMalformedBytesCloseConnection(t *testing.T) {
	c := dialServer(t, startServer(t))

	// An indefinite-length SEQUENCE is not valid framing.
	if _, err := c.nc.Write([]byte{0x30, 0x80, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	msg := c.recv()
	notice, ok := msg.Op.(*ldap.ExtendedResponse)
	if !ok || notice.OID != ldap.NoticeOfDisconnectionOID {
		t.Fatalf("expected a notice of disconnection, got %#v", msg.Op)
	}
	if notice.Code != ldap.ResultProtocolError {
		t.Fatalf("notice code = %d", notice.Code)
	}
}

func TestSplitMessageIsReassembled(t *testing.T) {
	c := dialServer(t, startServer(t))

	full := (&ldap.Message{MessageID: 1, Op: &ldap.BindRequest{
		Version: 3, DN: babsDN, Password: []byte(babsPwd),
	}}).Encode()

	if _, err := c.nc.Write(full[:3]); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := c.nc.Write(full[3:]); err != nil {
		t.Fatal(err)
	}

	msg := c.recv()
	if resp := msg.Op.(*ldap.BindResponse); resp.Code != ldap.ResultSuccess {
		t.Fatalf("split bind failed: %d", resp.Code)
	}
}

func TestUnbindClosesConnection(t *testing.T) {
	c := dialServer(t, startServer(t))

	c.send(&ldap.Message{MessageID: 1, Op: &ldap.UnbindRequest{}})

	c.nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	chunk := make([]byte, 64)
	if n, err := c.nc.Read(chunk); err == nil {
		t.Fatalf("expected the server to close, read %d bytes", n)
	}
}

func TestUnsupportedExtendedOperation(t *testing.T) {
	c := dialServer(t, startServer(t))

	c.send(&ldap.Message{MessageID: 1, Op: &ldap.ExtendedRequest{OID: "1.2.3.4"}})
	msg := c.recv()
	resp := msg.Op.(*ldap.ExtendedResponse)
	if resp.Code != ldap.ResultProtocolError {
		t.Fatalf("got %d, want protocolError", resp.Code)
	}
	if resp.OID != "" {
		t.Fatalf("error response should carry no responseName, got %q", resp.OID)
	}
}

func TestNewServerDefaultsTracer(t *testing.T) {
	s, err := NewServer(
		Config(&config.Config{BaseDN: baseDN}),
		Store(seedEntries(t)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if s.tracer == nil {
		t.Fatal("server should fall back to a noop tracer")
	}
	if s.chain == nil {
		t.Fatal("server should fall back to an empty chain")
	}
}

func TestStoreOperationsOverTheWire(t *testing.T) {
	c := dialServer(t, startServer(t))

	c.send(&ldap.Message{MessageID: 1, Op: &ldap.AddRequest{
		DN: "cn=joe,ou=people," + baseDN,
		Attributes: []ldap.Attribute{
			{Type: "objectClass", Values: [][]byte{[]byte("person")}},
			{Type: "cn", Values: [][]byte{[]byte("joe")}},
			{Type: "employeeNumber", Values: [][]byte{[]byte("12")}},
		},
	}})
	if resp := c.recv().Op.(*ldap.AddResponse); resp.Code != ldap.ResultSuccess {
		t.Fatalf("add: %d %s", resp.Code, resp.DiagnosticMessage)
	}

	// The integer rule normalizes the assertion, so leading zeros match.
	c.send(&ldap.Message{MessageID: 2, Op: &ldap.CompareRequest{
		DN: "cn=joe,ou=people," + baseDN, Attribute: "employeeNumber", Value: []byte("012"),
	}})
	if resp := c.recv().Op.(*ldap.CompareResponse); resp.Code != ldap.ResultCompareTrue {
		t.Fatalf("compare: %d", resp.Code)
	}

	c.send(&ldap.Message{MessageID: 3, Op: &ldap.DelRequest{DN: "cn=joe,ou=people," + baseDN}})
	if resp := c.recv().Op.(*ldap.DelResponse); resp.Code != ldap.ResultSuccess {
		t.Fatalf("del: %d", resp.Code)
	}
}
