package ldap

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
)

func roundTripMessage(t *testing.T, msg *Message) *Message {
	t.Helper()
	encoded := msg.Encode()
	decoded, n, err := ParseMessage(encoded)
	if err != nil {
		t.Fatalf("decode %T: %v", msg.Op, err)
	}
	if n != len(encoded) {
		t.Fatalf("decode %T consumed %d of %d bytes", msg.Op, n, len(encoded))
	}
	if !reflect.DeepEqual(msg, decoded) {
		t.Fatalf("round trip mismatch for %T:\n sent %#v\n got  %#v", msg.Op, msg, decoded)
	}
	return decoded
}

func TestRoundTripEveryOperation(t *testing.T) {
	ops := []Op{
		&BindRequest{Version: 3, DN: "cn=babs,dc=example,dc=com", Password: []byte("secret")},
		&BindRequest{Version: 3, DN: "", SASL: &SASLCredentials{Mechanism: "CRAM-MD5", Credentials: []byte("resp")}},
		&BindResponse{Result: Result{Code: ResultSaslBindInProgress}, ServerSASLCreds: []byte("<nonce@host>")},
		&UnbindRequest{},
		&SearchRequest{
			BaseDN:       "dc=example,dc=com",
			Scope:        ScopeWholeSubtree,
			DerefAliases: DerefNever,
			SizeLimit:    100,
			TimeLimit:    30,
			TypesOnly:    true,
			Filter: &Filter{Kind: FilterAnd, Subs: []*Filter{
				{Kind: FilterEquality, Attribute: "objectClass", Value: []byte("person")},
				{Kind: FilterNot, Subs: []*Filter{
					{Kind: FilterPresent, Attribute: "drink"},
				}},
				{Kind: FilterSubstrings, Attribute: "cn", Substrings: Substrings{
					Initial: []byte("ba"),
					Any:     [][]byte{[]byte("b")},
					Final:   []byte("s"),
				}},
				{Kind: FilterGreaterOrEqual, Attribute: "employeeNumber", Value: []byte("5")},
			}},
			Attributes: []string{"cn", "mail"},
		},
		&SearchResultEntry{
			DN: "cn=babs,dc=example,dc=com",
			Attributes: []Attribute{
				{Type: "cn", Values: [][]byte{[]byte("babs")}},
				{Type: "mail", Values: [][]byte{[]byte("babs@example.com"), []byte("bj@example.com")}},
			},
		},
		&SearchResultReference{URIs: []string{"ldap://other.example.com/dc=example,dc=com"}},
		&SearchResultDone{Result: Result{Code: ResultSuccess, Referrals: []string{"ldap://b.example.com/"}}},
		&ModifyRequest{
			DN: "cn=babs,dc=example,dc=com",
			Changes: []Modification{
				{Op: ModReplace, Attribute: Attribute{Type: "mail", Values: [][]byte{[]byte("new@example.com")}}},
				{Op: ModDelete, Attribute: Attribute{Type: "drink"}},
			},
		},
		&ModifyResponse{Result: Result{Code: ResultNoSuchAttribute, DiagnosticMessage: "no drink"}},
		&AddRequest{
			DN:         "cn=new,dc=example,dc=com",
			Attributes: []Attribute{{Type: "cn", Values: [][]byte{[]byte("new")}}},
		},
		&AddResponse{Result: Result{Code: ResultSuccess}},
		&DelRequest{DN: "cn=old,dc=example,dc=com"},
		&DelResponse{Result: Result{Code: ResultNoSuchObject, MatchedDN: "dc=example,dc=com"}},
		&ModifyDNRequest{DN: "cn=a,dc=example,dc=com", NewRDN: "cn=b", DeleteOldRDN: true, NewSuperior: "ou=people,dc=example,dc=com"},
		&ModifyDNResponse{Result: Result{Code: ResultSuccess}},
		&CompareRequest{DN: "cn=babs,dc=example,dc=com", Attribute: "employeeNumber", Value: []byte("7")},
		&CompareResponse{Result: Result{Code: ResultCompareTrue}},
		&AbandonRequest{IDToAbandon: 4},
		&ExtendedRequest{OID: WhoAmIOID, Value: []byte("opaque")},
		&ExtendedResponse{Result: Result{Code: ResultSuccess}, OID: WhoAmIOID, Value: []byte("dn:cn=babs")},
		&IntermediateResponse{OID: "1.3.6.1.4.1.4203.1.9.1.4", Value: []byte("state")},
	}
	for i, op := range ops {
		roundTripMessage(t, &Message{MessageID: i + 1, Op: op})
	}
}

func TestRoundTripControls(t *testing.T) {
	msg := &Message{
		MessageID: 3,
		Op:        &DelRequest{DN: "cn=x,dc=example,dc=com"},
		Controls: []Control{
			{OID: "1.2.840.113556.1.4.805", Criticality: true, Value: []byte{0x30, 0x00}},
			{OID: "2.16.840.1.113730.3.4.2"},
		},
	}
	roundTripMessage(t, msg)
}

func TestEmptyControlListOmitted(t *testing.T) {
	msg := &Message{MessageID: 1, Op: &UnbindRequest{}, Controls: []Control{}}

	decoded, _, err := ParseMessage(msg.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Controls) != 0 {
		t.Fatalf("got %d controls, want none", len(decoded.Controls))
	}
}

func TestParsePassesThroughIncomplete(t *testing.T) {
	full := (&Message{MessageID: 9, Op: &DelRequest{DN: "cn=x"}}).Encode()

	_, _, err := ParseMessage(full[:3])
	if !errors.Is(err, ber.ErrIncomplete) {
		t.Fatalf("got %v, want incomplete", err)
	}
}

func TestParseConsumesOneMessage(t *testing.T) {
	first := (&Message{MessageID: 1, Op: &DelRequest{DN: "cn=a"}}).Encode()
	second := (&Message{MessageID: 2, Op: &UnbindRequest{}}).Encode()
	buf := append(append([]byte{}, first...), second...)

	msg, n, err := ParseMessage(buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != 1 || n != len(first) {
		t.Fatalf("first parse: id=%d n=%d", msg.MessageID, n)
	}

	msg, n, err = ParseMessage(buf[n:])
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != 2 || n != len(second) {
		t.Fatalf("second parse: id=%d n=%d", msg.MessageID, n)
	}
}

func TestShapeErrorsShareDecodeTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
	}{
		{"not a sequence", ber.Encode(ber.NewOctetString([]byte("x")))},
		{"missing protocolOp", ber.Encode(ber.NewSequence(ber.NewInteger(1)))},
		{"messageID wrong type", ber.Encode(ber.NewSequence(
			ber.NewString("1"), ber.NewApplicationPrimitive(ApplicationDelRequest, []byte("cn=x"))))},
		{"negative messageID", ber.Encode(ber.NewSequence(
			ber.NewInteger(-1), ber.NewApplicationPrimitive(ApplicationDelRequest, []byte("cn=x"))))},
		{"unknown op tag", ber.Encode(ber.NewSequence(
			ber.NewInteger(1), ber.NewApplication(30)))},
		{"protocolOp not application class", ber.Encode(ber.NewSequence(
			ber.NewInteger(1), ber.NewSequence()))},
		{"bind missing fields", ber.Encode(ber.NewSequence(
			ber.NewInteger(1), ber.NewApplication(ApplicationBindRequest, ber.NewInteger(3))))},
	}
	for _, c := range cases {
		_, _, err := ParseMessage(c.buf)
		var derr *ber.DecodeError
		if !errors.As(err, &derr) {
			t.Fatalf("%s: got %v, want a decode error", c.name, err)
		}
	}
}

func TestFilterDecodeValidation(t *testing.T) {
	bad := []*ber.Element{
		// empty and
		ber.NewContextConstructed(0),
		// not with no component
		ber.NewContextConstructed(2),
		// substrings with no components
		ber.NewContextConstructed(4, ber.NewString("cn"), ber.NewSequence()),
		// substrings with two initials
		ber.NewContextConstructed(4, ber.NewString("cn"), ber.NewSequence(
			ber.NewContext(0, []byte("a")), ber.NewContext(0, []byte("b")))),
		// unknown filter tag
		ber.NewContextConstructed(9),
		// wrong class
		ber.NewSequence(),
	}
	for i, el := range bad {
		if _, err := decodeFilter(el); err == nil {
			t.Fatalf("case %d should have been rejected", i)
		}
	}
}

func TestFilterString(t *testing.T) {
	f := &Filter{Kind: FilterAnd, Subs: []*Filter{
		{Kind: FilterEquality, Attribute: "objectClass", Value: []byte("person")},
		{Kind: FilterOr, Subs: []*Filter{
			{Kind: FilterPresent, Attribute: "cn"},
			{Kind: FilterGreaterOrEqual, Attribute: "uidNumber", Value: []byte("1000")},
		}},
	}}

	want := "(&(objectClass=person)(|(cn=*)(uidNumber>=1000)))"
	if got := f.String(); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
