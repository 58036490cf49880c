package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

// saslState tracks one connection's SASL negotiation.
type saslState int

const (
	saslNotStarted saslState = iota
	saslInProgress
	saslComplete
	saslFailed
)

// saslSession is one multi-step SASL bind. A connection holds at most one;
// a new bind request while a session is in progress aborts it without
// touching the connection's completed authorization state.
type saslSession struct {
	state     saslState
	mechanism string
	challenge []byte // CRAM-MD5 only
	boundDN   string
}

// step advances the session with the client's next credentials. It returns
// the bind response to send; the session reaches saslComplete or saslFailed
// when the response code is terminal.
func (s *saslSession) step(st *store.Store, creds *ldap.SASLCredentials) *ldap.BindResponse {
	switch s.mechanism {
	case "PLAIN":
		return s.stepPlain(st, creds)
	case "CRAM-MD5":
		return s.stepCRAMMD5(st, creds)
	default:
		s.state = saslFailed
		return &ldap.BindResponse{Result: ldap.Result{
			Code:              ldap.ResultAuthMethodNotSupported,
			DiagnosticMessage: fmt.Sprintf("unsupported SASL mechanism %q", s.mechanism),
		}}
	}
}

// stepPlain completes in a single round: credentials are
// authzid NUL authcid NUL password (RFC 4616), authcid holding the DN.
func (s *saslSession) stepPlain(st *store.Store, creds *ldap.SASLCredentials) *ldap.BindResponse {
	parts := bytes.SplitN(creds.Credentials, []byte{0}, 3)
	if len(parts) != 3 {
		s.state = saslFailed
		return saslFailure("malformed PLAIN credentials")
	}
	authcid, password := string(parts[1]), parts[2]
	if !st.Bind(authcid, password) {
		s.state = saslFailed
		return saslFailure("")
	}
	s.state = saslComplete
	s.boundDN = authcid
	return &ldap.BindResponse{Result: ldap.Result{Code: ldap.ResultSuccess}}
}

// stepCRAMMD5 needs two rounds: an empty (or absent) first set of
// credentials yields the server challenge with saslBindInProgress; the
// second round carries "username SP hex(HMAC-MD5(password, challenge))".
func (s *saslSession) stepCRAMMD5(st *store.Store, creds *ldap.SASLCredentials) *ldap.BindResponse {
	if s.state == saslNotStarted {
		s.challenge = cramChallenge()
		s.state = saslInProgress
		return &ldap.BindResponse{
			Result:          ldap.Result{Code: ldap.ResultSaslBindInProgress},
			ServerSASLCreds: s.challenge,
		}
	}

	fields := bytes.SplitN(creds.Credentials, []byte{' '}, 2)
	if len(fields) != 2 {
		s.state = saslFailed
		return saslFailure("malformed CRAM-MD5 response")
	}
	dn, digest := string(fields[0]), string(fields[1])

	entry, ok := st.Get(dn)
	if !ok {
		s.state = saslFailed
		return saslFailure("")
	}
	// CRAM-MD5 requires the plaintext secret on the server side; hashed
	// userPassword values cannot satisfy it.
	for _, password := range entry.Values("userPassword") {
		if bytes.HasPrefix(password, []byte("{")) {
			continue
		}
		mac := hmac.New(md5.New, password)
		mac.Write(s.challenge)
		if hmac.Equal([]byte(digest), []byte(hex.EncodeToString(mac.Sum(nil)))) {
			s.state = saslComplete
			s.boundDN = dn
			return &ldap.BindResponse{Result: ldap.Result{Code: ldap.ResultSuccess}}
		}
	}
	s.state = saslFailed
	return saslFailure("")
}

func saslFailure(diagnostic string) *ldap.BindResponse {
	return &ldap.BindResponse{Result: ldap.Result{
		Code:              ldap.ResultInvalidCredentials,
		DiagnosticMessage: diagnostic,
	}}
}

// cramChallenge builds the RFC 2195 "<random.timestamp@host>" nonce.
func cramChallenge() []byte {
	var random [8]byte
	rand.Read(random[:])
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return []byte(fmt.Sprintf("<%s.%d@%s>",
		hex.EncodeToString(random[:]), time.Now().UnixNano(), host))
}

// SupportedSASLMechanisms lists the mechanisms the server negotiates.
func SupportedSASLMechanisms() []string {
	return []string{"PLAIN", "CRAM-MD5"}
}
