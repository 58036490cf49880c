package interceptor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

const otpSecret = "JBSWY3DPEHPK3PXP"

func otpStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.DefaultSchema())
	adds := []*ldap.AddRequest{
		{DN: "dc=example,dc=com", Attributes: []ldap.Attribute{
			{Type: "dc", Values: [][]byte{[]byte("example")}},
		}},
		{DN: "cn=otpuser,dc=example,dc=com", Attributes: []ldap.Attribute{
			{Type: "cn", Values: [][]byte{[]byte("otpuser")}},
			{Type: "userPassword", Values: [][]byte{[]byte("mysecret")}},
			{Type: "otpSecret", Values: [][]byte{[]byte(otpSecret)}},
		}},
		{DN: "cn=plain,dc=example,dc=com", Attributes: []ldap.Attribute{
			{Type: "cn", Values: [][]byte{[]byte("plain")}},
			{Type: "userPassword", Values: [][]byte{[]byte("mysecret")}},
		}},
	}
	for _, req := range adds {
		if err := st.Add(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func bindOp(t *testing.T, dn, password string) *Operation {
	t.Helper()
	op, err := NewOperation(ConnInfo{ID: 1}, 1, &ldap.BindRequest{
		Version: 3, DN: dn, Password: []byte(password),
	}, map[string]interface{}{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return op
}

// invalidCode returns a six-digit code that no accepted time window would
// validate right now.
func invalidCode(t *testing.T) string {
	t.Helper()
	valid := map[string]bool{}
	now := time.Now()
	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := totp.GenerateCode(otpSecret, now.Add(offset))
		if err != nil {
			t.Fatal(err)
		}
		valid[code] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatal("no invalid candidate found")
	return ""
}

func TestTOTPGuardStripsValidCode(t *testing.T) {
	guard := NewTOTPGuard(otpStore(t))

	code, err := totp.GenerateCode(otpSecret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	op := bindOp(t, "cn=otpuser,dc=example,dc=com", "mysecret"+code)

	if err := guard.PreBind(context.Background(), op); err != nil {
		t.Fatalf("valid code rejected: %v", err)
	}
	req, _ := op.BindRequest()
	if string(req.Password) != "mysecret" {
		t.Fatalf("password should have been stripped, got %q", req.Password)
	}
}

func TestTOTPGuardRejectsBadCode(t *testing.T) {
	guard := NewTOTPGuard(otpStore(t))

	op := bindOp(t, "cn=otpuser,dc=example,dc=com", "mysecret"+invalidCode(t))
	err := guard.PreBind(context.Background(), op)
	var lerr *ldap.Error
	if !errors.As(err, &lerr) || lerr.Code != ldap.ResultInvalidCredentials {
		t.Fatalf("got %v, want invalidCredentials", err)
	}
}

func TestTOTPGuardRejectsMissingCode(t *testing.T) {
	guard := NewTOTPGuard(otpStore(t))

	op := bindOp(t, "cn=otpuser,dc=example,dc=com", "mysecret")
	err := guard.PreBind(context.Background(), op)
	var lerr *ldap.Error
	if !errors.As(err, &lerr) || lerr.Code != ldap.ResultInvalidCredentials {
		t.Fatalf("got %v, want invalidCredentials", err)
	}
}

func TestTOTPGuardIgnoresEntriesWithoutSecret(t *testing.T) {
	guard := NewTOTPGuard(otpStore(t))

	op := bindOp(t, "cn=plain,dc=example,dc=com", "mysecret")
	if err := guard.PreBind(context.Background(), op); err != nil {
		t.Fatalf("entry without otpSecret should pass through: %v", err)
	}
	req, _ := op.BindRequest()
	if string(req.Password) != "mysecret" {
		t.Fatal("password must be untouched")
	}
}
