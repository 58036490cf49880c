package interceptor

import (
	"context"

	"github.com/pquerna/otp/totp"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

// TOTPGuard enforces time-based one-time passwords on simple binds. When
// the target entry carries an otpSecret attribute, the last six characters
// of the bind password must be a valid TOTP code; the guard strips them so
// the store verifies only the static part.
type TOTPGuard struct {
	store *store.Store
}

func NewTOTPGuard(s *store.Store) *TOTPGuard {
	return &TOTPGuard{store: s}
}

func (g *TOTPGuard) Name() string { return "totp" }

func (g *TOTPGuard) PreBind(ctx context.Context, op *Operation) error {
	req, ok := op.BindRequest()
	if !ok || req.SASL != nil || len(req.Password) == 0 {
		return nil
	}
	entry, ok := g.store.Get(req.DN)
	if !ok {
		return nil // let the store report invalidCredentials uniformly
	}
	secrets := entry.Values("otpSecret")
	if len(secrets) == 0 {
		return nil
	}

	if len(req.Password) <= 6 {
		return ldap.NewError(ldap.ResultInvalidCredentials, "missing one-time password")
	}
	code := string(req.Password[len(req.Password)-6:])
	valid := false
	for _, secret := range secrets {
		if totp.Validate(code, string(secret)) {
			valid = true
			break
		}
	}
	if !valid {
		return ldap.NewError(ldap.ResultInvalidCredentials, "invalid one-time password")
	}

	rewritten := *req
	rewritten.Password = req.Password[:len(req.Password)-6]
	return op.ReplaceRequest(&rewritten)
}
