package auth

import "context"

// Provider signs users in with emailed magic links.
type Provider interface {
	// SendMagicLink emails a sign-in link that lands on redirectTo with a
	// code parameter. The returned verifier, if any, must be presented
	// again to ExchangeCode.
	SendMagicLink(ctx context.Context, email, redirectTo string) (verifier string, err error)
	// ExchangeCode trades a link's code for an identity.
	ExchangeCode(ctx context.Context, code, verifier string) (*Identity, error)
	// SignOut revokes the provider session. A session that is already
	// gone is not an error.
	SignOut(ctx context.Context, accessToken string) error
}
