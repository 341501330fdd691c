package auth

import "context"

// Identity is what an identity provider vouches for after a link is verified.
type Identity struct {
	UID   string
	Email string
}

// Provider is the identity provider boundary.
//
// SendLink fails with a Delivery error when the address is rejected or the
// message cannot be sent. VerifyLink fails with a Verification error when the
// link in currentURL is invalid, expired, already consumed or was issued for
// another address.
type Provider interface {
	SendLink(ctx context.Context, email, returnURL string) error
	VerifyLink(ctx context.Context, email, currentURL string) (Identity, error)
	SignOut(ctx context.Context, uid string) error
}

// LinkMailer delivers a sign-in link to an inbox.
type LinkMailer interface {
	SendLoginLink(ctx context.Context, email, link string) error
}
