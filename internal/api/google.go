package api

import (
	"context" // Verification context
	"errors"  // Error construction

	"github.com/coreos/go-oidc/v3/oidc" // OpenID Connect client
)

// Identity is the verified subset of an ID token used for sign-in
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityVerifier validates a raw ID token
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, rawIDToken string) (*Identity, error)
}

// OIDCVerifier verifies tokens against a discovered OpenID provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuer and returns a verifier bound to clientID
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	if clientID == "" {
		return nil, errors.New("oidc client id is empty")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// VerifyIdentity checks signature, audience and expiry and extracts the profile claims
func (v *OIDCVerifier) VerifyIdentity(ctx context.Context, rawIDToken string) (*Identity, error) {
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, err
	}
	return &Identity{
		Subject:       token.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
