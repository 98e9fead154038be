package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider names an external identity provider. It appears in the
// /api/auth/{provider}/... routes and in user_identities.provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
)

var defaultOIDCScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// IdentityClaims is what a provider vouches for after a successful sign-in.
// Email is lower-cased.
type IdentityClaims struct {
	Provider      Provider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type OAuthProvider interface {
	Provider() Provider
	AuthCodeURL(state, nonce string) string
	ExchangeAndVerify(ctx context.Context, code, nonce string) (IdentityClaims, error)
}

type OIDCProviderConfig struct {
	Provider     Provider
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	// Scopes defaults to openid, email and profile.
	Scopes []string
}

func (c OIDCProviderConfig) validate() error {
	var errs []error
	required := []struct{ name, value string }{
		{"provider", string(c.Provider)},
		{"client id", c.ClientID},
		{"client secret", c.ClientSecret},
		{"redirect url", c.RedirectURL},
		{"issuer url", c.IssuerURL},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	return errors.Join(errs...)
}

// OIDCProvider runs the authorization code flow against a discovered
// OpenID Connect issuer.
type OIDCProvider struct {
	name     Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

func NewOIDCProvider(ctx context.Context, cfg OIDCProviderConfig) (*OIDCProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("oidc %s: %w", cfg.Provider, err)
	}

	issuer, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", cfg.IssuerURL, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultOIDCScopes
	}

	return &OIDCProvider{
		name:     cfg.Provider,
		verifier: issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     issuer.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

func (p *OIDCProvider) Provider() Provider {
	return p.name
}

func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth.AuthCodeURL(state, oidc.Nonce(nonce))
}

// ExchangeAndVerify redeems code, checks the ID token signature, audience
// and nonce, and returns the asserted identity.
func (p *OIDCProvider) ExchangeAndVerify(ctx context.Context, code, nonce string) (IdentityClaims, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("exchange code: %w", err)
	}

	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return IdentityClaims{}, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("verify id token: %w", err)
	}
	if nonce == "" || idToken.Nonce != nonce {
		return IdentityClaims{}, errors.New("id token nonce does not match")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return IdentityClaims{}, fmt.Errorf("decode id token claims: %w", err)
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = strings.TrimSpace(claims.GivenName)
	}
	return IdentityClaims{
		Provider:      p.name,
		Subject:       idToken.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Name:          name,
	}, nil
}
