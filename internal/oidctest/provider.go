// Package oidctest is a minimal OpenID Connect provider for end-to-end runs
// and tests of the Google sign-in flow. Tests queue the identity the next
// authorization should return, then drive the normal code flow against it.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const codeTTL = 5 * time.Minute

// Identity is what the provider asserts about the next user to sign in.
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type Config struct {
	Issuer      string
	ClientID    string
	RedirectURI string
}

type pendingCode struct {
	identity    Identity
	nonce       string
	clientID    string
	redirectURI string
	issuedAt    time.Time
}

type Provider struct {
	cfg    Config
	signer jose.Signer
	keys   jose.JSONWebKeySet

	mu    sync.Mutex
	next  *Identity
	codes map[string]pendingCode
	now   func() time.Time
}

func New(cfg Config) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	keyID := uuid.NewString()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: keyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &Provider{
		cfg:    cfg,
		signer: signer,
		keys: jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     keyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}},
		codes: make(map[string]pendingCode),
		now:   time.Now,
	}, nil
}

// NewServer starts the provider on an httptest server and points the issuer
// at it. Callers close the returned server.
func NewServer(clientID, redirectURI string) (*Provider, *httptest.Server, error) {
	p, err := New(Config{ClientID: clientID, RedirectURI: redirectURI})
	if err != nil {
		return nil, nil, err
	}
	ts := httptest.NewServer(p.Handler())
	p.cfg.Issuer = ts.URL
	return p, ts, nil
}

func (p *Provider) Issuer() string {
	return p.cfg.Issuer
}

// QueueIdentity sets the identity returned by the next authorization.
func (p *Provider) QueueIdentity(identity Identity) {
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.Subject == "" {
		identity.Subject = "sub-" + uuid.NewString()
	}
	p.mu.Lock()
	p.next = &identity
	p.mu.Unlock()
}

func (p *Provider) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("GET /authorize", p.handleAuthorize)
	mux.HandleFunc("POST /token", p.handleToken)
	mux.HandleFunc("GET /keys", p.handleKeys)
	mux.HandleFunc("POST /test/next-user", p.handleNextUser)
	return mux
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.cfg.Issuer,
		"authorization_endpoint":                p.cfg.Issuer + "/authorize",
		"token_endpoint":                        p.cfg.Issuer + "/token",
		"jwks_uri":                              p.cfg.Issuer + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
	})
}

func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	clientID, redirectURI, state := q.Get("client_id"), q.Get("redirect_uri"), q.Get("state")
	if clientID == "" || redirectURI == "" || state == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	if p.cfg.RedirectURI != "" && redirectURI != p.cfg.RedirectURI {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	next := p.next
	p.next = nil
	p.mu.Unlock()
	if next == nil || next.Email == "" {
		http.Error(w, "no identity queued", http.StatusBadRequest)
		return
	}

	code, err := randomToken()
	if err != nil {
		http.Error(w, "failed to generate code", http.StatusInternalServerError)
		return
	}
	p.mu.Lock()
	p.codes[code] = pendingCode{
		identity:    *next,
		nonce:       q.Get("nonce"),
		clientID:    clientID,
		redirectURI: redirectURI,
		issuedAt:    p.now(),
	}
	p.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", state)
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if r.Form.Get("grant_type") != "authorization_code" {
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	clientID := r.Form.Get("client_id")
	if id, _, ok := r.BasicAuth(); ok && clientID == "" {
		clientID = id
	}

	code := r.Form.Get("code")
	p.mu.Lock()
	pending, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	// Any client secret is accepted; the code is the credential here.
	switch {
	case !ok || p.now().Sub(pending.issuedAt) > codeTTL:
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	case clientID != "" && clientID != pending.clientID:
		writeTokenError(w, http.StatusUnauthorized, "invalid_client")
		return
	case r.Form.Get("redirect_uri") != "" && r.Form.Get("redirect_uri") != pending.redirectURI:
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	idToken, err := p.signIDToken(pending)
	if err != nil {
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}
	accessToken, err := randomToken()
	if err != nil {
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   600,
		"id_token":     idToken,
	})
}

func (p *Provider) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.keys)
}

func (p *Provider) handleNextUser(w http.ResponseWriter, r *http.Request) {
	var identity Identity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(identity.Email) == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}
	p.QueueIdentity(identity)
	w.WriteHeader(http.StatusNoContent)
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
}

func (p *Provider) signIDToken(pending pendingCode) (string, error) {
	now := p.now()
	registered := jwt.Claims{
		Issuer:   p.cfg.Issuer,
		Subject:  pending.identity.Subject,
		Audience: jwt.Audience{pending.clientID},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	extra := identityClaims{
		Email:         pending.identity.Email,
		EmailVerified: pending.identity.EmailVerified,
		Name:          pending.identity.Name,
		Nonce:         pending.nonce,
	}
	return jwt.Signed(p.signer).Claims(registered).Claims(extra).Serialize()
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("reading random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
