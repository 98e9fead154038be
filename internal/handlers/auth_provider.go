package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/HammerMeetNail/tville/internal/services"
)

const (
	oauthFlowCookieName = "oauth_flow"
	oauthFlowMaxAge     = 10 * 60
	oauthLandingRoute   = "#home"
)

// oauthFlow is the browser-held half of a sign-in in progress. It lives in
// one short-lived HttpOnly cookie between start and callback.
type oauthFlow struct {
	Provider string `json:"p"`
	State    string `json:"s"`
	Nonce    string `json:"n"`
	Next     string `json:"r,omitempty"`
}

func (f oauthFlow) encode() (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeOAuthFlow(value string) (oauthFlow, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return oauthFlow{}, false
	}
	var f oauthFlow
	if err := json.Unmarshal(raw, &f); err != nil || f.State == "" || f.Nonce == "" {
		return oauthFlow{}, false
	}
	return f, true
}

type ProviderAuthHandler struct {
	providerAuth services.ProviderAuthServiceInterface
	authService  services.AuthServiceInterface
	providers    map[string]services.OAuthProvider
	secure       bool
}

func NewProviderAuthHandler(providerAuth services.ProviderAuthServiceInterface, authService services.AuthServiceInterface, providers map[services.Provider]services.OAuthProvider, secure bool) *ProviderAuthHandler {
	byName := make(map[string]services.OAuthProvider, len(providers))
	for name, p := range providers {
		byName[strings.ToLower(string(name))] = p
	}
	return &ProviderAuthHandler{
		providerAuth: providerAuth,
		authService:  authService,
		providers:    byName,
		secure:       secure,
	}
}

// ProviderStart sends the browser to the identity provider. ?next=#route
// picks the page to land on once signed in.
func (h *ProviderAuthHandler) ProviderStart(w http.ResponseWriter, r *http.Request) {
	name, provider := h.lookup(r)
	if provider == nil {
		http.NotFound(w, r)
		return
	}

	flow := oauthFlow{Provider: name, Next: sanitizeNext(r.URL.Query().Get("next"))}
	var err error
	if flow.State, err = randomURLToken(32); err == nil {
		flow.Nonce, err = randomURLToken(32)
	}
	var value string
	if err == nil {
		value, err = flow.encode()
	}
	if err != nil {
		log.Printf("Error starting %s sign-in: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to start provider auth")
		return
	}

	h.setFlowCookie(w, value, oauthFlowMaxAge)
	http.Redirect(w, r, provider.AuthCodeURL(flow.State, flow.Nonce), http.StatusFound)
}

// ProviderCallback completes the sign-in started by ProviderStart. Every
// failure lands on the login page with a short error code.
func (h *ProviderAuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	name, provider := h.lookup(r)
	if provider == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	// The flow is single use whatever the outcome.
	flow, haveFlow := h.readFlow(r)
	h.setFlowCookie(w, "", -1)

	if providerErr := q.Get("error"); providerErr != "" {
		h.loginError(w, r, providerErr)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		h.loginError(w, r, "oauth_missing")
		return
	}
	if !haveFlow || flow.Provider != name || !tokensEqual(flow.State, state) {
		h.loginError(w, r, "oauth_invalid")
		return
	}

	claims, err := provider.ExchangeAndVerify(r.Context(), code, flow.Nonce)
	if err != nil {
		log.Printf("Error verifying %s sign-in: %v", name, err)
		h.loginError(w, r, "oauth_exchange")
		return
	}

	user, err := h.providerAuth.LinkOrCreateUser(r.Context(), claims)
	switch {
	case errors.Is(err, services.ErrProviderEmailUnverified):
		h.loginError(w, r, "oauth_unverified")
		return
	case err != nil:
		log.Printf("Error linking %s identity: %v", name, err)
		h.loginError(w, r, "oauth_link")
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error creating session after %s sign-in: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeSessionCookie(w, token, h.authService.SessionTTL(), h.secure)

	landing := flow.Next
	if landing == "" {
		landing = oauthLandingRoute
	}
	http.Redirect(w, r, "/"+landing, http.StatusFound)
}

func (h *ProviderAuthHandler) lookup(r *http.Request) (string, services.OAuthProvider) {
	name := strings.ToLower(r.PathValue("provider"))
	return name, h.providers[name]
}

func (h *ProviderAuthHandler) readFlow(r *http.Request) (oauthFlow, bool) {
	c, err := r.Cookie(oauthFlowCookieName)
	if err != nil {
		return oauthFlow{}, false
	}
	return decodeOAuthFlow(c.Value)
}

// setFlowCookie writes the flow cookie; a negative maxAge clears it.
func (h *ProviderAuthHandler) setFlowCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthFlowCookieName,
		Value:    value,
		Path:     "/api/auth/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ProviderAuthHandler) loginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/#login?error="+sanitizeErrorParam(code), http.StatusFound)
}

func randomURLToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func tokensEqual(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var (
	nextRoutePattern  = regexp.MustCompile(`^#[A-Za-z0-9/_\-?=&]*$`)
	errorParamPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// sanitizeNext accepts only in-app hash routes such as #library or
// #house/<id>.
func sanitizeNext(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 200 || !nextRoutePattern.MatchString(value) {
		return ""
	}
	return value
}

func sanitizeErrorParam(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 60 {
		value = value[:60]
	}
	if !errorParamPattern.MatchString(value) {
		return "oauth_error"
	}
	return value
}
