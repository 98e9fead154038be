// Command oidc runs the fake OpenID Connect provider used by the docker
// compose end-to-end setup. Queue a user with POST /test/next-user before
// starting a Google sign-in against it.
package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/oidctest"
)

func main() {
	provider, err := oidctest.New(oidctest.Config{
		Issuer:      getEnv("OIDC_ISSUER_URL", "http://oidc:5555"),
		ClientID:    getEnv("OIDC_CLIENT_ID", "oidc-test"),
		RedirectURI: getEnv("OIDC_REDIRECT_URI", "http://app:8080/api/auth/google/callback"),
	})
	if err != nil {
		logging.Error("Failed to start OIDC test provider", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	addr := getEnv("OIDC_ADDR", ":5555")
	server := &http.Server{
		Addr:              addr,
		Handler:           provider.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	logging.Info("OIDC test provider listening", map[string]interface{}{
		"addr":   addr,
		"issuer": provider.Issuer(),
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("OIDC test provider stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
