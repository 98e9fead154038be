package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

const (
	sessionCookieName = "session_token"
	cookieMaxAge      = 7 * 24 * 60 * 60 // 7 days
	maxJSONBodyBytes  = 1 << 20
)

// ErrorResponse is the body of every failed API call. The message is the
// only identity an error has.
type ErrorResponse struct {
	Error string `json:"error"`
}

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a size-limited JSON body into dst. An empty body is an
// error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

var errInvalidPathID = errors.New("invalid path id")

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errInvalidPathID
	}
	return id, nil
}

// pathUserID resolves a {name} path segment that may be "me".
func pathUserID(r *http.Request, name string, user *models.User) (uuid.UUID, error) {
	if r.PathValue(name) == "me" && user != nil {
		return user.ID, nil
	}
	return pathUUID(r, name)
}
