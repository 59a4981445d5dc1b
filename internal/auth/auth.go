// Package auth resolves the acting user behind a bearer token. Identity is
// owned by the managed backend; this layer only needs "who is calling" for
// mutations.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

// Actor is a resolved caller identity. Token is the raw bearer token,
// forwarded on writes so the backend enforces row ownership itself.
type Actor struct {
	ID    string
	Email string
	Token string
}

func (a Actor) Resolved() bool { return a.ID != "" }

type Resolver interface {
	Resolve(ctx context.Context, token string) (Actor, error)
}

type BackendResolver struct {
	backend *source.Backend
	logger  *slog.Logger
}

func NewBackendResolver(b *source.Backend, logger *slog.Logger) *BackendResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackendResolver{backend: b, logger: logger}
}

func (r *BackendResolver) Resolve(ctx context.Context, token string) (Actor, error) {
	if strings.TrimSpace(token) == "" {
		return Actor{}, apperr.New(apperr.KindAuthRequired, "missing bearer token")
	}

	raw, err := r.backend.AuthUser(ctx, token)
	if err != nil {
		if apperr.IsKind(err, apperr.KindAuthRequired) {
			return Actor{}, err
		}
		return Actor{}, fmt.Errorf("resolve actor: %w", err)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return Actor{}, fmt.Errorf("decode auth user: %w", err)
	}
	if user.ID == "" {
		return Actor{}, apperr.New(apperr.KindAuthRequired, "token resolved to no user")
	}

	r.logger.Debug("actor resolved", "actor_id", user.ID)
	return Actor{ID: user.ID, Email: user.Email, Token: token}, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// empty when absent.
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
