package station

import (
	"context"
	"log"
	"strings"

	"garo-monitor/internal/garo"
)

// UserAPI is the slice of the resource client the resolver needs.
type UserAPI interface {
	UserByToken(ctx context.Context, token string) (map[string]garo.UserInfo, error)
}

// IdentityResolver maps a transaction's ID token to a display name.
// Exactly one lookup per call, never retried: the upstream is known to
// return a deterministic 500 for some otherwise valid-looking tokens, and
// retrying those only burns rate budget. Any failure falls back to the
// raw token so the transaction stays attributable.
type IdentityResolver struct {
	api UserAPI
}

func NewIdentityResolver(api UserAPI) *IdentityResolver {
	return &IdentityResolver{api: api}
}

func (r *IdentityResolver) Resolve(ctx context.Context, token string) string {
	if token == "" {
		return ""
	}

	users, err := r.api.UserByToken(ctx, token)
	if err != nil {
		log.Printf("Identity lookup failed for token, using raw token: %v", err)
		return token
	}

	user, ok := users[token]
	if !ok {
		return token
	}
	if name := displayName(user); name != "" {
		return name
	}
	return token
}

func displayName(user garo.UserInfo) string {
	first := strings.TrimSpace(user.FirstName)
	last := strings.TrimSpace(user.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	if at := strings.Index(user.Email, "@"); at > 0 {
		return user.Email[:at]
	}
	return ""
}
