package provider

import (
	"context"
	"fmt"
	"time"
)

// Identity is the normalized shape every provider variant reduces to.
type Identity struct {
	Provider  string
	Sub       string
	Email     string
	FullName  string
	AvatarURL string
	Username  string

	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
}

// Error is the single failure kind crossing the provider boundary.
// Network failures, non-2xx responses, and malformed user info all
// collapse into it; client-library internals never leak past here.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider string, format string, args ...interface{}) *Error {
	return &Error{Provider: provider, Err: fmt.Errorf(format, args...)}
}

// Client is one provider variant. Adding a provider means adding a
// variant and registering it, not branching at call sites.
type Client interface {
	Name() string
	AuthorizationURL(ctx context.Context, redirectURI, state string) (string, error)
	Exchange(ctx context.Context, code, redirectURI string) (*Identity, error)
}

// Supported reports whether name is in the closed set of providers the
// service knows how to speak to, configured or not. Unsupported names
// are a caller error; supported-but-unconfigured ones are a server
// configuration error.
func Supported(name string) bool {
	switch name {
	case googleName, githubName:
		return true
	}
	return false
}

// Registry is the closed set of configured providers.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &Registry{clients: m}
}

func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.clients))
	for name := range r.clients {
		out = append(out, name)
	}
	return out
}
