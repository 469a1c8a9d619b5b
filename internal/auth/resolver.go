package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Provider looks up a session in one credential scheme.
// (nil, nil) means "no session here" and is never an error.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, creds Credentials) (*Identity, error)
}

// Step is one link of the resolver chain.
type Step struct {
	Provider Provider
	// RetryWithBearer re-runs the lookup with only the bearer header when
	// the first attempt found nothing.
	RetryWithBearer bool
}

// Resolver tries providers in order; the first identity wins.
type Resolver struct {
	steps []Step
}

func NewResolver(steps ...Step) *Resolver {
	return &Resolver{steps: steps}
}

// Resolve returns (nil, nil) when no provider knows the caller. Errors are
// provider transport failures and callers must treat them as unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	for _, step := range r.steps {
		id, err := step.Provider.Lookup(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("%s session lookup: %w", step.Provider.Name(), err)
		}
		if id != nil {
			return id, nil
		}
		if !step.RetryWithBearer {
			continue
		}
		bearerOnly, ok := creds.BearerOnly()
		if !ok {
			continue
		}
		id, err = step.Provider.Lookup(ctx, bearerOnly)
		if err != nil {
			return nil, fmt.Errorf("%s bearer lookup: %w", step.Provider.Name(), err)
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, nil
}

// ResolveHandshake resolves a socket upgrade request: the handshake token
// (query "token" or bearer header) first, then the full headers and cookies.
func (r *Resolver) ResolveHandshake(ctx context.Context, req *http.Request) (*Identity, error) {
	token := req.URL.Query().Get("token")
	if token == "" {
		token = extractBearer(req.Header.Get("Authorization"))
	}
	if token != "" {
		id, err := r.Resolve(ctx, BearerCredentials(token))
		if err != nil || id != nil {
			return id, err
		}
	}
	return r.Resolve(ctx, FromRequest(req))
}
