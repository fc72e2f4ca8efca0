// Package credentials resolves a caller identity to Canvas credentials.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"canvas-sync/internal/canvas"
)

// ErrNeedsSetup means the owner has no usable Canvas credentials yet.
var ErrNeedsSetup = errors.New("canvas credentials not configured")

// CredentialError is returned by every Resolver. It is never retried:
// callers surface it right away.
type CredentialError struct {
	Owner string
	Err   error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials for %q: %v", e.Owner, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// NeedsSetup reports whether err asks the caller to configure credentials.
func NeedsSetup(err error) bool {
	return errors.Is(err, ErrNeedsSetup)
}

func needsSetup(owner, reason string) error {
	return &CredentialError{Owner: owner, Err: fmt.Errorf("%w: %s", ErrNeedsSetup, reason)}
}

type Resolver interface {
	Resolve(ctx context.Context, owner string) (canvas.Credentials, error)
}

// checked validates and normalizes resolved credentials.
func checked(owner string, c canvas.Credentials) (canvas.Credentials, error) {
	if err := c.Validate(); err != nil {
		return canvas.Credentials{}, needsSetup(owner, err.Error())
	}
	return c.Normalized(), nil
}

// StaticResolver hands the same credentials to every owner (development).
type StaticResolver struct {
	Credentials canvas.Credentials
}

func (s StaticResolver) Resolve(_ context.Context, owner string) (canvas.Credentials, error) {
	if s.Credentials.BaseURL == "" && s.Credentials.APIKey == "" {
		return canvas.Credentials{}, needsSetup(owner, "no static credentials")
	}
	return checked(owner, s.Credentials)
}

// Chain tries resolvers in order; the first success wins. It reports
// needs-setup only when every resolver did; otherwise the last other error.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, owner string) (canvas.Credentials, error) {
	var lastErr error
	for _, r := range c {
		if r == nil {
			continue
		}
		creds, err := r.Resolve(ctx, owner)
		if err == nil {
			return creds, nil
		}
		if !NeedsSetup(err) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return canvas.Credentials{}, lastErr
	}
	return canvas.Credentials{}, needsSetup(owner, "no resolver has credentials")
}
