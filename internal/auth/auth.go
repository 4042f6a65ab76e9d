// Package auth classifies callers into privileged and unprivileged roles.
//
// A caller is privileged when their identity was established with the
// password sign-in provider. Federated and anonymous sign-ins are
// unprivileged. The privilege decision is made once per exchange at the
// boundary and carried through context; mutation handlers re-check it as a
// backstop.
package auth

import (
	"context"
	"errors"
)

// ProviderPassword is the sign-in provider that grants privileged access.
const ProviderPassword = "password"

// ErrPermissionDenied indicates the caller lacks the privilege required for
// an operation.
var ErrPermissionDenied = errors.New("permission denied")

// Identity describes an authenticated caller.
// UID and Provider come from the session token; both may be empty for
// anonymous callers.
type Identity struct {
	UID      string
	Provider string
}

// Privileged reports whether the identity may invoke mutation tools.
// Only password-provider sign-ins qualify.
func (id Identity) Privileged() bool {
	return id.Provider == ProviderPassword
}

// Role returns the caller role label used in prompt rendering.
func (id Identity) Role() string {
	if id.Privileged() {
		return "admin"
	}
	return "user"
}

// AssertPrivileged returns ErrPermissionDenied unless the identity is
// privileged. Mutation handlers call this first, before validating input.
func AssertPrivileged(id Identity) error {
	if !id.Privileged() {
		return ErrPermissionDenied
	}
	return nil
}

// identityKey is an unexported context key for zero-allocation type safety.
type identityKey struct{}

// ContextWithIdentity stores the caller identity in context.
// The API layer injects it once per request; tool handlers read it back.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the caller identity from context.
// Returns a zero (unprivileged) identity if not set.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// AssertPrivilegedContext is AssertPrivileged applied to the context-carried
// identity.
func AssertPrivilegedContext(ctx context.Context) error {
	return AssertPrivileged(IdentityFromContext(ctx))
}
