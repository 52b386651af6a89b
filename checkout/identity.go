// Package checkout drives one purchase attempt from request to terminal
// outcome: idempotent purchase lookup, invoice negotiation, and a polling
// state machine with cooperative cancellation.
package checkout

import "github.com/google/uuid"

// IdentityKind distinguishes buyers with a durable account from anonymous
// per-device buyers.
type IdentityKind string

const (
	IdentityUser      IdentityKind = "user"
	IdentityAnonymous IdentityKind = "anon"
)

// Identity correlates purchases with a buyer.
type Identity struct {
	Kind  IdentityKind
	Value string
}

// UserIdentity builds an identity for an account-linked buyer.
func UserIdentity(userID string) Identity {
	return Identity{Kind: IdentityUser, Value: userID}
}

// AnonymousIdentity mints a fresh per-device identifier for guest checkout.
// Callers must persist it themselves; if it is lost the purchase cannot be
// correlated client-side.
func AnonymousIdentity() Identity {
	return Identity{Kind: IdentityAnonymous, Value: uuid.NewString()}
}

// IsAnonymous reports whether this is a guest identity.
func (id Identity) IsAnonymous() bool {
	return id.Kind == IdentityAnonymous
}
