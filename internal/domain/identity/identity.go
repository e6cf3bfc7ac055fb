// Package identity models the caller as forwarded by the authentication collaborator.
package identity

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID string
	Staff  bool
}

// Authenticated reports whether the actor carries a user id.
func (a Actor) Authenticated() bool { return a.UserID != "" }

// Owns reports whether the actor is the owner referenced by ownerID.
func (a Actor) Owns(ownerID string) bool { return a.UserID != "" && a.UserID == ownerID }

// CanView reports whether the actor may read a resource owned by ownerID.
// Staff may read everything.
func (a Actor) CanView(ownerID string) bool { return a.Staff || a.Owns(ownerID) }
