package domain

import "strconv"

// ActorRole is the role attached to an authenticated identity by the
// external auth layer. The core trusts it without re-validating credentials.
type ActorRole string

// List of actor roles.
const (
	RoleCourier ActorRole = "courier"
	RoleStore   ActorRole = "store"
)

// Actor is an authenticated identity: a courier or a store.
type Actor struct {
	Role ActorRole
	ID   string
}

// CourierActor builds a courier identity from its numeric ID.
func CourierActor(id int64) Actor {
	return Actor{Role: RoleCourier, ID: strconv.FormatInt(id, 10)}
}

// StoreActor builds a store identity.
func StoreActor(id string) Actor {
	return Actor{Role: RoleStore, ID: id}
}

// CourierID parses the numeric courier ID; ok is false for non-courier
// actors or malformed IDs.
func (a Actor) CourierID() (int64, bool) {
	if a.Role != RoleCourier {
		return 0, false
	}
	id, err := strconv.ParseInt(a.ID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Key returns the channel registry key for this actor.
func (a Actor) Key() string {
	return string(a.Role) + ":" + a.ID
}

// Valid reports whether the actor carries a known role and a non-empty ID.
func (a Actor) Valid() bool {
	return a.ID != "" && (a.Role == RoleCourier || a.Role == RoleStore)
}
