package models

import "time"

type User struct {
	Username       string    `json:"username"`
	HashedPassword string    `json:"hashed_password"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Identity is who a request acts as. Requests without a valid bearer credential
// act as the shared guest identity.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func GuestIdentity() Identity {
	return Identity{Username: GuestUsername, Role: RoleGuest}
}
