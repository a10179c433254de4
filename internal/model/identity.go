package model

import "time"

// Identity holds the verified claims of a bearer token.
// It is injected into the request context by the auth middleware.
type Identity struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
