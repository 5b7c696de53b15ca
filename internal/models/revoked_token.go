package models

import "time"

// RevokedToken is a denylisted bearer token.
// A token present here is rejected until the row is purged, whatever its own expiry says.
type RevokedToken struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
