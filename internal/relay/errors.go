package relay

import "errors"

var (
	// ErrInvalidIdentity is returned when a registration names a blank id.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrNameTaken is returned when a registration names an id whose session
	// is currently Online. The existing session is left untouched.
	ErrNameTaken = errors.New("name already taken")
	// ErrNotFound is returned by lookups and administrative operations for
	// unknown session or room ids.
	ErrNotFound = errors.New("not found")
)
