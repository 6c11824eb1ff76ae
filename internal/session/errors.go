package session

import "errors"

var (
	// ErrNoAlias is returned when the caller passed no alias and no default
	// alias is configured.
	ErrNoAlias = errors.New("no instance alias given and no default alias configured")

	// ErrCredentialNotFound is returned when the resolver knows nothing
	// about an alias.
	ErrCredentialNotFound = errors.New("credential not found")
)
