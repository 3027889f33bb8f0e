package event

import "github.com/google/uuid"

// ModLoaded is emitted when a mod registry becomes active.
type ModLoaded struct {
	LoadID      uuid.UUID
	ModID       string
	Fingerprint string
	Items       int
}

// ModLoadFailed is emitted when a load fails. The previous registry, if
// any, stays active.
type ModLoadFailed struct {
	LoadID uuid.UUID
	ModID  string
	Err    error
}
