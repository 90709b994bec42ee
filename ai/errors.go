package ai

import "errors"

var (
	// ErrInvalidResponse indicates the collaborator answered, but the payload
	// failed to parse as the expected structure. Distinct from a provider
	// outage; callers must not retry it automatically.
	ErrInvalidResponse = errors.New("invalid collaborator response")
)
