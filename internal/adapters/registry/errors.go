package registry

import "errors"

var (
	// ErrNotFound is returned for an unknown model id.
	ErrNotFound = errors.New("model not found")
	// ErrNoArtifact is returned when an entry carries neither a model nor a directory.
	ErrNoArtifact = errors.New("entry has no model artifact")
)
