package storage

import "errors"

// Common storage errors
var (
	// ErrSnapshotNotFound indicates that the board has no snapshot yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrObjectNotFound indicates that the object does not exist on the board
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists indicates that an object with this id already exists
	ErrObjectExists = errors.New("object already exists")

	// ErrInvalidObject indicates that stored or submitted object fields are not a JSON object
	ErrInvalidObject = errors.New("invalid object")
)
