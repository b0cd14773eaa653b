package sync

import (
	"errors"

	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/models"
)

var (
	// ErrObjectNotFound объект с таким id отсутствует в локальном состоянии
	ErrObjectNotFound = errors.New("object not found")

	// ErrPermissionDenied хранилище отклонило изменение, локальное состояние откатывается
	ErrPermissionDenied = store.ErrPermissionDenied
)

// A local change whose broadcast the relay refuses with channel.ErrForbidden
// is rolled back at once and never reaches the store. Any other publish
// failure keeps the change: it is persisted and reaches peers on resync.

// ValidationError is returned for local input rejected before any network call.
type ValidationError = models.ValidationError

// ErrorHandler receives failures that happen after the originating call has
// returned (asynchronous persistence and rollbacks).
type ErrorHandler func(error)
