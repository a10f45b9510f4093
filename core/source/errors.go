package source

import (
	"errors"

	"essync/core/document"
)

var (
	// ErrDatabaseNotFound is returned when opening a database that does not exist.
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrInvalidName is returned for database names that are not plain identifiers.
	ErrInvalidName = errors.New("invalid database name")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrClassNotFound is returned when a class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrClusterNotFound is returned when a cluster does not exist.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrInvalidCommand is returned for commands the executor cannot parse.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUnauthorized is returned when credentials do not match a database user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrHookFailed wraps errors returned by hooks after a committed write.
	ErrHookFailed = errors.New("record hook failed")
	// ErrIteratorClosed is reported by an iterator used after Close.
	ErrIteratorClosed = errors.New("iterator closed")
)

// MalformedRecordError reports a stored record whose body cannot be decoded.
type MalformedRecordError struct {
	RID document.RID
	Err error
}

func (e *MalformedRecordError) Error() string {
	return "malformed record " + e.RID.String() + ": " + e.Err.Error()
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
