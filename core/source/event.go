package source

import (
	"context"

	"essync/core/document"
)

// EventKind enumerates the record lifecycle notifications delivered to hooks.
type EventKind int

const (
	// AfterCreate fires once a new record has been committed.
	AfterCreate EventKind = iota + 1
	// AfterUpdate fires once changes to an existing record have been committed.
	AfterUpdate
	// AfterDelete fires once a record has been removed.
	AfterDelete
)

func (k EventKind) String() string {
	switch k {
	case AfterCreate:
		return "after_create"
	case AfterUpdate:
		return "after_update"
	case AfterDelete:
		return "after_delete"
	default:
		return "unknown"
	}
}

// Event is a single record notification.
type Event struct {
	Kind     EventKind
	Database string
	Record   *document.Record
}

// Hook receives record notifications synchronously on the writer's goroutine.
// An error returned by a hook is reported to the writer; the write itself stays committed.
type Hook interface {
	Handle(ctx context.Context, event Event) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HookFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LifecycleListener observes schema-level events of the server.
type LifecycleListener interface {
	// OnCreate is called after a database has been created and opened.
	OnCreate(db *Database)
	// OnOpen is called after an existing database has been opened.
	OnOpen(db *Database)
	// OnDropClass is called before the records of a class are removed.
	OnDropClass(db *Database, class string)
	// OnDrop is called before a database is removed.
	OnDrop(db *Database)
}
