package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrIndexNotFound is returned by operations addressing an index that does not exist.
var ErrIndexNotFound = errors.New("index not found")

var errProcessorClosed = errors.New("bulk processor closed")

// OpType is the kind of a bulk operation.
type OpType int

const (
	// OpIndex creates or replaces a document.
	OpIndex OpType = iota
	// OpDelete removes a document.
	OpDelete
)

func (t OpType) String() string {
	if t == OpDelete {
		return "delete"
	}
	return "index"
}

// Operation is one index or delete action.
// DocType is the source class; indices are typeless, so it only travels in the body.
type Operation struct {
	Type    OpType
	Index   string
	DocType string
	ID      string
	Body    any
}

// ItemResult is the outcome of one operation of a bulk request.
type ItemResult struct {
	ID     string
	Status int
	Err    error
}

// Hit is one document returned by a scroll page.
type Hit struct {
	ID      string
	DocType string
}

// ScrollPage is one page of a scroll search. An empty page ends the scroll.
type ScrollPage struct {
	ScrollID string
	Hits     []Hit
}

// Sink is the search engine endpoint of one source database.
type Sink interface {
	// Ping verifies the sink is reachable.
	Ping(ctx context.Context) error
	// Index creates or replaces a document and waits for the acknowledgement.
	Index(ctx context.Context, index, docType, id string, body any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, index, docType, id string) error
	// Bulk submits operations in order and returns one result per operation.
	Bulk(ctx context.Context, ops []Operation, refresh bool) ([]ItemResult, error)
	// Scroll opens a scroll over the documents of docType, or all documents when docType is empty.
	Scroll(ctx context.Context, index, docType string, size int, keepAlive time.Duration) (ScrollPage, error)
	// ScrollNext fetches the next page of an open scroll.
	ScrollNext(ctx context.Context, scrollID string, keepAlive time.Duration) (ScrollPage, error)
	// ClearScroll releases an open scroll.
	ClearScroll(ctx context.Context, scrollID string) error
	// DeleteIndex removes a whole index.
	DeleteIndex(ctx context.Context, index string) error
	// Close releases the sink's connections.
	Close() error
}

// IndexName derives the index of a source database.
func IndexName(database string) string {
	return strings.ToLower(database)
}

// ResponseError is an error reply from the search engine.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("search engine error [%d] %s: %s", e.Status, e.Type, e.Reason)
}

// Is matches ErrIndexNotFound for missing index replies.
func (e *ResponseError) Is(target error) bool {
	return target == ErrIndexNotFound && e.Type == "index_not_found_exception"
}
