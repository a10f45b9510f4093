package source

import (
	"database/sql"

	"essync/core/document"

	"gorm.io/gorm"
)

// Iterator is a lazy, single-pass sequence of records.
//
// Next advances the sequence. Record returns the current record, or the error
// that prevented it from loading; such an error affects that record only.
// Err reports the error that ended the sequence early. Using an iterator after
// Close ends the sequence with ErrIteratorClosed.
type Iterator interface {
	Next() bool
	Record() (*document.Record, error)
	Err() error
	Close() error
}

type rowsIterator struct {
	db     *gorm.DB
	rows   *sql.Rows
	rec    *document.Record
	recErr error
	err    error
	closed bool
}

func newRowsIterator(db *gorm.DB, rows *sql.Rows) *rowsIterator {
	return &rowsIterator{db: db, rows: rows}
}

func (it *rowsIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.closed {
		it.err = ErrIteratorClosed
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	var row recordRow
	if err := it.db.ScanRows(it.rows, &row); err != nil {
		it.err = err
		return false
	}
	it.rec, it.recErr = toRecord(row)
	return true
}

func (it *rowsIterator) Record() (*document.Record, error) {
	return it.rec, it.recErr
}

func (it *rowsIterator) Err() error {
	return it.err
}

func (it *rowsIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}

type sliceIterator struct {
	records []*document.Record
	pos     int
	err     error
	closed  bool
}

// NewSliceIterator returns an iterator over records already held in memory.
func NewSliceIterator(records ...*document.Record) Iterator {
	return &sliceIterator{records: records, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.closed {
		it.err = ErrIteratorClosed
		return false
	}
	if it.pos+1 >= len(it.records) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Record() (*document.Record, error) {
	if it.pos < 0 || it.pos >= len(it.records) {
		return nil, nil
	}
	return it.records[it.pos], nil
}

func (it *sliceIterator) Err() error {
	return it.err
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}
