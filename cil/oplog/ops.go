package oplog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pmikstacki/cilkit/cil"
)

// OpKind represents the kind of table operation.
type OpKind uint8

const (
	// OpInsert adds a new row at an explicit RID.
	OpInsert OpKind = iota
	// OpUpdate replaces the payload of an existing row.
	OpUpdate
	// OpDelete removes a row.
	OpDelete
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "Insert"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Operation is a single table edit.
type Operation struct {
	// Kind of edit to perform.
	Kind OpKind

	// RID is the 1-based target row id.
	RID uint32

	// Row is the payload for Insert and Update; nil for Delete.
	Row cil.Row
}

// TableOperation is an Operation stamped for chronological ordering.
// Timestamp is microseconds since the Unix epoch. Seq is a session-
// monotonic counter that breaks timestamp ties in log order.
type TableOperation struct {
	Operation
	Timestamp int64
	Seq       uint64
}

var opSeq atomic.Uint64

// NewTableOperation stamps op with the current time and the next sequence
// number.
func NewTableOperation(op Operation) TableOperation {
	return TableOperation{
		Operation: op,
		Timestamp: time.Now().UnixMicro(),
		Seq:       opSeq.Add(1),
	}
}

// Before reports whether o is ordered strictly before p.
func (o TableOperation) Before(p TableOperation) bool {
	if o.Timestamp != p.Timestamp {
		return o.Timestamp < p.Timestamp
	}
	return o.Seq < p.Seq
}

// String returns a short description for diagnostics.
func (o TableOperation) String() string {
	return fmt.Sprintf("%s(rid=%d)@%d/%d", o.Kind, o.RID, o.Timestamp, o.Seq)
}

// rowsEqual compares two row payloads column by column.
func rowsEqual(a, b cil.Row) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Table() != b.Table() {
		return false
	}
	ca, cb := cil.RowColumns(a), cil.RowColumns(b)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}
