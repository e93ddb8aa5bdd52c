package oplog

import "errors"

var (
	// ErrRIDZero indicates an Insert or Update targeting RID 0, which is
	// the null row reference and never a valid target.
	ErrRIDZero = errors.New("oplog: rid 0 is invalid")

	// ErrReplacedTable indicates a sparse operation against a table that
	// was wholesale replaced.
	ErrReplacedTable = errors.New("oplog: table was replaced; sparse operations no longer apply")
)
