package oplog

import (
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// Conflict is a group of operations contending for one RID.
type Conflict struct {
	Table cil.TableID
	RID   uint32
	Ops   []TableOperation // chronological
}

// ConflictResolver decides which operation survives each conflict.
//
// Resolvers must be deterministic: resolving the same conflicts twice
// must pick the same winners.
type ConflictResolver interface {
	// Resolve returns the winning operation per conflicted RID, or an
	// error to fail the whole resolution.
	Resolve(conflicts []Conflict) (map[uint32]TableOperation, error)
}

// LastWriteWins keeps the operation with the greatest (Timestamp, Seq)
// for each conflicted RID. This is the default resolver.
type LastWriteWins struct{}

// Resolve implements ConflictResolver.
func (LastWriteWins) Resolve(conflicts []Conflict) (map[uint32]TableOperation, error) {
	winners := make(map[uint32]TableOperation, len(conflicts))
	for _, c := range conflicts {
		if len(c.Ops) == 0 {
			continue
		}
		latest := c.Ops[0]
		for _, op := range c.Ops[1:] {
			if latest.Before(op) {
				latest = op
			}
		}
		winners[c.RID] = latest
	}
	return winners, nil
}

// RejectOnConflict fails resolution as soon as any conflict exists. Use
// it when competing edits indicate a caller bug rather than a race to be
// settled.
type RejectOnConflict struct{}

// Resolve implements ConflictResolver.
func (RejectOnConflict) Resolve(conflicts []Conflict) (map[uint32]TableOperation, error) {
	if len(conflicts) == 0 {
		return map[uint32]TableOperation{}, nil
	}
	c := conflicts[0]
	return nil, &types.Error{
		Kind: types.ErrKindConflict,
		Msg:  fmt.Sprintf("oplog: %d conflicting operations on %s rid %d", len(c.Ops), c.Table, c.RID),
	}
}
