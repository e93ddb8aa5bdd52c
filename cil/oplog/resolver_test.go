package oplog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// ============================================================================
// Conflict Detection Tests
// ============================================================================

func Test_Conflicts_InsertThenDelete(t *testing.T) {
	// Why this test: Insert and delete on the same RID pull the final state in
	// opposite directions, the canonical contested case. Both operations must
	// surface in the conflict so a resolver can pick one.
	m := NewSparse(cil.TableTypeDef, 0)
	require.NoError(t, m.Apply(stamped(OpInsert, 1, typeDefRow(10), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpDelete, 1, nil, 200, 2)))

	conflicts := m.Conflicts()
	require.Len(t, conflicts, 1)
	require.Equal(t, uint32(1), conflicts[0].RID)
	require.Equal(t, cil.TableTypeDef, conflicts[0].Table)
	require.Len(t, conflicts[0].Ops, 2)
}

func Test_Conflicts_DivergentUpdates(t *testing.T) {
	// Why this test: Two updates with different payloads cannot both land.
	// Detection must compare payloads, not just count operations per RID.
	m := NewSparse(cil.TableTypeDef, 2)
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(10), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(20), 200, 2)))

	require.Len(t, m.Conflicts(), 1)
}

func Test_Conflicts_IdenticalUpdatesDoNotConflict(t *testing.T) {
	// Why this test: Guards the payload comparison from the other side.
	// Re-applying the same row is idempotent and must not force callers
	// through a resolver.
	m := NewSparse(cil.TableTypeDef, 2)
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(10), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(10), 200, 2)))

	require.Empty(t, m.Conflicts(), "same payload twice is idempotent, not contended")
}

func Test_Conflicts_InsertThenUpdateIsNormalFlow(t *testing.T) {
	// Why this test: Insert-then-refine is how builders work. Flagging it
	// would make every multi-step row construction a conflict.
	m := NewSparse(cil.TableTypeDef, 0)
	require.NoError(t, m.Apply(stamped(OpInsert, 1, typeDefRow(10), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(20), 200, 2)))

	require.Empty(t, m.Conflicts())
}

// ============================================================================
// Resolution Strategy Tests
// ============================================================================

func Test_LastWriteWins_PicksLatestTimestamp(t *testing.T) {
	lww := LastWriteWins{}
	conflicts := []Conflict{{
		Table: cil.TableTypeDef,
		RID:   5,
		Ops: []TableOperation{
			stamped(OpInsert, 5, typeDefRow(1), 1000, 1),
			stamped(OpDelete, 5, nil, 2000, 2),
		},
	}}

	winners, err := lww.Resolve(conflicts)
	require.NoError(t, err)
	require.Equal(t, OpDelete, winners[5].Kind)
}

func Test_LastWriteWins_TimestampTieBrokenBySeq(t *testing.T) {
	// Why this test: Timestamps have microsecond resolution, so two operations
	// in one tick are a real occurrence. The sequence counter is strictly
	// monotonic and makes the winner deterministic.
	lww := LastWriteWins{}
	conflicts := []Conflict{{
		Table: cil.TableTypeDef,
		RID:   5,
		Ops: []TableOperation{
			stamped(OpDelete, 5, nil, 1000, 2),
			stamped(OpUpdate, 5, typeDefRow(42), 1000, 3),
		},
	}}

	winners, err := lww.Resolve(conflicts)
	require.NoError(t, err)
	require.Equal(t, OpUpdate, winners[5].Kind)
	require.Equal(t, uint64(3), winners[5].Seq)
}

func Test_RejectOnConflict_SurfacesConflictKind(t *testing.T) {
	// Why this test: Callers that opt out of silent resolution need a typed
	// error naming the contested row, not a resolved log.
	roc := RejectOnConflict{}
	conflicts := []Conflict{{
		Table: cil.TableTypeDef,
		RID:   7,
		Ops: []TableOperation{
			stamped(OpInsert, 7, typeDefRow(1), 1000, 1),
			stamped(OpDelete, 7, nil, 2000, 2),
		},
	}}

	_, err := roc.Resolve(conflicts)
	require.Error(t, err)

	var typed *types.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, types.ErrKindConflict, typed.Kind)
	require.Contains(t, err.Error(), "rid 7")
}

// ============================================================================
// Effective Log Tests
// ============================================================================

func Test_EffectiveOps_KeepsOnlyWinnersForContestedRIDs(t *testing.T) {
	// Why this test: The effective log is what apply and serialization
	// consume. Losing operations must drop out of it while uncontested ones
	// pass through untouched, and the raw history must stay intact.
	m := NewSparse(cil.TableTypeDef, 0)
	require.NoError(t, m.Apply(stamped(OpInsert, 1, typeDefRow(1), 100, 1))) // contested, loses
	require.NoError(t, m.Apply(stamped(OpInsert, 2, typeDefRow(2), 150, 2))) // clean
	require.NoError(t, m.Apply(stamped(OpDelete, 1, nil, 200, 3)))           // contested, wins

	ops, err := m.EffectiveOps(LastWriteWins{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.Equal(t, uint32(2), ops[0].RID)
	require.Equal(t, OpInsert, ops[0].Kind)
	require.Equal(t, uint32(1), ops[1].RID)
	require.Equal(t, OpDelete, ops[1].Kind)

	// Discarded operations stay in history for audit.
	require.Len(t, m.History(), 3)
}

func Test_EffectiveOps_NoConflictsReturnsWholeLog(t *testing.T) {
	m := NewSparse(cil.TableTypeDef, 0)
	require.NoError(t, m.Apply(stamped(OpInsert, 1, typeDefRow(1), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpUpdate, 1, typeDefRow(2), 200, 2)))

	ops, err := m.EffectiveOps(LastWriteWins{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
}

func Test_EffectiveOps_RejectResolverPropagatesError(t *testing.T) {
	m := NewSparse(cil.TableTypeDef, 0)
	require.NoError(t, m.Apply(stamped(OpInsert, 1, typeDefRow(1), 100, 1)))
	require.NoError(t, m.Apply(stamped(OpDelete, 1, nil, 200, 2)))

	_, err := m.EffectiveOps(RejectOnConflict{})
	require.Error(t, err)
}

func Test_NewTableOperation_StampsMonotonicSeq(t *testing.T) {
	a := NewTableOperation(Operation{Kind: OpInsert, RID: 1, Row: typeDefRow(1)})
	b := NewTableOperation(Operation{Kind: OpInsert, RID: 2, Row: typeDefRow(2)})

	require.Greater(t, b.Seq, a.Seq)
	require.True(t, a.Before(b))
}
