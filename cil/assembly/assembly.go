package assembly

import (
	"context"
	"fmt"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/changes"
	"github.com/pmikstacki/cilkit/cil/oplog"
	"github.com/pmikstacki/cilkit/cil/remap"
	"github.com/pmikstacki/cilkit/cil/verify"
	"github.com/pmikstacki/cilkit/internal/writer"
	"github.com/pmikstacki/cilkit/pkg/types"
)

// Options configure an editing session.
type Options struct {
	// Validation is the preset ValidateAndApply runs. The zero value
	// disables validation; New installs the production preset.
	Validation verify.Config

	// Resolver arbitrates same-RID operation conflicts before the
	// remap. Nil selects last-write-wins.
	Resolver oplog.ConflictResolver
}

// Assembly owns exactly one metadata view and one pending change set
// and is the single entry point for an editing session: every mutation
// lands in the change set, the view stays untouched, and WriteToFile
// emits a new image combining both.
//
// An Assembly is NOT safe for concurrent use. One goroutine owns the
// session from Open through Close.
type Assembly struct {
	view *cil.View
	ch   *changes.AssemblyChanges
	opts Options

	closed  bool
	applied bool // change set already rewritten into final index space
	stale   bool // edits recorded after the rewrite; they cannot be rewritten again
}

// Open maps the image at path and starts an editing session with
// production validation defaults. Close releases the mapping.
func Open(path string) (*Assembly, error) {
	v, err := cil.Open(path)
	if err != nil {
		return nil, err
	}
	return New(v), nil
}

// FromBytes starts an editing session over an in-memory image.
func FromBytes(data []byte) (*Assembly, error) {
	v, err := cil.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return New(v), nil
}

// New wraps an existing view with production validation defaults. The
// assembly takes ownership of the view; Close releases it.
func New(view *cil.View) *Assembly {
	return NewWithOptions(view, Options{Validation: verify.Production()})
}

// NewWithOptions wraps view with explicit options, taken verbatim. A
// zero Validation config turns ValidateAndApply into remap-only.
func NewWithOptions(view *cil.View, opts Options) *Assembly {
	return &Assembly{view: view, ch: changes.NewFromView(view), opts: opts}
}

// Close releases the underlying view. The change set stays readable,
// but operations that consult the original image fail afterwards.
func (a *Assembly) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.view.Close()
}

// View returns the read-only metadata view.
func (a *Assembly) View() *cil.View { return a.view }

// Changes returns the pending change set.
func (a *Assembly) Changes() *changes.AssemblyChanges { return a.ch }

func (a *Assembly) guard() error {
	if a.closed {
		return &types.Error{Kind: types.ErrKindState, Msg: "assembly is closed"}
	}
	return nil
}

// dirty marks an edit. Editing after a successful apply invalidates
// further applies, since the stored references are already in final
// index space.
func (a *Assembly) dirty() {
	if a.applied {
		a.stale = true
	}
}

func (a *Assembly) resolver() oplog.ConflictResolver {
	if a.opts.Resolver != nil {
		return a.opts.Resolver
	}
	return oplog.LastWriteWins{}
}

// StringAdd appends value to the #Strings heap and returns the index
// rows should use. Identical values get distinct entries; the builder
// layer offers deduplicating lookups.
func (a *Assembly) StringAdd(value string) uint32 {
	a.dirty()
	return a.ch.Strings().Add(value)
}

// StringUpdate overwrites the string at index in the output image.
func (a *Assembly) StringUpdate(index uint32, value string) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "string index 0 is the shared empty entry"}
	}
	a.dirty()
	a.ch.Strings().AddModification(index, value)
	return nil
}

// StringRemove removes the string at index from the output image.
// FailIfReferenced rejects the removal while any live row still names
// the index; RemoveReferences clears the referencing columns in the
// same call.
func (a *Assembly) StringRemove(index uint32, strategy types.RefStrategy) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "string index 0 is the shared empty entry"}
	}
	if err := a.guard(); err != nil {
		return err
	}
	sc, err := verify.NewScanner(a.view, a.ch)
	if err != nil {
		return err
	}
	refs := sc.StringReferences(index)
	if len(refs) > 0 {
		if strategy == types.FailIfReferenced {
			return refusedRemoval("string index", index, refs)
		}
		if err := a.clearHeapColumns(refs, cil.ColString, index); err != nil {
			return err
		}
	}
	a.dirty()
	a.ch.Strings().Remove(index, strategy)
	return nil
}

// ReplaceStringHeap discards all tracked #Strings edits and substitutes
// raw as the complete heap for the output image.
func (a *Assembly) ReplaceStringHeap(raw []byte) {
	a.dirty()
	a.ch.Strings().ReplaceHeap(raw)
}

// BlobAdd appends value to the #Blob heap and returns its index.
func (a *Assembly) BlobAdd(value []byte) uint32 {
	a.dirty()
	return a.ch.Blobs().Add(value)
}

// BlobUpdate overwrites the blob at index in the output image.
func (a *Assembly) BlobUpdate(index uint32, value []byte) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "blob index 0 is the shared empty entry"}
	}
	a.dirty()
	a.ch.Blobs().AddModification(index, value)
	return nil
}

// BlobRemove removes the blob at index, honoring strategy the same way
// StringRemove does.
func (a *Assembly) BlobRemove(index uint32, strategy types.RefStrategy) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "blob index 0 is the shared empty entry"}
	}
	if err := a.guard(); err != nil {
		return err
	}
	sc, err := verify.NewScanner(a.view, a.ch)
	if err != nil {
		return err
	}
	refs := sc.BlobReferences(index)
	if len(refs) > 0 {
		if strategy == types.FailIfReferenced {
			return refusedRemoval("blob index", index, refs)
		}
		if err := a.clearHeapColumns(refs, cil.ColBlob, index); err != nil {
			return err
		}
	}
	a.dirty()
	a.ch.Blobs().Remove(index, strategy)
	return nil
}

// ReplaceBlobHeap discards all tracked #Blob edits and substitutes raw
// as the complete heap.
func (a *Assembly) ReplaceBlobHeap(raw []byte) {
	a.dirty()
	a.ch.Blobs().ReplaceHeap(raw)
}

// GUIDAdd appends value to the #GUID heap and returns its 1-based slot.
func (a *Assembly) GUIDAdd(value [16]byte) uint32 {
	a.dirty()
	return a.ch.GUIDs().Add(value)
}

// GUIDUpdate overwrites the GUID at slot in the output image.
func (a *Assembly) GUIDUpdate(slot uint32, value [16]byte) error {
	if slot == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "guid slot 0 is the null slot"}
	}
	a.dirty()
	a.ch.GUIDs().AddModification(slot, value)
	return nil
}

// GUIDRemove removes the GUID at slot, honoring strategy the same way
// StringRemove does.
func (a *Assembly) GUIDRemove(slot uint32, strategy types.RefStrategy) error {
	if slot == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "guid slot 0 is the null slot"}
	}
	if err := a.guard(); err != nil {
		return err
	}
	sc, err := verify.NewScanner(a.view, a.ch)
	if err != nil {
		return err
	}
	refs := sc.GUIDReferences(slot)
	if len(refs) > 0 {
		if strategy == types.FailIfReferenced {
			return refusedRemoval("guid slot", slot, refs)
		}
		if err := a.clearHeapColumns(refs, cil.ColGUID, slot); err != nil {
			return err
		}
	}
	a.dirty()
	a.ch.GUIDs().Remove(slot, strategy)
	return nil
}

// ReplaceGUIDHeap discards all tracked #GUID edits and substitutes raw
// as the complete heap.
func (a *Assembly) ReplaceGUIDHeap(raw []byte) {
	a.dirty()
	a.ch.GUIDs().ReplaceHeap(raw)
}

// UserStringAdd appends value to the #US heap and returns its index.
func (a *Assembly) UserStringAdd(value string) uint32 {
	a.dirty()
	return a.ch.UserStrings().Add(value)
}

// UserStringUpdate overwrites the user string at index.
func (a *Assembly) UserStringUpdate(index uint32, value string) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "user string index 0 is the shared empty entry"}
	}
	a.dirty()
	a.ch.UserStrings().AddModification(index, value)
	return nil
}

// UserStringRemove removes the user string at index. Table rows never
// name #US entries; references live in IL ldstr operands, so the check
// and the cascade cover method bodies stored in this session, not code
// already in the image. RemoveReferences redirects stored loads to the
// empty string.
func (a *Assembly) UserStringRemove(index uint32, strategy types.RefStrategy) error {
	if index == 0 {
		return &types.Error{Kind: types.ErrKindInvalidOp, Msg: "user string index 0 is the shared empty entry"}
	}
	sites := a.userStringLoadSites(index)
	if len(sites) > 0 {
		if strategy == types.FailIfReferenced {
			return fmt.Errorf("removing user string %d: loaded by %d stored method bodies: %w",
				index, len(sites), types.ErrReferenced)
		}
		a.redirectLdstr(index, 0)
	}
	a.dirty()
	a.ch.UserStrings().Remove(index, strategy)
	return nil
}

// ReplaceUserStringHeap discards all tracked #US edits and substitutes
// raw as the complete heap.
func (a *Assembly) ReplaceUserStringHeap(raw []byte) {
	a.dirty()
	a.ch.UserStrings().ReplaceHeap(raw)
}

// TableRowAdd appends row to the table's operation log and returns the
// assigned session RID with its token. RIDs continue from the original
// row count; ValidateAndApply may later renumber them into final
// positions.
func (a *Assembly) TableRowAdd(id cil.TableID, row cil.Row) (uint32, cil.Token, error) {
	m := a.ch.Table(id)
	rid := m.NextRID()
	op := oplog.NewTableOperation(oplog.Operation{Kind: oplog.OpInsert, RID: rid, Row: row})
	if err := m.Apply(op); err != nil {
		return 0, 0, err
	}
	a.dirty()
	return rid, cil.NewToken(id, rid), nil
}

// TableRowUpdate replaces the payload of an existing row, original or
// inserted earlier in the session.
func (a *Assembly) TableRowUpdate(id cil.TableID, rid uint32, row cil.Row) error {
	op := oplog.NewTableOperation(oplog.Operation{Kind: oplog.OpUpdate, RID: rid, Row: row})
	if err := a.ch.Table(id).Apply(op); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// TableRowRemove deletes the row at rid. FailIfReferenced rejects the
// delete while other live rows still point at it. RemoveReferences
// cascades in the same call: rows bound to the deleted row through a
// plain RID column are deleted with it, coded references are nulled,
// and list starts slide to the next surviving row.
func (a *Assembly) TableRowRemove(id cil.TableID, rid uint32, strategy types.RefStrategy) error {
	if rid == 0 {
		return oplog.ErrRIDZero
	}
	if err := a.guard(); err != nil {
		return err
	}
	sc, err := verify.NewScanner(a.view, a.ch)
	if err != nil {
		return err
	}
	tok := cil.NewToken(id, rid)
	if strategy == types.FailIfReferenced {
		if refs := sc.ReferencesTo(tok); len(refs) > 0 {
			return refusedRemoval(id.String()+" row", rid, refs)
		}
		if err := a.applyDelete(id, rid); err != nil {
			return err
		}
		a.dirty()
		return nil
	}
	if err := a.cascadeRowRemoval(sc, tok); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// OriginalTableRowCount returns the table's row count in the unedited
// image; 0 when the table is absent.
func (a *Assembly) OriginalTableRowCount(id cil.TableID) uint32 {
	return a.ch.OriginalRowCount(id)
}

// AddNativeImport records an import of function from dll by name.
// Duplicate functions for the same DLL are rejected.
func (a *Assembly) AddNativeImport(dll, function string) error {
	if err := a.ch.Imports().AddFunction(dll, function); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// AddNativeImportByOrdinal records an import of dll's export at
// ordinal.
func (a *Assembly) AddNativeImportByOrdinal(dll string, ordinal uint16) error {
	if err := a.ch.Imports().AddFunctionByOrdinal(dll, ordinal); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// AddNativeExport exposes address as a named native export at ordinal.
func (a *Assembly) AddNativeExport(name string, ordinal uint16, address uint32) error {
	if err := a.ch.Exports().AddFunction(name, ordinal, address); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// AddNativeExportByOrdinal exposes address at ordinal with no name.
func (a *Assembly) AddNativeExportByOrdinal(ordinal uint16, address uint32) error {
	if err := a.ch.Exports().AddFunctionByOrdinal(ordinal, address); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// AddNativeExportForwarder forwards the named export at ordinal to a
// "TargetDll.TargetFunc" string instead of local code.
func (a *Assembly) AddNativeExportForwarder(name string, ordinal uint16, target string) error {
	if err := a.ch.Exports().AddForwarder(name, ordinal, target); err != nil {
		return err
	}
	a.dirty()
	return nil
}

// AddMethodBody stores a complete method body (header, IL, exception
// clauses) and returns the placeholder RVA rows should carry until the
// writer assigns real addresses.
func (a *Assembly) AddMethodBody(body []byte) uint32 {
	a.dirty()
	return a.ch.AddMethodBody(body)
}

// Validate runs cfg's checks over the pending changes without touching
// them.
func (a *Assembly) Validate(ctx context.Context, cfg verify.Config) (*verify.Result, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return verify.Run(ctx, a.view, a.ch, cfg)
}

// ValidateAndApply validates the pending changes with the session's
// configured preset and, on success, rewrites them into final index
// space. See ValidateAndApplyWithConfig.
func (a *Assembly) ValidateAndApply(ctx context.Context) error {
	return a.ValidateAndApplyWithConfig(ctx, a.opts.Validation)
}

// ValidateAndApplyWithConfig prepares the change set for writing:
//
//  1. Run the validation pipeline. Any violation fails the whole call
//     and leaves every RID and heap index untouched.
//  2. Resolve same-RID operation conflicts with the configured
//     resolver; a rejecting resolver fails the call here.
//  3. Build the index remapper and rewrite all stored references to
//     their final positions.
//
// The rewrite happens at most once per session. Edits recorded after a
// successful apply cannot be folded into the already-rewritten state,
// so a later call fails with a state error instead of corrupting
// indices.
func (a *Assembly) ValidateAndApplyWithConfig(ctx context.Context, cfg verify.Config) error {
	if err := a.guard(); err != nil {
		return err
	}
	if a.stale {
		return &types.Error{
			Kind: types.ErrKindState,
			Msg:  "changes were edited after apply; write the image or start a new session",
		}
	}
	res, err := verify.Run(ctx, a.view, a.ch, cfg)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	for _, id := range a.ch.ModifiedTables() {
		m, ok := a.ch.TableIfPresent(id)
		if !ok {
			continue
		}
		if _, err := m.EffectiveOps(a.resolver()); err != nil {
			return fmt.Errorf("resolving %s conflicts: %w", id, err)
		}
	}
	if a.applied {
		return nil
	}
	rm := remap.BuildFromChanges(a.ch)
	rm.ApplyToChanges(a.ch)
	a.applied = true
	return nil
}

// WriteToFile serializes the original image with all pending changes
// into a new file at path. The source file is never touched.
//
// Writing does not validate. A session that removed heap entries or
// deleted rows must go through ValidateAndApply first so stored
// references are in final index space; skipping it with such changes
// produces an image with stale references.
func (a *Assembly) WriteToFile(ctx context.Context, path string) error {
	if err := a.guard(); err != nil {
		return err
	}
	return writer.WriteFile(ctx, a.view, a.ch, path)
}
