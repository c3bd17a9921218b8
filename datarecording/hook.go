package datarecording

import (
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/vm"
)

// Table names written by RecordingHook.
const (
	CommitTable = "batch_commit"
	WalkTable   = "page_walk"
)

// CommitEntry is one Batcher commit.
type CommitEntry struct {
	ID         string
	NumReads   int
	NumWrites  int
	ReadBytes  uint64
	WriteBytes uint64
	Error      string
}

// WalkEntry is one translated address.
type WalkEntry struct {
	WalkID   string
	Arch     string
	DTB      uint64
	VAddr    uint64
	PAddr    uint64
	PageSize uint64
	Level    int
	Error    string
}

// A RecordingHook stores the commits and walks it observes. Attach it to
// Batchers and Translators.
type RecordingHook struct {
	recorder DataRecorder
}

// NewRecordingHook creates the tables the hook writes into.
func NewRecordingHook(r DataRecorder) *RecordingHook {
	r.CreateTable(CommitTable, CommitEntry{})
	r.CreateTable(WalkTable, WalkEntry{})

	return &RecordingHook{recorder: r}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// Func records the item of an after-commit or walk-done event and ignores
// everything else.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case mem.HookPosAfterCommit:
		h.recordCommit(ctx.Item.(*mem.CommitInfo))
	case vm.HookPosWalkDone:
		h.recordWalk(ctx.Item.(*vm.WalkInfo))
	}
}

func (h *RecordingHook) recordCommit(info *mem.CommitInfo) {
	h.recorder.InsertData(CommitTable, CommitEntry{
		ID:         info.ID,
		NumReads:   info.NumReads,
		NumWrites:  info.NumWrites,
		ReadBytes:  info.ReadBytes.Uint64(),
		WriteBytes: info.WriteBytes.Uint64(),
		Error:      errString(info.Err),
	})
}

func (h *RecordingHook) recordWalk(info *vm.WalkInfo) {
	for _, res := range info.Results {
		h.recorder.InsertData(WalkTable, WalkEntry{
			WalkID:   info.ID,
			Arch:     info.Arch,
			DTB:      info.DTB.Uint64(),
			VAddr:    res.VAddr.Uint64(),
			PAddr:    res.Page.PAddr.Uint64(),
			PageSize: res.Page.PageSize.Uint64(),
			Level:    res.Page.Level,
			Error:    errString(res.Err),
		})
	}
}
