package imap

import "time"

// StoreOp is the STORE flag operation: add (+FLAGS), remove (-FLAGS), or set
// (FLAGS), per spec.md §4.6 STORE.
type StoreOp int

const (
	StoreAdd StoreOp = iota
	StoreRemove
	StoreSet
)

// StoreRequest describes a STORE/UID STORE command.
type StoreRequest struct {
	Op             StoreOp
	Flags          []Flag
	Silent         bool
	UseLabels      bool // X-GM-LABELS instead of FLAGS, requires X-GM-EXT-1
	UnchangedSince uint64
	HasUnchanged   bool
}

// AppendOptions configures APPEND (spec.md §4.6 APPEND).
type AppendOptions struct {
	Flags        []Flag
	InternalDate time.Time // zero value means omit
}
