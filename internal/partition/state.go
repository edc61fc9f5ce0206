package partition

import (
	"fmt"
	"time"

	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/storage"
	"github.com/jittakal/kafeventstore/pkg/writer"
)

// Step is one state in the shared recovery/write state machine. Recover
// and Execute advance a State through these values in declaration order;
// the write sub-machine returns to WritePartitionPaused after
// FileCommitted, and from ShouldRotateStep when no rotation is due.
type Step int

const (
	RecoveryStarted Step = iota
	RecoveryPartitionPaused
	WALCreated
	WALApplied
	WALTruncated
	OffsetReset
	WriteStarted
	WritePartitionPaused
	ShouldRotateStep
	TempFileClosed
	WALAppended
	FileCommitted
)

func (s Step) String() string {
	switch s {
	case RecoveryStarted:
		return "RECOVERY_STARTED"
	case RecoveryPartitionPaused:
		return "RECOVERY_PARTITION_PAUSED"
	case WALCreated:
		return "WAL_CREATED"
	case WALApplied:
		return "WAL_APPLIED"
	case WALTruncated:
		return "WAL_TRUNCATED"
	case OffsetReset:
		return "OFFSET_RESET"
	case WriteStarted:
		return "WRITE_STARTED"
	case WritePartitionPaused:
		return "WRITE_PARTITION_PAUSED"
	case ShouldRotateStep:
		return "SHOULD_ROTATE"
	case TempFileClosed:
		return "TEMP_FILE_CLOSED"
	case WALAppended:
		return "WAL_APPENDED"
	case FileCommitted:
		return "FILE_COMMITTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// State co-locates every field the recovery and write sub-machines share
// for one partition, instead of a set of parallel maps keyed by
// partition.
type State struct {
	ID event.PartitionID

	Step Step

	WAL storage.WAL

	Writer      writer.RecordWriter
	TempPath    string
	FinalPath   string
	FirstOffset int64
	LastOffset  int64
	RecordCount int

	FirstWriteTime time.Time
	LastWriteTime  time.Time

	// HighWater is the next offset this partition expects to write.
	// Seeded exactly once, from the first record's offset, only if
	// recovery found no prior committed files for the partition.
	HighWater int64
	Seeded    bool

	FailureTime time.Time
	BackoffMs   int
}

// NewState creates a fresh per-partition state, ready for Recover.
func NewState(id event.PartitionID) *State {
	return &State{ID: id, Step: RecoveryStarted}
}

// Stats returns the FileStats view of the currently open temp artifact,
// for RotationPolicy.
func (s *State) Stats() event.FileStats {
	return event.FileStats{
		RecordCount:    s.RecordCount,
		FirstWriteTime: s.FirstWriteTime,
		LastWriteTime:  s.LastWriteTime,
	}
}

// BackedOff reports whether the partition is still within its last
// recorded failure's backoff window.
func (s *State) BackedOff(now time.Time) bool {
	if s.FailureTime.IsZero() {
		return false
	}
	return now.Before(s.FailureTime.Add(time.Duration(s.BackoffMs) * time.Millisecond))
}
