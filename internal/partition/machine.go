// Package partition implements the per-partition recovery and write
// state machine shared by every assigned Kafka partition.
//
// Recover and Execute mirror the two sub-machines described for the
// connector: recovery replays a partition's write-ahead log and
// establishes its high-water offset before any new record is accepted;
// execute drains the partition's buffered records into the currently
// open temp artifact, rotating, WAL-appending, and committing as
// needed. Both share the step field on State so a crash mid-sequence
// resumes at the exact point it left off.
package partition

import (
	"errors"
	"fmt"
	"time"

	"github.com/jittakal/kafeventstore/internal/naming"
	"github.com/jittakal/kafeventstore/pkg/buffer"
	"github.com/jittakal/kafeventstore/pkg/event"
	kferrors "github.com/jittakal/kafeventstore/internal/errors"
	"github.com/jittakal/kafeventstore/pkg/storage"
	"github.com/jittakal/kafeventstore/pkg/upstream"
	"github.com/jittakal/kafeventstore/pkg/writer"
)

// MetricsCollector defines the metrics operations the state machine
// reports.
type MetricsCollector interface {
	IncPartitionRecoveries(topic string, partition int32, status string)
	IncPartitionFailureBackoff(topic string, partition int32)
	IncWALApplies(topic string, partition int32)
	ObserveWALAppendDuration(topic string, partition int32, duration float64)
	IncFilesCommitted(topic string, partition int32)
	ObserveCommitDuration(topic string, partition int32, duration float64)
}

// Machine runs the recovery and write sub-machines for every partition
// assigned to this task, sharing one storage.Adapter, one
// writer.Provider, and one RotationPolicy across all of them.
type Machine struct {
	adapter   storage.Adapter
	provider  writer.Provider
	rotation  RotationPolicy
	root      string
	topicsDir string
	metrics   MetricsCollector
}

// Config carries the fixed parameters a Machine needs.
type Config struct {
	Root      string
	TopicsDir string
}

// New creates a Machine over the given adapter, record writer provider,
// and rotation policy.
func New(adapter storage.Adapter, provider writer.Provider, rotation RotationPolicy, cfg Config, metrics MetricsCollector) *Machine {
	return &Machine{
		adapter:   adapter,
		provider:  provider,
		rotation:  rotation,
		root:      cfg.Root,
		topicsDir: cfg.TopicsDir,
		metrics:   metrics,
	}
}

// Recover runs the recovery sub-machine to completion: pausing delivery,
// opening and applying the partition's write-ahead log, truncating it,
// resetting the consumer to the partition's high-water offset, and
// resuming delivery. It returns with state.Step == WriteStarted on
// success.
func (m *Machine) Recover(state *State, client upstream.Client) error {
	for {
		switch state.Step {
		case RecoveryStarted:
			client.Pause(state.ID)
			state.Step = RecoveryPartitionPaused

		case RecoveryPartitionPaused:
			wal, err := m.adapter.OpenWAL(state.ID.Topic, state.ID.Partition)
			if err != nil {
				if errors.Is(err, storage.ErrFenced) {
					return &kferrors.CoordinationError{PartitionID: state.ID, Err: err}
				}
				return &kferrors.WALError{PartitionID: state.ID, Operation: "open", Err: err}
			}
			state.WAL = wal
			state.Step = WALCreated

		case WALCreated:
			if err := state.WAL.Apply(); err != nil {
				return &kferrors.WALError{PartitionID: state.ID, Operation: "apply", Err: err}
			}
			if m.metrics != nil {
				m.metrics.IncWALApplies(state.ID.Topic, state.ID.Partition)
			}
			state.Step = WALApplied

		case WALApplied:
			if err := state.WAL.Truncate(); err != nil {
				return &kferrors.WALError{PartitionID: state.ID, Operation: "truncate", Err: err}
			}
			state.Step = WALTruncated

		case WALTruncated:
			hw, found, err := m.readHighWater(state.ID)
			if err != nil {
				return &kferrors.StorageError{Operation: "list", Path: naming.PartitionDir(m.root, m.topicsDir, state.ID), Err: err}
			}
			state.HighWater = hw
			state.Seeded = found
			state.Step = OffsetReset

		case OffsetReset:
			if state.Seeded {
				client.Seek(state.ID, state.HighWater)
			}
			state.Step = WriteStarted

		case WriteStarted:
			client.Resume(state.ID)
			if m.metrics != nil {
				m.metrics.IncPartitionRecoveries(state.ID.Topic, state.ID.Partition, "success")
			}
			return nil

		default:
			return &kferrors.IllegalWorkerStateError{
				PartitionID: state.ID,
				Reason:      fmt.Sprintf("recover called with write-phase step %s", state.Step),
			}
		}
	}
}

// Execute runs the write sub-machine: draining buf one record at a time
// into the open temp artifact, rotating, WAL-appending, and committing
// when the rotation policy fires. It returns nil once buf is empty and
// the machine has settled back at WritePartitionPaused.
func (m *Machine) Execute(state *State, buf buffer.Buffer) error {
	for {
		switch state.Step {
		case WriteStarted:
			state.Step = WritePartitionPaused

		case WritePartitionPaused:
			rec, ok := buf.Dequeue()
			if !ok {
				return nil
			}
			if err := m.writeRecord(state, rec); err != nil {
				return err
			}
			state.Step = ShouldRotateStep

		case ShouldRotateStep:
			if m.rotation.ShouldRotate(state.Stats()) {
				state.Step = TempFileClosed
			} else {
				state.Step = WritePartitionPaused
			}

		case TempFileClosed:
			if err := state.Writer.Close(); err != nil {
				return &kferrors.RecordWriterError{PartitionID: state.ID, TempPath: state.TempPath, Err: err}
			}
			state.Writer = nil
			state.FinalPath = naming.CommittedPath(m.root, m.topicsDir, state.ID, state.FirstOffset, state.LastOffset, m.provider.FileExtension())
			state.Step = WALAppended

		case WALAppended:
			start := time.Now()
			if err := state.WAL.Append(state.TempPath, state.FinalPath); err != nil {
				return &kferrors.WALError{PartitionID: state.ID, Operation: "append", Err: err}
			}
			if m.metrics != nil {
				m.metrics.ObserveWALAppendDuration(state.ID.Topic, state.ID.Partition, time.Since(start).Seconds())
			}
			state.Step = FileCommitted

		case FileCommitted:
			start := time.Now()
			if err := m.adapter.Commit(state.TempPath, state.FinalPath); err != nil {
				return &kferrors.StorageError{Operation: "commit", Path: state.FinalPath, Err: err}
			}
			if err := state.WAL.Truncate(); err != nil {
				return &kferrors.WALError{PartitionID: state.ID, Operation: "truncate", Err: err}
			}
			if m.metrics != nil {
				m.metrics.IncFilesCommitted(state.ID.Topic, state.ID.Partition)
				m.metrics.ObserveCommitDuration(state.ID.Topic, state.ID.Partition, time.Since(start).Seconds())
			}
			state.HighWater = state.LastOffset + 1
			state.RecordCount = 0
			state.FirstWriteTime = time.Time{}
			state.Step = WritePartitionPaused

		default:
			return &kferrors.IllegalWorkerStateError{
				PartitionID: state.ID,
				Reason:      fmt.Sprintf("execute called with recovery-phase step %s", state.Step),
			}
		}
	}
}

// CloseTemp abandons any open temp artifact without committing it, for
// best-effort cleanup on partition revocation.
func (m *Machine) CloseTemp(state *State) {
	if state.Writer != nil {
		state.Writer.Close()
		state.Writer = nil
	}
}

// ForceRotate closes, WAL-appends, and commits any currently open temp
// artifact, bypassing the rotation policy. Used on partition revocation
// so work already written to the temp artifact is not lost. A no-op if
// no temp artifact is open.
func (m *Machine) ForceRotate(state *State, buf buffer.Buffer) error {
	if state.Writer == nil {
		return nil
	}
	state.Step = TempFileClosed
	return m.Execute(state, buf)
}

func (m *Machine) writeRecord(state *State, rec event.Record) error {
	if state.Writer == nil {
		tempPath := naming.TempPath(m.root, m.topicsDir, state.ID)
		w, err := m.provider.NewWriter(tempPath, rec)
		if err != nil {
			return &kferrors.RecordWriterError{PartitionID: state.ID, TempPath: tempPath, Err: err}
		}
		state.Writer = w
		state.TempPath = tempPath
		state.FirstOffset = rec.Offset
		state.FirstWriteTime = time.Now()

		if !state.Seeded {
			state.HighWater = rec.Offset
			state.Seeded = true
		}
	}

	if err := state.Writer.Write(rec.GetEventTime(), rec); err != nil {
		return &kferrors.RecordWriterError{PartitionID: state.ID, TempPath: state.TempPath, Err: err}
	}

	state.LastOffset = rec.Offset
	state.RecordCount++
	state.LastWriteTime = time.Now()
	return nil
}

// readHighWater scans a partition's committed files and returns one past
// the highest committed offset. found is false if no committed files
// exist yet, in which case the caller must seed HighWater from the first
// record it writes.
func (m *Machine) readHighWater(id event.PartitionID) (int64, bool, error) {
	dir := naming.PartitionDir(m.root, m.topicsDir, id)
	infos, err := m.adapter.ListStatus(dir, naming.CommittedFilter)
	if err != nil {
		return 0, false, err
	}

	var maxEnd int64 = -1
	for _, info := range infos {
		_, end, ok := naming.ParseCommitted(info.Name)
		if ok && end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd < 0 {
		return 0, false, nil
	}
	return maxEnd + 1, true, nil
}

