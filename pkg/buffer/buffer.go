// Package buffer defines the per-partition FIFO queue that decouples
// Kafka delivery from the partition state machine's write pace.
//
// There is no size or count cap and records are never rejected here.
// Kafka delivery for a partition is paused only while it recovers; it is
// not paused while the state machine drains, so a partition whose state
// machine has fallen behind keeps accumulating records.
package buffer

import (
	"github.com/jittakal/kafeventstore/pkg/event"
)

// Buffer is an unbounded, thread-safe FIFO queue of records awaiting
// write for a single partition.
type Buffer interface {
	// Add appends a record to the tail of the queue.
	Add(record event.Record)

	// Dequeue removes and returns the record at the head of the queue.
	// ok is false if the queue is empty.
	Dequeue() (event.Record, bool)

	// Len returns the number of queued records.
	Len() int

	// IsEmpty reports whether the queue has no queued records.
	IsEmpty() bool
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partitionID event.PartitionID) Buffer

	// Remove discards the buffer for the given partition.
	Remove(partitionID event.PartitionID)
}
