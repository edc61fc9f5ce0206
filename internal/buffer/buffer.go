// Package buffer implements the unbounded per-partition FIFO queue.
package buffer

import (
	"sync"

	"github.com/jittakal/kafeventstore/pkg/buffer"
	"github.com/jittakal/kafeventstore/pkg/event"
)

// Ensure implementations satisfy interfaces at compile time.
var (
	_ buffer.Buffer  = (*PartitionBuffer)(nil)
	_ buffer.Manager = (*Manager)(nil)
)

// PartitionBuffer is a thread-safe, unbounded FIFO queue of records for a
// single Kafka partition.
type PartitionBuffer struct {
	partitionID event.PartitionID
	records     []event.Record
	mu          sync.Mutex
}

// New creates a new partition buffer.
func New(partitionID event.PartitionID) *PartitionBuffer {
	return &PartitionBuffer{partitionID: partitionID}
}

// Add appends a record to the tail of the queue.
func (b *PartitionBuffer) Add(record event.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, record)
}

// Dequeue removes and returns the record at the head of the queue.
func (b *PartitionBuffer) Dequeue() (event.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) == 0 {
		return event.Record{}, false
	}

	rec := b.records[0]
	b.records = b.records[1:]
	return rec, true
}

// Len returns the number of queued records.
func (b *PartitionBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// IsEmpty reports whether the queue has no queued records.
func (b *PartitionBuffer) IsEmpty() bool {
	return b.Len() == 0
}

// Manager manages buffers for multiple Kafka partitions.
// It provides thread-safe access to partition-specific buffers, creating
// them on-demand.
type Manager struct {
	buffers map[event.PartitionID]*PartitionBuffer
	mu      sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager() *Manager {
	return &Manager{buffers: make(map[event.PartitionID]*PartitionBuffer)}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partitionID event.PartitionID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[partitionID]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if buf, exists := m.buffers[partitionID]; exists {
		return buf
	}

	buf = New(partitionID)
	m.buffers[partitionID] = buf
	return buf
}

// Remove discards the buffer for the given partition, on partition
// revocation.
func (m *Manager) Remove(partitionID event.PartitionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, partitionID)
}
