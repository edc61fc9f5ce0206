package buffer

import (
	"testing"
	"time"

	"github.com/jittakal/kafeventstore/pkg/event"
)

func newTestRecord(partitionID event.PartitionID, offset int64) event.Record {
	now := time.Now()
	return event.Record{
		Event: &event.CloudEvent{
			ID:          "test",
			Source:      "test",
			SpecVersion: "1.0",
			Type:        "test.event",
			Data:        []byte(`{"test":"data"}`),
		},
		Kafka: event.KafkaMetadata{
			Topic:     partitionID.Topic,
			Partition: partitionID.Partition,
			Offset:    offset,
			Timestamp: now,
		},
		Offset:      offset,
		ProcessedAt: now,
	}
}

func TestNew(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	if buf == nil {
		t.Fatal("expected non-nil buffer")
	}
	if buf.partitionID != partitionID {
		t.Errorf("partitionID = %v, want %v", buf.partitionID, partitionID)
	}
	if !buf.IsEmpty() {
		t.Error("new buffer should be empty")
	}
}

func TestPartitionBuffer_AddAndDequeue(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	buf.Add(newTestRecord(partitionID, 100))

	if buf.Len() != 1 {
		t.Errorf("Len() = %d, want 1", buf.Len())
	}

	rec, ok := buf.Dequeue()
	if !ok {
		t.Fatal("Dequeue() ok = false, want true")
	}
	if rec.Offset != 100 {
		t.Errorf("Offset = %d, want 100", rec.Offset)
	}
	if !buf.IsEmpty() {
		t.Error("buffer should be empty after dequeuing its only record")
	}
}

func TestPartitionBuffer_FIFOOrder(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	for i := int64(0); i < 5; i++ {
		buf.Add(newTestRecord(partitionID, i))
	}

	for i := int64(0); i < 5; i++ {
		rec, ok := buf.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() at i=%d ok = false, want true", i)
		}
		if rec.Offset != i {
			t.Errorf("Dequeue() offset = %d, want %d", rec.Offset, i)
		}
	}
}

func TestPartitionBuffer_DequeueEmpty(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	_, ok := buf.Dequeue()
	if ok {
		t.Error("Dequeue() on empty buffer should return ok = false")
	}
}

func TestPartitionBuffer_Unbounded(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	const n = 10000
	for i := int64(0); i < n; i++ {
		buf.Add(newTestRecord(partitionID, i))
	}

	if buf.Len() != n {
		t.Errorf("Len() = %d, want %d", buf.Len(), n)
	}
}

func TestPartitionBuffer_ConcurrentAdd(t *testing.T) {
	partitionID := event.PartitionID{Topic: "test-topic", Partition: 0}
	buf := New(partitionID)

	concurrency := 10
	recordsPerGoroutine := 50
	done := make(chan bool, concurrency)

	for g := 0; g < concurrency; g++ {
		go func(goroutineID int) {
			for i := 0; i < recordsPerGoroutine; i++ {
				buf.Add(newTestRecord(partitionID, int64(goroutineID*recordsPerGoroutine+i)))
			}
			done <- true
		}(g)
	}

	for i := 0; i < concurrency; i++ {
		<-done
	}

	if want := concurrency * recordsPerGoroutine; buf.Len() != want {
		t.Errorf("Len() = %d, want %d", buf.Len(), want)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()

	p0 := event.PartitionID{Topic: "orders", Partition: 0}
	p1 := event.PartitionID{Topic: "orders", Partition: 1}

	buf0 := manager.GetOrCreate(p0)
	buf1 := manager.GetOrCreate(p1)
	if buf0 == buf1 {
		t.Error("buffers for different partitions should differ")
	}

	buf0Again := manager.GetOrCreate(p0)
	if buf0 != buf0Again {
		t.Error("GetOrCreate() for the same partition should return the same buffer")
	}
}

func TestManager_Remove(t *testing.T) {
	manager := NewManager()
	p := event.PartitionID{Topic: "orders", Partition: 0}

	buf := manager.GetOrCreate(p)
	buf.Add(newTestRecord(p, 0))

	manager.Remove(p)

	fresh := manager.GetOrCreate(p)
	if fresh == buf {
		t.Error("expected a fresh buffer after Remove")
	}
	if !fresh.(*PartitionBuffer).IsEmpty() {
		t.Error("fresh buffer after Remove should be empty")
	}
}
