// Package buffer provides thread-safe FIFO buffering for event records
// awaiting a write into a partition's active file.
//
// # PartitionBuffer
//
// PartitionBuffer is a thread-safe, unbounded FIFO queue for a single
// Kafka partition:
//
//	buf := buffer.New(partitionID)
//	buf.Add(record)
//	rec, ok := buf.Dequeue()
//
// Unlike a capped buffer, PartitionBuffer never rejects an Add: rotation
// is driven entirely by the partition state machine's RotationPolicy,
// not by queue pressure.
//
// # Buffer Manager
//
// Manager handles multiple partition buffers with automatic creation:
//
//	manager := buffer.NewManager()
//	buf := manager.GetOrCreate(partitionID)
//	manager.Remove(partitionID) // on partition revocation
//
// # Thread Safety
//
// PartitionBuffer guards its queue with a mutex; Manager guards its map
// with a RWMutex and double-checked locking on GetOrCreate.
package buffer
