// Package upstream defines the control surface the core requires from the
// upstream log client (Kafka), decoupling the partition state machine and
// coordinator from any specific client library.
//
// internal/kafka provides the Sarama-backed implementation.
package upstream

import "github.com/jittakal/kafeventstore/pkg/event"

// Client is the subset of a Kafka consumer's control surface the core
// needs: pausing/resuming delivery, seeking to an offset, and requesting
// a poll backoff. All methods are idempotent.
type Client interface {
	// Assignment returns the partitions currently assigned to this task.
	Assignment() []event.PartitionID

	// Pause stops delivery of records for p until Resume is called.
	Pause(p event.PartitionID)

	// Resume restarts delivery of records for p.
	Resume(p event.PartitionID)

	// Seek sets the next delivery position for p.
	Seek(p event.PartitionID, offset int64)

	// RequestBackoff asks the client to delay its next poll by ms
	// milliseconds.
	RequestBackoff(ms int)

	// Commit marks offset (exclusive, i.e. "next offset to consume") as
	// safe to commit for p.
	Commit(p event.PartitionID, offset int64)
}
