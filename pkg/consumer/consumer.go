// Package consumer defines interfaces for Kafka event consumption.
//
// This package provides abstractions for consuming events from Kafka
// and driving them into the partition write pipeline.
package consumer

import (
	"context"

	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/upstream"
)

// RecordSink receives validated records from a Consumer and reports back
// which offsets are safe to commit. internal/coordinator.Coordinator
// implements this interface.
type RecordSink interface {
	// OnAssigned is called once per rebalance with the partitions newly
	// assigned to this task and the client controlling their delivery.
	OnAssigned(partitions []event.PartitionID, client upstream.Client)

	// OnRevoked is called once per rebalance with the partitions this
	// task no longer owns. Any buffered or in-flight work for them
	// should be torn down best-effort.
	OnRevoked(partitions []event.PartitionID)

	// Write delivers newly consumed records for processing.
	Write(records []event.Record)

	// CommittedOffsets returns, per partition with a defined high water
	// mark, the next offset safe to commit upstream.
	CommittedOffsets() map[event.PartitionID]int64
}

// Consumer reads events from Kafka topics and drives them into a
// RecordSink.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Run consumes from the subscribed topics until ctx is cancelled,
	// delivering records and rebalance notifications to sink.
	Run(ctx context.Context, sink RecordSink) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes failed events to a dead letter queue.
type DLQPublisher interface {
	// Publish sends an event to the DLQ with error information.
	Publish(ctx context.Context, event *event.CloudEvent, metadata event.KafkaMetadata, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
