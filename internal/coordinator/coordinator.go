// Package coordinator owns the set of partitions assigned to this task
// instance, routes incoming records into per-partition buffers, and
// drives each partition's recovery and write state machine forward.
package coordinator

import (
	"log/slog"
	"sync"
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/jittakal/kafeventstore/internal/buffer"
	"github.com/jittakal/kafeventstore/internal/partition"
	"github.com/jittakal/kafeventstore/pkg/consumer"
	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/storage"
	"github.com/jittakal/kafeventstore/pkg/upstream"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.RecordSink = (*Coordinator)(nil)

// MetricsCollector defines the metrics operations the coordinator
// reports directly, beyond what it delegates to the partition state
// machine.
type MetricsCollector interface {
	IncPartitionFailureBackoff(topic string, partition int32)
}

// Config carries the fixed parameters a Coordinator needs.
type Config struct {
	RetryBackoffMs int
}

// Coordinator owns the assignment set, the shared storage adapter, and
// the per-partition state machines. The upstream caller drives Write,
// OnAssigned, OnRevoked, and Close serially from one goroutine; the
// Coordinator does no internal locking beyond guarding against
// concurrent calls from diagnostics code such as CommittedOffsets.
type Coordinator struct {
	mu      sync.Mutex
	machine *partition.Machine
	adapter storage.Adapter
	buffers *buffer.Manager
	states  map[event.PartitionID]*partition.State
	client  upstream.Client
	cfg     Config
	logger  *slog.Logger
	metrics MetricsCollector
}

// New creates a Coordinator driving machine over adapter.
func New(machine *partition.Machine, adapter storage.Adapter, cfg Config, logger *slog.Logger, metrics MetricsCollector) *Coordinator {
	return &Coordinator{
		machine: machine,
		adapter: adapter,
		buffers: buffer.NewManager(),
		states:  make(map[event.PartitionID]*partition.State),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// OnAssigned initializes state for newly assigned partitions and runs
// their recovery sub-machine. client is retained for the lifetime of the
// assignment, for subsequent drive calls and backoff requests.
func (c *Coordinator) OnAssigned(partitions []event.PartitionID, client upstream.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client = client
	for _, id := range partitions {
		if _, exists := c.states[id]; exists {
			continue
		}
		state := partition.NewState(id)
		c.states[id] = state
		c.buffers.GetOrCreate(id)

		c.logger.Info("partition assigned", "partition", id.String())
		c.drive(state)
	}
}

// OnRevoked best-effort commits each revoked partition's open temp
// artifact, releases its WAL lease, and drops its buffered records.
// Errors are logged, never raised, per the revocation handling policy.
func (c *Coordinator) OnRevoked(partitions []event.PartitionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range partitions {
		state, exists := c.states[id]
		if !exists {
			continue
		}
		c.revoke(state)
		delete(c.states, id)
		c.buffers.Remove(id)
		c.logger.Info("partition revoked", "partition", id.String())
	}
}

// Write buckets records into their partition buffers, then drives every
// currently assigned partition not presently in backoff.
func (c *Coordinator) Write(records []event.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		id := event.PartitionID{Topic: rec.Kafka.Topic, Partition: rec.Kafka.Partition}
		if _, exists := c.states[id]; !exists {
			// Not (or no longer) assigned to this task; drop silently, the
			// upstream rebalance protocol owns partition ownership.
			continue
		}
		c.buffers.GetOrCreate(id).Add(rec)
	}

	now := time.Now()
	for _, state := range c.states {
		if state.BackedOff(now) {
			continue
		}
		c.drive(state)
	}
}

// CommittedOffsets returns, per assigned partition with a defined high
// water mark, the next offset the upstream may safely commit.
func (c *Coordinator) CommittedOffsets() map[event.PartitionID]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[event.PartitionID]int64, len(c.states))
	for id, state := range c.states {
		if state.Seeded {
			out[id] = state.HighWater
		}
	}
	return out
}

// Close best-effort tears down every assigned partition (as OnRevoked
// does) and closes the shared storage adapter, aggregating every
// teardown failure into a single returned error.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for id, state := range c.states {
		if err := c.revokeErr(state); err != nil {
			result = multierror.Append(result, err)
		}
		delete(c.states, id)
		c.buffers.Remove(id)
	}

	if err := c.adapter.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// drive runs the recovery sub-machine if state has not yet reached
// WriteStarted, otherwise drains its buffer through the write
// sub-machine. Failures are recorded on state and surfaced to the
// upstream as a requested backoff rather than propagated.
func (c *Coordinator) drive(state *partition.State) {
	var err error
	if state.Step < partition.WriteStarted {
		err = c.machine.Recover(state, c.client)
	} else {
		err = c.machine.Execute(state, c.buffers.GetOrCreate(state.ID))
	}

	if err == nil {
		state.FailureTime = time.Time{}
		return
	}

	state.FailureTime = time.Now()
	state.BackoffMs = c.cfg.RetryBackoffMs
	if c.client != nil {
		c.client.RequestBackoff(c.cfg.RetryBackoffMs)
	}
	if c.metrics != nil {
		c.metrics.IncPartitionFailureBackoff(state.ID.Topic, state.ID.Partition)
	}
	c.logger.Error("partition drain failed, backing off",
		"partition", state.ID.String(),
		"step", state.Step.String(),
		"backoff_ms", c.cfg.RetryBackoffMs,
		"error", err,
	)
}

func (c *Coordinator) revoke(state *partition.State) {
	if err := c.revokeErr(state); err != nil {
		c.logger.Error("revocation teardown failed", "partition", state.ID.String(), "error", err)
	}
}

func (c *Coordinator) revokeErr(state *partition.State) error {
	buf := c.buffers.GetOrCreate(state.ID)

	var result *multierror.Error
	if err := c.machine.ForceRotate(state, buf); err != nil {
		c.machine.CloseTemp(state)
		result = multierror.Append(result, err)
	}
	// The WAL lease must be released on every exit path, including a
	// failed rotate/commit above, or a future reassignment of this
	// partition fails OpenWAL with storage.Fenced permanently.
	if state.WAL != nil {
		if err := state.WAL.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
