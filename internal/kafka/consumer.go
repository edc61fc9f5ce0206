// Package kafka implements Kafka consumer and producer functionality.
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/jittakal/kafeventstore/internal/errors"
	"github.com/jittakal/kafeventstore/pkg/consumer"
	"github.com/jittakal/kafeventstore/pkg/event"
	"github.com/jittakal/kafeventstore/pkg/upstream"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ consumer.Consumer = (*SaramaConsumer)(nil)
	_ upstream.Client   = (*SaramaTaskContext)(nil)
)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	SecurityProtocol    string
	SASLMechanism       string
	SASLUsername        string
	SASLPassword        string
	AutoOffsetReset     string
	EnableAutoCommit    bool
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncRebalances(groupID string)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveRebalanceDuration(groupID string, duration float64)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	SetPartitionsAssigned(topic string, count float64)
}

// SaramaConsumer implements the consumer.Consumer interface using the Sarama library.
// It provides a production-ready Kafka consumer with support for consumer groups,
// offset management, and various security protocols including AWS MSK IAM.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector
	validator     event.Validator
	dlq           consumer.DLQPublisher
	topics        []string
	ready         chan bool
	readyOnce     sync.Once
	mu            sync.RWMutex
	closed        bool
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(
	config ConsumerConfig,
	validator event.Validator,
	dlq consumer.DLQPublisher,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	saramaConfig := sarama.NewConfig()

	// Consumer configuration following AWS MSK best practices
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)

	// AWS MSK Best Practices: Timeout settings
	// session_timeout_ms should be between 6000-300000 (6s-5min), recommended 10000 (10s)
	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond

	// max_poll_interval_ms prevents rebalancing during long processing
	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	} else {
		// Default to 5 minutes if not specified
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	saramaConfig.Consumer.Return.Errors = true

	// Security configuration
	if err := configureSecurity(saramaConfig, config); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	// Consumer group rebalance strategy requires explicit partition
	// assignment control (pause/resume/reset), so disable the library's
	// automatic offset commit loop entirely; commits flow through
	// SaramaTaskContext.Commit once storage has durably committed the
	// corresponding file.
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = false

	// Create consumer group
	consumerGroup, err := sarama.NewConsumerGroup(
		config.BootstrapServers,
		config.GroupID,
		saramaConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"session_timeout_ms", config.SessionTimeoutMS,
		"max_poll_interval_ms", config.MaxPollIntervalMS,
	)

	return &SaramaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		validator:     validator,
		dlq:           dlq,
		ready:         make(chan bool),
		closed:        false,
	}, nil
}

// Subscribe subscribes to the specified topics.
func (c *SaramaConsumer) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}

	c.topics = topics
	c.logger.Info("subscribed to topics", "topics", topics)
	return nil
}

// Run drives the consumer group loop until ctx is cancelled, delivering
// validated records and rebalance notifications to sink. It blocks for
// the lifetime of the subscription; callers typically run it in its own
// goroutine and cancel ctx on shutdown.
func (c *SaramaConsumer) Run(ctx context.Context, sink consumer.RecordSink) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.ErrConsumerClosed
	}
	topics := c.topics
	c.mu.RUnlock()

	handler := &consumerGroupHandler{
		consumer:  c,
		sink:      sink,
		validator: c.validator,
		dlq:       c.dlq,
	}

	for {
		if err := c.consumerGroup.Consume(ctx, topics, handler); err != nil {
			if err == sarama.ErrClosedConsumerGroup || ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("consumer group error", "error", err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Ready returns a channel that closes once the first consumer group
// session has completed setup, for readiness probes.
func (c *SaramaConsumer) Ready() <-chan bool {
	return c.ready
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing kafka consumer")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}

	c.logger.Info("kafka consumer closed")
	return nil
}

// SaramaTaskContext adapts one consumer group session to the
// pkg/upstream.Client control surface the partition state machine and
// coordinator depend on.
type SaramaTaskContext struct {
	mu           sync.Mutex
	session      sarama.ConsumerGroupSession
	partitions   []event.PartitionID
	backoffUntil time.Time
}

// Assignment returns the partitions currently assigned to this task.
func (t *SaramaTaskContext) Assignment() []event.PartitionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]event.PartitionID, len(t.partitions))
	copy(out, t.partitions)
	return out
}

// Pause stops delivery of records for p until Resume is called.
func (t *SaramaTaskContext) Pause(p event.PartitionID) {
	t.session.Pause(map[string][]int32{p.Topic: {p.Partition}})
}

// Resume restarts delivery of records for p.
func (t *SaramaTaskContext) Resume(p event.PartitionID) {
	t.session.Resume(map[string][]int32{p.Topic: {p.Partition}})
}

// Seek sets the next delivery position for p.
func (t *SaramaTaskContext) Seek(p event.PartitionID, offset int64) {
	t.session.ResetOffset(p.Topic, p.Partition, offset, "")
}

// RequestBackoff asks the client to delay its next poll by ms
// milliseconds.
func (t *SaramaTaskContext) RequestBackoff(ms int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backoffUntil = time.Now().Add(time.Duration(ms) * time.Millisecond)
}

// Commit marks offset as safe to commit for p.
func (t *SaramaTaskContext) Commit(p event.PartitionID, offset int64) {
	t.session.MarkOffset(p.Topic, p.Partition, offset, "")
}

func (t *SaramaTaskContext) backoffRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.backoffUntil.IsZero() {
		return 0
	}
	d := time.Until(t.backoffUntil)
	if d < 0 {
		return 0
	}
	return d
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer       *SaramaConsumer
	sink           consumer.RecordSink
	validator      event.Validator
	dlq            consumer.DLQPublisher
	taskCtx        *SaramaTaskContext
	rebalanceStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.rebalanceStart = time.Now()

	partitions := claimsToPartitions(session.Claims())
	h.taskCtx = &SaramaTaskContext{session: session, partitions: partitions}

	h.consumer.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if h.consumer.metrics != nil {
		h.consumer.metrics.IncRebalances(h.consumer.config.GroupID)

		topicPartitions := make(map[string]int)
		for topic, partitions := range session.Claims() {
			topicPartitions[topic] = len(partitions)
		}
		for topic, count := range topicPartitions {
			h.consumer.metrics.SetPartitionsAssigned(topic, float64(count))
		}
	}

	h.sink.OnAssigned(partitions, h.taskCtx)

	h.consumer.readyOnce.Do(func() {
		close(h.consumer.ready)
	})
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	if h.consumer.metrics != nil && !h.rebalanceStart.IsZero() {
		h.consumer.metrics.ObserveRebalanceDuration(
			h.consumer.config.GroupID,
			time.Since(h.rebalanceStart).Seconds(),
		)
	}

	h.sink.OnRevoked(claimsToPartitions(session.Claims()))

	h.consumer.logger.Info("consumer group session cleanup",
		"member_id", session.MemberID(),
	)
	return nil
}

// ConsumeClaim processes messages from a partition.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	id := event.PartitionID{Topic: claim.Topic(), Partition: claim.Partition()}

	h.consumer.logger.Info("started consuming partition",
		"topic", id.Topic,
		"partition", id.Partition,
		"initial_offset", claim.InitialOffset(),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if d := h.taskCtx.backoffRemaining(); d > 0 {
				select {
				case <-time.After(d):
				case <-session.Context().Done():
					return nil
				}
			}

			rec, raw, err := h.buildRecord(message)
			if err != nil {
				h.consumer.logger.Error("dropping unprocessable event to DLQ",
					"error", err,
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
				)
				h.publishToDLQ(session.Context(), message, raw, err.Error())
				continue
			}

			h.sink.Write([]event.Record{rec})
			h.commitReady(id)

			if h.consumer.metrics != nil {
				h.consumer.metrics.IncMessagesConsumed(message.Topic, message.Partition)
			}

		case <-session.Context().Done():
			h.consumer.logger.Info("session context done, stopping partition consumption",
				"topic", id.Topic,
				"partition", id.Partition,
			)
			return nil
		}
	}
}

// commitReady marks the upstream offset safe to commit for id if the
// sink currently reports one.
func (h *consumerGroupHandler) commitReady(id event.PartitionID) {
	offsets := h.sink.CommittedOffsets()
	if offset, ok := offsets[id]; ok {
		start := time.Now()
		h.taskCtx.Commit(id, offset)
		if h.consumer.metrics != nil {
			h.consumer.metrics.ObserveCommitLatency(id.Topic, id.Partition, time.Since(start).Seconds())
			h.consumer.metrics.IncOffsetCommits(id.Topic, id.Partition, "success")
		}
	}
}

// buildRecord parses and validates a Kafka message into a processed
// record. On failure it also returns the best-effort CloudEvent to
// forward to the dead letter queue.
func (h *consumerGroupHandler) buildRecord(message *sarama.ConsumerMessage) (event.Record, *event.CloudEvent, error) {
	var cloudEvent event.CloudEvent
	if err := json.Unmarshal(message.Value, &cloudEvent); err != nil {
		return event.Record{}, stubCloudEvent(message.Value), fmt.Errorf("unmarshal cloud event: %w", err)
	}

	if err := h.validator.Validate(&cloudEvent); err != nil {
		return event.Record{}, &cloudEvent, err
	}

	rec := event.Record{
		Event: &cloudEvent,
		Kafka: event.KafkaMetadata{
			Topic:     message.Topic,
			Partition: message.Partition,
			Offset:    message.Offset,
			Key:       message.Key,
			Headers:   extractHeaders(message.Headers),
			Timestamp: message.Timestamp,
		},
		Offset:      message.Offset,
		ProcessedAt: time.Now(),
	}
	return rec, &cloudEvent, nil
}

func (h *consumerGroupHandler) publishToDLQ(ctx context.Context, message *sarama.ConsumerMessage, cloudEvent *event.CloudEvent, reason string) {
	if h.dlq == nil {
		return
	}
	metadata := event.KafkaMetadata{
		Topic:     message.Topic,
		Partition: message.Partition,
		Offset:    message.Offset,
		Timestamp: message.Timestamp,
		Headers:   extractHeaders(message.Headers),
	}
	if err := h.dlq.Publish(ctx, cloudEvent, metadata, reason); err != nil {
		h.consumer.logger.Error("failed to publish to DLQ",
			"error", err,
			"topic", message.Topic,
			"partition", message.Partition,
			"offset", message.Offset,
		)
	}
}

// stubCloudEvent wraps a message this task could not parse as a CloudEvent
// well enough to still route it to the dead letter queue with its raw
// payload preserved.
func stubCloudEvent(raw []byte) *event.CloudEvent {
	data, _ := json.Marshal(string(raw))
	return &event.CloudEvent{
		ID:          "unparseable",
		Source:      "kafeventstore/consumer",
		SpecVersion: "1.0",
		Type:        "io.kafeventstore.unparseable",
		Data:        data,
	}
}

// extractHeaders extracts headers from Kafka message.
func extractHeaders(headers []*sarama.RecordHeader) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		result[string(header.Key)] = string(header.Value)
	}
	return result
}

// claimsToPartitions flattens a consumer group session's claims map into
// a partition identifier slice.
func claimsToPartitions(claims map[string][]int32) []event.PartitionID {
	var out []event.PartitionID
	for topic, partitions := range claims {
		for _, p := range partitions {
			out = append(out, event.PartitionID{Topic: topic, Partition: p})
		}
	}
	return out
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	// Generate auth token using AWS credentials from environment/profile
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": fmt.Sprintf("%d", expiryMs),
		},
	}, nil
}

// Helper functions

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	switch autoOffsetReset {
	case "earliest":
		return sarama.OffsetOldest
	case "latest":
		return sarama.OffsetNewest
	default:
		return sarama.OffsetNewest
	}
}

func configureSecurity(config *sarama.Config, kafkaConfig ConsumerConfig) error {
	switch kafkaConfig.SecurityProtocol {
	case "PLAINTEXT":
		// No security configuration needed
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true

		switch kafkaConfig.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
			config.Net.SASL.User = kafkaConfig.SASLUsername
			config.Net.SASL.Password = kafkaConfig.SASLPassword

		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			config.Net.SASL.User = kafkaConfig.SASLUsername
			config.Net.SASL.Password = kafkaConfig.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
			}

		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			config.Net.SASL.User = kafkaConfig.SASLUsername
			config.Net.SASL.Password = kafkaConfig.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512()}
			}

		case "AWS_MSK_IAM":
			// AWS MSK IAM authentication
			config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
			config.Net.SASL.Enable = true

			// OAuth doesn't use username/password, but Sarama requires them to be set
			// Set to dummy values to pass validation
			config.Net.SASL.User = "token"
			config.Net.SASL.Password = "token"

			// Create IAM token provider using AWS CLI credentials
			config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{
				region: "us-east-1", // Extract from broker address if needed
			}

		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", kafkaConfig.SASLMechanism)
		}

		if kafkaConfig.SecurityProtocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
			config.Net.TLS.Config = &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: true, // For local development with self-signed certs
			}
		}

	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // For local development with self-signed certs
		}

	default:
		return fmt.Errorf("unsupported security protocol: %s", kafkaConfig.SecurityProtocol)
	}

	return nil
}
