package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/common/validation"
	"kyc-workers/internal/models"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

const (
	statusStarted  = "started"
	statusRejected = "rejected"
	statusFailed   = "failed"
)

type Options struct {
	ProcessID  string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Consumer turns completion events on a Kafka topic into process instances.
// Offsets are committed only after the instance is created, or after a
// message is rejected as malformed.
type Consumer struct {
	reader  MessageReader
	starter ProcessStarter
	opts    Options
	log     logger.Logger

	mu      sync.Mutex
	lastErr error
}

// NewReader builds a consumer-group reader for the completion topic.
func NewReader(cfg config.IngressConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})
}

func NewConsumer(reader MessageReader, starter ProcessStarter, opts Options, log logger.Logger) *Consumer {
	if opts.ProcessID == "" {
		opts.ProcessID = "driver-kyc-verification"
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Consumer{reader: reader, starter: starter, opts: opts, log: log}
}

// Run blocks until ctx is cancelled or the reader fails permanently.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Completion event consumer started", map[string]interface{}{
		"processId": c.opts.ProcessID,
	})
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch completion event: %w", err)
		}
		c.setErr(nil)

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// Supervise runs the consumer and restarts it with capped backoff after a
// reader failure. It returns when ctx ends or the reader is closed.
func (c *Consumer) Supervise(ctx context.Context) {
	backoff := c.opts.MinBackoff
	for {
		err := c.Run(ctx)
		if ctx.Err() != nil || err == nil {
			return
		}
		c.setErr(err)
		c.log.Error("Completion event consumer failed, restarting", map[string]interface{}{
			"backoff": backoff.String(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// Healthy reports the last reader failure until a fetch succeeds again.
func (c *Consumer) Healthy(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return fmt.Errorf("completion event consumer: %w", c.lastErr)
	}
	return nil
}

func (c *Consumer) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// handleWithRetry keeps retrying a well-formed event until its instance is
// created or ctx ends. Malformed events return nil so they get committed.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	event, err := decodeEvent(msg)
	if err != nil {
		metrics.KYCIngressMessages.WithLabelValues(statusRejected).Inc()
		c.log.Error("Rejected malformed completion event", map[string]interface{}{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"error":     err.Error(),
		})
		return nil
	}

	backoff := c.opts.MinBackoff
	for attempt := 1; ; attempt++ {
		key, err := c.starter.StartProcess(ctx, c.opts.ProcessID, event)
		if err == nil {
			metrics.KYCIngressMessages.WithLabelValues(statusStarted).Inc()
			c.log.Info("Started KYC verification", map[string]interface{}{
				"driverId":           event.DriverID,
				"eventId":            event.EventID,
				"processInstanceKey": key,
			})
			return nil
		}

		metrics.KYCIngressMessages.WithLabelValues(statusFailed).Inc()
		c.log.Warn("Failed to start KYC verification, will retry", map[string]interface{}{
			"driverId": event.DriverID,
			"eventId":  event.EventID,
			"attempt":  attempt,
			"backoff":  backoff.String(),
			"error":    err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// decodeEvent validates the payload and fills in an event id derived from
// the message position when the producer did not supply one.
func decodeEvent(msg kafka.Message) (models.CompletionEvent, error) {
	var event models.CompletionEvent

	if res := validation.MustGet(validation.SchemaCompletionEvent).ValidateJSON(msg.Value); !res.Valid {
		return event, res.Error()
	}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, err
	}

	if event.EventID == "" {
		if len(msg.Key) > 0 {
			event.EventID = string(msg.Key)
		} else {
			event.EventID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
		}
	}
	return event, nil
}
