// Package kafkaconsumer consumes events-table change notifications and
// sweeps cached reads in response.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/kolabhq/kolab-discovery/internal/core/observability"
	"github.com/kolabhq/kolab-discovery/internal/invalidation"
)

// Invalidator matches the resolver's coarse read sweep.
type Invalidator interface {
	InvalidateReads(ctx context.Context)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	inv    Invalidator
	dedupe *versionDedupe
}

func New(cfg Config, logger *slog.Logger, inv Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		inv:    inv,
		dedupe: newVersionDedupe(4096),
	}
}

// Start joins the consumer group and processes invalidation events until
// ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("kafkaconsumer: invalidator dependency is required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single invalidation message. Replayed or reordered
// deliveries for the same event id are dropped by the version dedupe.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("invalidation decode failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		c.logger.Error("invalidation event invalid", "err", err)
		return fmt.Errorf("validate: %w", err)
	}

	if !c.dedupe.shouldApply(ev.EventID, uint64(ev.TS.UnixNano())) {
		c.logger.Debug("stale invalidation dropped", "event_id", ev.EventID, "op", ev.Op)
		return nil
	}

	c.inv.InvalidateReads(ctx)
	observability.IncInvalidation("kafka")
	c.logger.Debug("invalidated cached reads", "event_id", ev.EventID, "op", ev.Op, "source", ev.Source)
	return nil
}
