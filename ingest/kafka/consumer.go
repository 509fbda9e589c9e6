/*
Package kafka consumes raw punches published by terminal gateways.

PURPOSE:
  Terminals (or the gateway polling them) publish one JSON message per
  punch. The consumer feeds each punch to the attendance service and
  commits the offset once the punch is journaled.

DELIVERY:
  At-least-once. A redelivered message carries the same event ID and is
  counted as a replay by the journal, so reprocessing is harmless.

  Messages that can never succeed (bad JSON, invalid punch, unknown
  employee) are logged and committed so they do not block the partition.
  Other failures leave the offset uncommitted.

SEE ALSO:
  - attendance/service.go: Ingest
  - cmd/consumer: process wiring
*/
package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"go.uber.org/zap"
)

// Reader is the part of *kafkago.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Ingester accepts punches. *attendance.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, events []biometric.Event) (attendance.IngestResult, error)
}

// ReaderConfig selects the topic to consume.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader returns a consumer-group reader that commits explicitly.
func NewReader(cfg ReaderConfig) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
		MaxWait:        time.Second,
	})
}

type Consumer struct {
	reader  Reader
	service Ingester
	logger  *zap.Logger
}

func NewConsumer(reader Reader, service Ingester, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:  reader,
		service: service,
		logger:  logger.Named("kafka.consumer.punches"),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("punch consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("punch consumer stopped")
				return nil
			}
			c.logger.Error("fetch punch message failed", zap.Error(err))
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message and commits it unless the failure is
// worth a retry.
func (c *Consumer) Handle(ctx context.Context, msg kafkago.Message) {
	log := c.logger.With(
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var m PunchMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		log.Error("decode punch message failed", zap.Error(err))
		c.commit(ctx, log, msg)
		return
	}
	event, err := m.Event()
	if err != nil {
		log.Warn("invalid punch skipped", zap.String("employee_id", m.EmployeeID), zap.Error(err))
		c.commit(ctx, log, msg)
		return
	}

	res, err := c.service.Ingest(ctx, []biometric.Event{event})
	if err != nil {
		if core.IsClientError(err) || core.IsNotFound(err) {
			log.Warn("punch rejected",
				zap.String("event_id", string(event.ID)),
				zap.String("employee_id", string(event.EmployeeID)),
				zap.Error(err),
			)
			c.commit(ctx, log, msg)
			return
		}
		log.Error("ingest punch failed", zap.String("event_id", string(event.ID)), zap.Error(err))
		return
	}

	if !c.commit(ctx, log, msg) {
		return
	}
	if res.Replayed > 0 {
		log.Debug("punch already journaled", zap.String("event_id", string(event.ID)))
		return
	}
	log.Info("punch ingested",
		zap.String("event_id", string(event.ID)),
		zap.String("employee_id", string(event.EmployeeID)),
		zap.Int("conflicts", len(res.Conflicts)),
	)
}

func (c *Consumer) commit(ctx context.Context, log *zap.Logger, msg kafkago.Message) bool {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("commit punch message failed", zap.Error(err))
		return false
	}
	return true
}
