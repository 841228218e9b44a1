// Package audit streams configuration change records to Kafka.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/limitd/limitd/internal/config"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/logger"
)

// KafkaPublisher is a Kafka-backed implementation of AuditPublisher.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured audit topic.
func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) (service.AuditPublisher, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaPublisher{
		writer: writer,
		logger: log.WithComponent("audit_publisher"),
	}, nil
}

// Publish sends one change record to the audit topic. Records are keyed by
// config name so per-config ordering survives partitioning. Failures are
// logged and returned, but callers treat publishing as best-effort.
func (p *KafkaPublisher) Publish(ctx context.Context, record *models.ConfigChangeRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal change record", err,
			logger.String("record_id", record.ID))
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ConfigName),
		Value: payload,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write change record to kafka", err,
			logger.String("config", record.ConfigName),
			logger.String("action", string(record.Action)))
	}
	return err
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
