package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

type Producer interface {
	PublishFraudAlert(ctx context.Context, alert domain.FraudAlert) error
	Close() error
}

// FraudAlertEvent is the message body published for every new alert.
type FraudAlertEvent struct {
	AlertID        int64     `json:"alert_id"`
	TransactionID  string    `json:"transaction_id"`
	RiskScore      int64     `json:"risk_score"`
	AlertType      string    `json:"alert_type"`
	Status         string    `json:"status"`
	AlertTimestamp time.Time `json:"alert_timestamp"`
	PublishedAt    time.Time `json:"published_at"`
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

func NewKafkaProducer(brokers []string, topic string, log zerolog.Logger) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info().Str("topic", topic).Strs("brokers", brokers).Msg("kafka producer created")

	return newProducer(producer, topic, log), nil
}

func newProducer(p sarama.SyncProducer, topic string, log zerolog.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: p,
		topic:    topic,
		log:      log.With().Str("component", "kafka").Logger(),
	}
}

// PublishFraudAlert sends the alert keyed by transaction_id, so all alerts of
// one transaction land on the same partition.
func (p *KafkaProducer) PublishFraudAlert(ctx context.Context, alert domain.FraudAlert) error {
	data, err := json.Marshal(FraudAlertEvent{
		AlertID:        alert.ID,
		TransactionID:  alert.TransactionID,
		RiskScore:      alert.RiskScore,
		AlertType:      alert.AlertType,
		Status:         string(alert.Status),
		AlertTimestamp: alert.AlertTimestamp,
		PublishedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(alert.TransactionID),
		Value: sarama.ByteEncoder(data),
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}

	resultCh := make(chan result, 1)

	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		resultCh <- result{partition, offset, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			p.log.Error().Err(res.err).Str("transaction_id", alert.TransactionID).Msg("kafka send failed")
			return res.err
		}
		p.log.Debug().
			Str("transaction_id", alert.TransactionID).
			Int32("partition", res.partition).
			Int64("offset", res.offset).
			Msg("kafka send success")
		return nil

	case <-ctx.Done():
		p.log.Warn().Str("transaction_id", alert.TransactionID).Msg("kafka send cancelled")
		return ctx.Err()
	}
}

func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	p.log.Info().Msg("closing kafka producer")
	return p.producer.Close()
}

type NoOpProducer struct {
	log zerolog.Logger
}

func NewNoOpProducer(log zerolog.Logger) Producer {
	return &NoOpProducer{log: log}
}

func (p *NoOpProducer) PublishFraudAlert(_ context.Context, alert domain.FraudAlert) error {
	p.log.Debug().Str("transaction_id", alert.TransactionID).Msg("kafka disabled, alert not published")
	return nil
}

func (p *NoOpProducer) Close() error {
	return nil
}
