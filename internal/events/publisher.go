package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"swell-alerts/internal/engine"
)

// Publisher streams match and sent events to a Kafka topic for downstream
// consumers. It implements engine.Hook; publish failures are logged and
// never surface into the evaluation run.
type Publisher struct {
	writer *kafkago.Writer
	logger zerolog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(brokers []string, topic string, logger zerolog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Publisher{
		writer: w,
		logger: logger.With().Str("component", "events_publisher").Logger(),
	}
}

type eventPayload struct {
	Kind    string    `json:"kind"`
	ChatID  int64     `json:"chat_id"`
	RuleID  string    `json:"rule_id"`
	SpotID  string    `json:"spot_id"`
	StartMs int64     `json:"start_ms"`
	EndMs   int64     `json:"end_ms"`
	Hours   int       `json:"hours"`
	At      time.Time `json:"at"`
}

// RecordMatch implements engine.Hook.
func (p *Publisher) RecordMatch(e engine.MatchEvent) {
	p.publish(eventPayload{
		Kind:    "match",
		ChatID:  e.ChatID,
		RuleID:  e.RuleID,
		SpotID:  e.SpotID,
		StartMs: e.Span.StartMs,
		EndMs:   e.Span.EndMs,
		Hours:   e.Hours,
		At:      e.At,
	})
}

// RecordSent implements engine.Hook.
func (p *Publisher) RecordSent(e engine.SentEvent) {
	p.publish(eventPayload{
		Kind:    "sent",
		ChatID:  e.ChatID,
		RuleID:  e.RuleID,
		SpotID:  e.SpotID,
		StartMs: e.Span.StartMs,
		EndMs:   e.Span.EndMs,
		Hours:   e.Hours,
		At:      e.At,
	})
}

func (p *Publisher) publish(payload eventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("serialize event")
		return
	}
	msg := kafkago.Message{
		Key:   []byte(fmt.Sprintf("%d|%s", payload.ChatID, payload.RuleID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(payload.Kind)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("kind", payload.Kind).Msg("publish event failed")
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ engine.Hook = (*Publisher)(nil)
