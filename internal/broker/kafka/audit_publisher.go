package kafka

import (
	"context"
	"encoding/json"

	"github.com/BearBump/WasteTrack/internal/broker/messages"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const EventTypeHeader = "event_type"

// AuditPublisher is the Kafka audit sink. Events reach the database through
// the audit projector on the consuming side.
type AuditPublisher struct {
	p     *Producer
	topic string
}

func NewAuditPublisher(p *Producer, topic string) *AuditPublisher {
	return &AuditPublisher{p: p, topic: topic}
}

func (a *AuditPublisher) Append(ctx context.Context, ev models.AuditEvent) error {
	b, err := json.Marshal(messages.NewOrderAudit(ev))
	if err != nil {
		return errors.Wrap(err, "marshal audit event")
	}
	return a.p.Publish(ctx, a.topic, []byte(ev.OrderID), b, kafka.Header{
		Key:   EventTypeHeader,
		Value: []byte("order." + string(ev.Kind)),
	})
}

func HeaderValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
