package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/lumapay/bnpl-gateway/internal/models"
)

// StatusChangedTopic carries one message per applied status transition,
// keyed by order id so transitions for an order stay ordered.
const StatusChangedTopic = "order.status.changed"

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishStatusChange(ctx context.Context, ev models.OrderStatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: payload,
	})
}
