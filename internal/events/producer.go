package events

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/domain"

	"github.com/segmentio/kafka-go"
)

// OrderEvent is the JSON payload published for order lifecycle changes
type OrderEvent struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	Status     string      `json:"status"`
	Total      float64     `json:"total"`
	Items      []OrderLine `json:"items"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// OrderLine is one line of an order event
type OrderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Producer publishes order events to Kafka, keyed by order ID so events for
// one order stay in partition order.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the given topic
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func newOrderEvent(eventType string, order *domain.Order) OrderEvent {
	event := OrderEvent{
		Type:       eventType,
		OrderID:    order.ID.String(),
		UserID:     order.UserID.String(),
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: time.Now().UTC(),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderLine{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return event
}

// Publish sends an order event
func (p *Producer) Publish(ctx context.Context, eventType string, order *domain.Order) error {
	event := newOrderEvent(eventType, order)

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	})
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
