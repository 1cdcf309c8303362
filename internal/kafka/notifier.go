package kafka

import (
	"encoding/json"
	"time"

	"blendshop/internal/models"
)

// NotificationEvent is the payload the external notification service
// consumes to render and send customer email.
type NotificationEvent struct {
	Kind      string        `json:"kind"`
	OrderID   string        `json:"order_id"`
	Order     *models.Order `json:"order"`
	Timestamp time.Time     `json:"timestamp"`
}

// Notifier publishes notification facts to Kafka. Rendering and delivery
// happen downstream; losing a notification never blocks order processing.
type Notifier struct {
	Producer *Producer
	Topic    string
}

func NewNotifier(producer *Producer, topic string) *Notifier {
	return &Notifier{Producer: producer, Topic: topic}
}

func (n *Notifier) Notify(kind string, order *models.Order) error {
	event := NotificationEvent{
		Kind:      kind,
		OrderID:   order.OrderID,
		Order:     order,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.Producer.Publish(n.Topic, order.OrderID, payload)
}
