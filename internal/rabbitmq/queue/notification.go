package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const (
	ExchangeName  = "dispatch-exchange"
	MainQueueName = "dispatch-queue"
	DLQName       = "dispatch-dlq"
	RoutingKey    = "dispatch"
)

// WakeupMessage announces a newly created notification so due work can be
// dispatched without waiting for the next store poll. The store stays the
// source of truth; a lost message only delays delivery until the poller
// catches up.
type WakeupMessage struct {
	ID           uuid.UUID `json:"id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NotificationQueue bundles the publisher and consumer for wake-up messages.
type NotificationQueue struct {
	Publisher *rabbitmq.Publisher
	Consumer  *rabbitmq.Consumer
}

// NewNotificationQueue declares the exchange and queues and binds them.
func NewNotificationQueue(ch *rabbitmq.Channel) (*NotificationQueue, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	_, err := qm.DeclareQueue(DLQName, rabbitmq.QueueConfig{Durable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	mainArgs := map[string]interface{}{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DLQName,
	}

	mainQ, err := qm.DeclareQueue(MainQueueName, rabbitmq.QueueConfig{
		Durable: true,
		Args:    mainArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare main queue: %w", err)
	}

	if err := ch.QueueBind(mainQ.Name, RoutingKey, exchange.Name(), false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind the exchange to the main queue: %w", err)
	}

	pub := rabbitmq.NewPublisher(ch, exchange.Name())
	cons := rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(mainQ.Name))

	return &NotificationQueue{Publisher: pub, Consumer: cons}, nil
}

// Publish announces a notification to the wake-up queue.
func (q *NotificationQueue) Publish(msg WakeupMessage, strategy retry.Strategy) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.Publisher.PublishWithRetry(body, RoutingKey, "application/json", strategy)
}

// Consume decodes wake-up messages into out until the underlying consumer
// stops or ctx is cancelled.
func (q *NotificationQueue) Consume(ctx context.Context, out chan<- WakeupMessage, strategy retry.Strategy) error {
	msgChan := make(chan []byte)

	go forward(ctx, msgChan, out)

	return q.Consumer.ConsumeWithRetry(msgChan, strategy)
}

// forward decodes raw bodies into out. It returns when in closes or ctx is
// cancelled, so a reader that stopped draining out cannot strand it.
func forward(ctx context.Context, in <-chan []byte, out chan<- WakeupMessage) {
	for m := range in {
		var msg WakeupMessage
		if err := json.Unmarshal(m, &msg); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to unmarshal message")
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}
