package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/streadway/amqp"

	"github.com/unclebandit/flowsend-backend/internal/cache"
)

const (
	QueueName     = "campaign_jobs"
	retryCountHdr = "x-retry-count"
)

// amqpChannel is the slice of *amqp.Channel the adapter relies on.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitMQQueue is the durable Queue adapter. Key de-duplication lives
// in the DedupeIndex because the broker itself does not de-duplicate
// publishes.
type RabbitMQQueue struct {
	conn       *amqp.Connection
	ch         amqpChannel
	dedupe     cache.DedupeIndex
	MaxRetries int
}

func NewRabbitMQQueue(url string, dedupe cache.DedupeIndex, maxRetries int) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitMQQueue{conn: conn, ch: ch, dedupe: dedupe, MaxRetries: maxRetries}, nil
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, key int, payload JobPayload) error {
	fresh, err := q.dedupe.MarkEnqueued(ctx, key)
	if err != nil {
		return fmt.Errorf("dedupe check for job %d: %w", key, err)
	}
	if !fresh {
		// Same logical attempt, already deliverable. Nothing to publish.
		return nil
	}
	if err := q.publish(key, payload, 0); err != nil {
		// Release the key so a retried dispatch publishes the job
		// instead of skipping it as already deliverable.
		if unmarkErr := q.dedupe.Unmark(ctx, key); unmarkErr != nil {
			log.Println("⚠️ failed to release dedupe key for job", key, ":", unmarkErr)
		}
		return fmt.Errorf("publishing job %d: %w", key, err)
	}
	return nil
}

func (q *RabbitMQQueue) publish(key int, payload JobPayload, retryCount int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		QueueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    strconv.Itoa(key),
			Headers:      amqp.Table{retryCountHdr: int32(retryCount)},
			Body:         body,
		},
	)
}

// Consume delivers queue items to the handler with manual acks. A
// failed item is republished with an incremented retry header until
// MaxRetries, then dropped. Malformed items are rejected at this
// boundary and never retried.
func (q *RabbitMQQueue) Consume(ctx context.Context, handler Handler) error {
	msgs, err := q.ch.Consume(
		QueueName,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *RabbitMQQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	key, err := strconv.Atoi(d.MessageId)
	if err != nil {
		log.Println("⚠️ dropping queue item with bad message id:", d.MessageId)
		d.Ack(false)
		return
	}

	var payload JobPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		log.Println("⚠️ dropping malformed queue item", key, ":", err)
		d.Ack(false)
		return
	}

	if err := handler(ctx, key, payload); err != nil {
		retryCount := 0
		if v, ok := d.Headers[retryCountHdr].(int32); ok {
			retryCount = int(v)
		}
		if retryCount < q.MaxRetries {
			log.Printf("job %d failed (attempt %d/%d), requeueing: %v\n", key, retryCount+1, q.MaxRetries, err)
			if pubErr := q.publish(key, payload, retryCount+1); pubErr != nil {
				log.Println("⚠️ failed to requeue job", key, ":", pubErr)
				d.Nack(false, true) // let the broker redeliver instead
				return
			}
		} else {
			log.Printf("job %d permanently failed after %d attempts: %v\n", key, q.MaxRetries, err)
		}
	}

	d.Ack(false)
}

func (q *RabbitMQQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

var _ Queue = (*RabbitMQQueue)(nil)
