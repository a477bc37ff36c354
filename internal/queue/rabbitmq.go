package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// DeadLetterQueue names the queue that receives rejected messages.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// declareQueues declares the work queue and its dead-letter queue. Messages
// nacked without requeue land in the dead-letter queue.
func declareQueues(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(DeadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterQueue(queue),
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// RabbitPublisher is a Dispatcher that publishes tasks as persistent JSON
// messages on a durable queue.
type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitPublisher) Submit(ctx context.Context, task Task) error {
	body, err := EncodeTask(task)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch.IsClosed() {
		return ErrClosed
	}
	err = p.ch.PublishWithContext(cctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.JobID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish task %s: %w", task.JobID, err)
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *RabbitPublisher) Ping(context.Context) error {
	if p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

// RabbitConsumer feeds tasks from the work queue to a Runner. Each message
// is acked after the Runner returns; malformed messages are rejected to the
// dead-letter queue.
type RabbitConsumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
}

func NewRabbitConsumer(url, queue string, concurrency int) (*RabbitConsumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}
	return &RabbitConsumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency}, nil
}

// Run consumes until ctx is done or the broker closes the delivery channel.
// Deliveries already handed to workers are finished before it returns.
func (c *RabbitConsumer) Run(ctx context.Context, r Runner) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	workCtx := context.WithoutCancel(ctx)
	deliveries := make(chan amqp.Delivery, c.concurrency)

	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func() {
			defer wg.Done()
			for d := range deliveries {
				handleDelivery(workCtx, r, d)
			}
		}()
	}
	stop := func() {
		close(deliveries)
		wg.Wait()
	}

	slog.Info("consuming tasks", "queue", c.queue, "concurrency", c.concurrency)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case d, ok := <-msgs:
			if !ok {
				stop()
				return errors.New("rabbitmq delivery channel closed")
			}
			deliveries <- d
		}
	}
}

func (c *RabbitConsumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// acknowledger is the part of amqp.Delivery that handleDelivery needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, r Runner, d amqp.Delivery) {
	process(ctx, r, d.Body, d)
}

func process(ctx context.Context, r Runner, body []byte, ack acknowledger) {
	task, err := DecodeTask(body)
	if err != nil {
		slog.Warn("rejecting malformed task", "error", err)
		_ = ack.Nack(false, false)
		return
	}
	r.Run(ctx, task)
	if err := ack.Ack(false); err != nil {
		slog.Error("ack failed", "job_id", task.JobID, "error", err)
	}
}

var _ Dispatcher = (*RabbitPublisher)(nil)
