package queue

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbit starts a RabbitMQ broker and returns its AMQP URL.
func setupRabbit(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return "amqp://guest:guest@" + host + ":" + port.Port() + "/"
}

func TestRabbit_PublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRabbit(t)
	const queue = "story.generate.test"

	pub, err := NewRabbitPublisher(url, queue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	require.NoError(t, pub.Ping(context.Background()))

	cons, err := NewRabbitConsumer(url, queue, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cons.Close() })

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cons.Run(ctx, rec) }()

	require.NoError(t, pub.Submit(context.Background(), Task{JobID: "j1", Theme: "a haunted lighthouse"}))
	require.NoError(t, pub.Submit(context.Background(), Task{JobID: "j2", Theme: "a desert caravan"}))

	require.Eventually(t, func() bool { return len(rec.ids()) == 2 }, 10*time.Second, 50*time.Millisecond)
	assert.ElementsMatch(t, []string{"j1", "j2"}, rec.ids())

	cancel()
	require.NoError(t, <-done)
}

func TestRabbit_MalformedGoesToDeadLetter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRabbit(t)
	const queue = "story.generate.dlq-test"

	pub, err := NewRabbitPublisher(url, queue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	cons, err := NewRabbitConsumer(url, queue, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cons.Close() })

	// Bypass EncodeTask so the message has no job id.
	require.NoError(t, pub.ch.Publish("", queue, false, false, amqpJSON(`{"theme":"x"}`)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cons.Run(ctx, &recorder{}) }()

	require.Eventually(t, func() bool {
		q, err := pub.ch.QueueDeclarePassive(DeadLetterQueue(queue), true, false, false, false, nil)
		return err == nil && q.Messages == 1
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func amqpJSON(body string) amqp.Publishing {
	return amqp.Publishing{ContentType: "application/json", Body: []byte(body)}
}
