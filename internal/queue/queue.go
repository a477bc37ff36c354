// Package queue hands generation tasks from the API to the workers that run
// them, either inside the server process or through RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrClosed = errors.New("queue closed")

// Task is one unit of generation work. It carries everything a worker needs,
// so the worker does not depend on the request that created it.
type Task struct {
	JobID     string `json:"job_id"`
	Theme     string `json:"theme"`
	SessionID string `json:"session_id"`
}

// Dispatcher accepts tasks for asynchronous execution.
type Dispatcher interface {
	Submit(ctx context.Context, task Task) error
}

// Runner executes a task. Run must record its own outcome; it has no error
// to return because nobody is waiting for it.
type Runner interface {
	Run(ctx context.Context, task Task)
}

type RunnerFunc func(ctx context.Context, task Task)

func (f RunnerFunc) Run(ctx context.Context, task Task) { f(ctx, task) }

// EncodeTask serializes a task for the wire.
func EncodeTask(t Task) ([]byte, error) {
	if t.JobID == "" {
		return nil, fmt.Errorf("encode task: job_id is required")
	}
	return json.Marshal(t)
}

// DecodeTask parses a wire message, rejecting messages without a job id.
func DecodeTask(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.JobID == "" {
		return Task{}, fmt.Errorf("decode task: job_id is required")
	}
	return t, nil
}
