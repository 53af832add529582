package pubsub

import (
	"context"
)

type Publisher interface {
	// Publish topic to message broker with payload.
	Publish(ctx context.Context, topic string, payload []byte) error
}

type PubSub interface {
	Publisher
	Subscribe(ctx context.Context, topic string, handler func(payload []byte) error) (Subscription, error)

	// QueueSubscribe delivers each message to one subscriber in the
	// group, so several workers can share a topic.
	QueueSubscribe(ctx context.Context, topic, queue string, handler func(payload []byte) error) (Subscription, error)

	Close()
}

type Subscription interface {
	Unsubscribe() error
}

// TasksQueue is the queue group the task workers share, and the subject
// prefix of every task topic.
const TasksQueue = "tasks"

// TasksStream is the JetStream stream capturing task topics.
const TasksStream = "TASKS"
