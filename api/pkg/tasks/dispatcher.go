package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/pubsub"
)

// InlineDispatcher runs tasks synchronously in the caller, used by tests
// and single-process deployments.
type InlineDispatcher struct {
	handlers *Handlers
}

func NewInlineDispatcher(handlers *Handlers) *InlineDispatcher {
	d := &InlineDispatcher{
		handlers: handlers,
	}
	handlers.SetDispatcher(d)
	return d
}

func (d *InlineDispatcher) Enqueue(ctx context.Context, topic string, payload interface{}) error {
	return d.handlers.Handle(ctx, topic, payload)
}

// NatsDispatcher publishes tasks onto the broker for the worker pool to
// pick up.
type NatsDispatcher struct {
	ps pubsub.Publisher
}

func NewNatsDispatcher(ps pubsub.Publisher) *NatsDispatcher {
	return &NatsDispatcher{
		ps: ps,
	}
}

func (d *NatsDispatcher) Enqueue(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	log.Debug().Str("topic", topic).Msg("enqueueing task")
	return d.ps.Publish(ctx, topic, data)
}

// Runner consumes tasks from the broker and runs them through the
// handlers, sharing the work across subscribers in the same queue group.
type Runner struct {
	ps       pubsub.PubSub
	handlers *Handlers

	subs []pubsub.Subscription
}

func NewRunner(ps pubsub.PubSub, handlers *Handlers) *Runner {
	return &Runner{
		ps:       ps,
		handlers: handlers,
	}
}

func (r *Runner) Start(ctx context.Context) error {
	topics := map[string]func([]byte) (interface{}, error){
		TopicProcessBuildDependencies: decodeInto[BuildTask],
		TopicProcessBuildArtifacts:    decodeInto[BuildTask],
		TopicArchiveArtifact:          decodeInto[ArchiveItemTask],
		TopicLinkArtifact:             decodeInto[LinkItemTask],
		TopicGenerateChecksums:        decodeInto[BuildTask],
		TopicNotifyRequestor:          decodeInto[BuildTask],
	}

	for topic, decode := range topics {
		topic, decode := topic, decode
		sub, err := r.ps.QueueSubscribe(ctx, topic, pubsub.TasksQueue, func(payload []byte) error {
			task, err := decode(payload)
			if err != nil {
				return fmt.Errorf("failed to decode task on %s: %w", topic, err)
			}
			return r.handlers.Handle(ctx, topic, task)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		r.subs = append(r.subs, sub)
	}

	log.Info().Int("topics", len(topics)).Msg("task runner started")
	return nil
}

func (r *Runner) Stop() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Err(err).Msg("error unsubscribing task runner")
		}
	}
	r.subs = nil
}

func decodeInto[T any](payload []byte) (interface{}, error) {
	var task T
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, err
	}
	return task, nil
}
