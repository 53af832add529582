package pubsub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Nats is a pubsub backed by an embedded NATS server, the default broker
// for task dispatch. Task topics are captured by a JetStream stream so a
// failed handler naks the message for redelivery instead of losing it.
type Nats struct {
	srv    *server.Server
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

func NewInMemoryNats(storeDir string) (*Nats, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  storeDir,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		return nil, fmt.Errorf("failed to start in-memory nats server")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:     TasksStream,
		Subjects: []string{TasksQueue + ".>"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream stream: %w", err)
	}

	return &Nats{
		srv:    ns,
		conn:   nc,
		js:     js,
		stream: stream,
	}, nil
}

func (n *Nats) Publish(ctx context.Context, topic string, payload []byte) error {
	if strings.HasPrefix(topic, TasksQueue+".") {
		_, err := n.js.Publish(ctx, topic, payload,
			jetstream.WithRetryWait(100*time.Millisecond),
			jetstream.WithRetryAttempts(10),
		)
		return err
	}
	return n.conn.Publish(topic, payload)
}

func (n *Nats) Subscribe(ctx context.Context, topic string, handler func(payload []byte) error) (Subscription, error) {
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			log.Err(err).Str("topic", topic).Msg("error handling message")
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// QueueSubscribe delivers each message to one worker in the group
// through a durable JetStream consumer. A handler error naks the message
// so it is redelivered rather than dropped.
func (n *Nats) QueueSubscribe(ctx context.Context, topic, queue string, handler func(payload []byte) error) (Subscription, error) {
	c, err := n.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        durableName(queue, topic),
		AckPolicy:      jetstream.AckExplicitPolicy,
		FilterSubjects: []string{topic},
		AckWait:        30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", topic, err)
	}

	cons, err := c.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Data()); err != nil {
			log.Err(err).Str("topic", topic).Msg("error handling message, requeueing")
			if err := msg.Nak(); err != nil {
				log.Err(err).Str("topic", topic).Msg("error naking message")
			}
			return
		}
		if err := msg.Ack(); err != nil {
			log.Err(err).Str("topic", topic).Msg("error acking message")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer for %s: %w", topic, err)
	}
	return &consumerSubscription{consumer: cons}, nil
}

// durable names cannot contain subject tokens
func durableName(queue, topic string) string {
	return strings.ReplaceAll(queue+"-"+topic, ".", "-")
}

type consumerSubscription struct {
	consumer jetstream.ConsumeContext
}

func (c *consumerSubscription) Unsubscribe() error {
	c.consumer.Stop()
	return nil
}

func (n *Nats) Close() {
	n.conn.Close()
	if n.srv != nil {
		n.srv.Shutdown()
	}
}
