package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "tasklens:task-events"

// RedisBus shares events between processes over Redis pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

func NewRedisBus(client *redis.Client, channel string, log logrus.FieldLogger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a channel of decoded events. The subscription is confirmed
// before Subscribe returns, so events published afterwards are not missed.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Event, subscriberBuffer)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.log.WithField("channel", b.channel).Warn("event subscription closed")
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.WithError(err).Warn("unable to parse task event")
					continue
				}
				if ev.Type != TaskChanged && ev.Type != TaskDeleted {
					b.log.WithField("type", ev.Type).Debug("ignoring unknown task event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
