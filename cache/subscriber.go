package cache

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/logging"
)

// reconnectWait is the fixed backoff between subscription attempts after a
// transport failure.
const reconnectWait = 5 * time.Second

// Subscriber consumes one pub/sub channel. It owns a client of its own,
// distinct from any shared store client: subscriptions are long-lived and
// exclusive, and must not starve the publishing pool.
type Subscriber struct {
	channel string
	client  *redis.Client
	logger  logging.Logger
}

// NewSubscriber returns a Subscriber for the named channel on the redis
// instance at cfg.
func NewSubscriber(cfg Config, channel string, logger logging.Logger) *Subscriber {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.addr(),
		DB:   cfg.DB,
	})
	return &Subscriber{channel: channel, client: client, logger: logger}
}

// Listen blocks, delivering each payload published on the channel to handler
// in arrival order. Transport failures close the subscription, wait a fixed
// five seconds, and resubscribe. Listen returns nil once ctx ends, and the
// first unexpected error otherwise.
func (s *Subscriber) Listen(ctx context.Context, handler func(payload []byte)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		pubsub := s.client.Subscribe(ctx, s.channel)
		err := receive(ctx, pubsub, handler)
		utils.UncheckedError(pubsub.Close())

		switch {
		case ctx.Err() != nil || errors.Is(err, redis.ErrClosed):
			return nil
		case transientErr(err):
			s.logger.Warnw("command subscription lost, reconnecting",
				"channel", s.channel,
				"wait", reconnectWait.String(),
				"error", err,
			)
			if !utils.SelectContextOrWait(ctx, reconnectWait) {
				return nil
			}
		default:
			return errors.Wrapf(err, "subscription to %q failed", s.channel)
		}
	}
}

func receive(ctx context.Context, pubsub *redis.PubSub, handler func(payload []byte)) error {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler([]byte(msg.Payload))
	}
}

// Close releases the subscriber's client, unblocking any in-flight receive.
func (s *Subscriber) Close() error {
	return s.client.Close()
}

// transientErr reports whether err looks like a transport failure worth
// retrying rather than a protocol or usage error.
func transientErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
