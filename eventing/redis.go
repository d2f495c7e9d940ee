package eventing

import (
	"context"
	"sync"

	"github.com/agentuity/go-cachespace/logger"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Bus publishes and receives invalidations on one Redis channel. Each bus has
// a random origin id and never delivers its own messages to its handler.
type Bus struct {
	rdb     *redis.Client
	channel string
	origin  string
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBus returns a bus on channel. The bus stops when ctx is cancelled or
// Close is called; the caller owns rdb.
func NewRedisBus(ctx context.Context, log logger.Logger, rdb *redis.Client, channel string) *Bus {
	ctx, cancel := context.WithCancel(ctx)
	return &Bus{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  log.With(map[string]interface{}{"component": "eventing"}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Origin returns the id stamped on messages published by this bus.
func (b *Bus) Origin() string { return b.origin }

// Channel returns the Redis channel name.
func (b *Bus) Channel() string { return b.channel }

// Publish sends inv to every other bus on the channel.
func (b *Bus) Publish(ctx context.Context, inv Invalidation) error {
	inv.Origin = b.origin
	inv.Headers = make(Headers)
	propagator.Inject(ctx, inv.Headers)

	spanCtx, span := tracer.Start(ctx, "Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	payload, err := msgpack.Marshal(inv)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return errors.Wrap(err, "eventing: encode invalidation")
	}
	if err := b.rdb.Publish(spanCtx, b.channel, payload).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return errors.Wrap(err, "eventing: publish")
	}
	span.SetStatus(codes.Ok, "invalidation published")
	return nil
}

// Subscribe starts delivering invalidations from other buses to handler. It
// returns once Redis has confirmed the subscription. A bus has at most one
// subscription.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("eventing: already subscribed")
	}
	pubsub := b.rdb.Subscribe(b.ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return errors.Wrapf(err, "eventing: subscribe %s", b.channel)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		ch := pubsub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.deliver([]byte(msg.Payload), handler)
			}
		}
	}()
	return nil
}

func (b *Bus) deliver(payload []byte, handler Handler) {
	var inv Invalidation
	if err := msgpack.Unmarshal(payload, &inv); err != nil {
		b.logger.Error("failed to decode invalidation: %s", err)
		return
	}
	if inv.Origin == b.origin {
		return
	}
	spanCtx, span := tracer.Start(
		propagator.Extract(b.ctx, inv.Headers),
		"Deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()
	handler(spanCtx, inv)
}

// Close stops the subscription and waits for the delivery goroutine to exit.
func (b *Bus) Close() error {
	b.cancel()
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
