package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChannelName is the Pub/Sub channel shared by all processes.
const DefaultChannelName = "lingofin-hub:events"

const publishTimeout = 3 * time.Second

// RedisClient is the Pub/Sub surface the bus needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

type RedisEventBusConfig struct {
	Client RedisClient

	// ChannelName defaults to DefaultChannelName.
	ChannelName string

	// InstanceID marks this process's messages. Generated when empty.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig
	Logger         *slog.Logger
}

// RedisEventBus publishes every event to Redis and to its own handlers.
// Events from other instances are replayed on the local bus; its own echo
// is dropped.
type RedisEventBus struct {
	client  RedisClient
	local   *InMemoryEventBus
	channel string
	self    string
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loop   sync.WaitGroup
	closed atomic.Bool
}

func NewRedisEventBus(cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis event bus: client is required")
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = DefaultChannelName
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "instance-" + uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LocalBusConfig.Logger == nil {
		cfg.LocalBusConfig.Logger = cfg.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisEventBus{
		client:  cfg.Client,
		local:   NewInMemoryEventBus(cfg.LocalBusConfig),
		channel: cfg.ChannelName,
		self:    cfg.InstanceID,
		log:     cfg.Logger.With("channel", cfg.ChannelName, "instance", cfg.InstanceID),
		ctx:     ctx,
		cancel:  cancel,
	}

	messages, err := b.client.Subscribe(ctx, b.channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("redis event bus: subscribe: %w", err)
	}
	b.loop.Add(1)
	go b.listen(messages)
	return b, nil
}

func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish never fails because of Redis: a broken broker is logged and the
// event is still delivered locally.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if b.closed.Load() {
		return ErrEventBusClosed
	}

	data, err := encodeEvent(b.self, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(b.ctx, publishTimeout)
	err = b.client.Publish(ctx, b.channel, string(data))
	cancel()
	if err != nil {
		b.log.Warn("redis publish failed, delivering locally only", "event_type", event.EventType(), "error", err)
	}

	return b.local.Publish(event)
}

func (b *RedisEventBus) listen(messages <-chan RedisMessage) {
	defer b.loop.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.receive(msg)
		}
	}
}

func (b *RedisEventBus) receive(msg RedisMessage) {
	if msg.Err != nil {
		b.log.Error("redis subscription error", "error", msg.Err)
		return
	}
	event, origin, err := decodeEvent([]byte(msg.Payload))
	if err != nil {
		b.log.Error("dropping undecodable message", "error", err)
		return
	}
	if origin == b.self {
		return
	}
	if err := b.local.Publish(event); err != nil && !errors.Is(err, ErrEventBusClosed) {
		b.log.Error("remote event not delivered", "event_type", event.EventType(), "error", err)
	}
}

// Close stops listening, drains the local bus and releases the client.
func (b *RedisEventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	b.loop.Wait()

	err := errors.Join(b.local.Close(), b.client.Close())
	b.log.Info("redis event bus closed")
	return err
}

func (b *RedisEventBus) Metrics() *EventBusMetrics { return b.local.Metrics() }

// ──────────────────────────────────────────────────────────────────────────────
// go-redis adapter
// ──────────────────────────────────────────────────────────────────────────────

type goRedisClient struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewGoRedisClient adapts a go-redis client. Close releases the
// subscriptions it opened; the client itself stays with the caller.
func NewGoRedisClient(client redis.UniversalClient) RedisClient {
	return &goRedisClient{client: client}
}

func (c *goRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

func (c *goRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	ps := c.client.Subscribe(ctx, channels...)
	// Wait for the confirmation so no message published right after
	// Subscribe returns is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	c.mu.Lock()
	c.subs = append(c.subs, ps)
	c.mu.Unlock()

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			var msg *redis.Message
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg = m
			}
			select {
			case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *goRedisClient) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	errs := make([]error, 0, len(subs))
	for _, ps := range subs {
		errs = append(errs, ps.Close())
	}
	return errors.Join(errs...)
}
