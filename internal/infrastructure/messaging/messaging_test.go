package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: quietLogger(), EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()
	var typed, all []shared.EventType

	require.NoError(t, bus.Subscribe(shared.EventScoreUpdated, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewScoreUpdatedEvent("ch1", "u1", 10)))
	require.NoError(t, bus.Publish(shared.NewPostLikedEvent("p1", "u1", true)))

	assert.Equal(t, []shared.EventType{shared.EventScoreUpdated}, typed)
	assert.Equal(t, []shared.EventType{shared.EventScoreUpdated, shared.EventPostLiked}, all)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("oops") }))

	assert.NoError(t, bus.Publish(shared.NewSessionEndedEvent("u1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerFailures)
	assert.Equal(t, 0.0, snap.HandlerSuccessRate)
}

func TestInMemoryEventBus_AsyncAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: quietLogger()})
	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewChallengeJoinedEvent("ch1", "u1")))
	}
	bus.Wait()
	assert.Equal(t, int32(5), n.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewChallengeJoinedEvent("ch1", "u1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventPostLiked, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

// fakeRedis loops published messages back to every subscriber.
type fakeRedis struct {
	mu   sync.Mutex
	subs []chan RedisMessage
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		s <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (f *fakeRedis) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	f.subs = append(f.subs, ch)
	return ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisEventBus_DeliversToOtherInstances(t *testing.T) {
	redis := &fakeRedis{}
	api, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "api", Logger: quietLogger()})
	require.NoError(t, err)
	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "worker", Logger: quietLogger()})
	require.NoError(t, err)
	defer api.Close()
	defer worker.Close()

	local := make(chan shared.Event, 4)
	remote := make(chan shared.Event, 4)
	require.NoError(t, api.SubscribeAll(func(e shared.Event) error { local <- e; return nil }))
	require.NoError(t, worker.SubscribeAll(func(e shared.Event) error { remote <- e; return nil }))

	require.NoError(t, api.Publish(shared.NewLeaderboardRankedEvent("ch1", 5, "u9", 950)))

	select {
	case e := <-remote:
		assert.Equal(t, shared.EventLeaderboardRanked, e.EventType())
		assert.Equal(t, "ch1", e.AggregateID())
		assert.Equal(t, "u9", e.Payload()["leader_id"])
		assert.EqualValues(t, 950, e.Payload()["top_score"])
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not receive the event")
	}

	select {
	case e := <-local:
		assert.Equal(t, shared.EventLeaderboardRanked, e.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("api did not deliver locally")
	}

	select {
	case <-local:
		t.Fatal("api handled its own echo")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	data, err := encodeEvent("i1", shared.NewCommentAddedEvent("p1", "c1", "u1"))
	require.NoError(t, err)

	e, instance, err := decodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "i1", instance)
	assert.Equal(t, shared.EventCommentAdded, e.EventType())
	assert.Equal(t, "c1", e.Payload()["comment_id"])

	_, _, err = decodeEvent([]byte("{"))
	assert.Error(t, err)
}

func TestDispatcher_RetriesThenDeadLetters(t *testing.T) {
	bus := syncBus()
	cfg := DefaultDispatcherConfig(bus)
	cfg.Logger = quietLogger()
	cfg.RetryConfig.InitialBackoff = 0
	d := NewDispatcher(cfg)
	d.Use(RecoveryMiddleware(quietLogger()))
	d.Use(LoggingMiddleware(quietLogger()))

	var flaky, broken int
	require.NoError(t, d.Register(shared.EventScoreUpdated, "flaky", func(shared.Event) error {
		flaky++
		if flaky < 2 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, d.RegisterHandler(shared.EventScoreUpdated, HandlerRegistration{
		Name:       "broken",
		MaxRetries: 1,
		Handler: func(shared.Event) error {
			broken++
			return errors.New("down")
		},
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewScoreUpdatedEvent("ch1", "u1", 5)))

	assert.Equal(t, 2, flaky)
	assert.Equal(t, 2, broken)
	require.Equal(t, 1, d.DeadLetterQueue().Size())
	assert.Equal(t, "broken", d.DeadLetterQueue().Entries()[0].HandlerName)
}

func TestDispatcher_PanicIsNotRetried(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{EventBus: syncBus(), Logger: quietLogger(), RetryConfig: RetryConfig{MaxRetries: 3, DefaultTimeout: time.Second}})
	d.Use(RecoveryMiddleware(quietLogger()))

	calls := 0
	require.NoError(t, d.Register(shared.EventPostCreated, "panicky", func(shared.Event) error {
		calls++
		panic("bad")
	}))

	err := d.Dispatch(shared.NewPostCreatedEvent("p1", "u1", "question", "spanish"))

	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, 1, calls)
	assert.Nil(t, d.DeadLetterQueue())
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, name := range []string{"a", "b", "c"} {
		q.Add(DeadLetterEntry{HandlerName: name})
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}

func TestEncodeEvent_CarriesCorrelation(t *testing.T) {
	ev := shared.NewCommentAddedEvent("p1", "c1", "u1")
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-42")

	data, err := encodeEvent("i1", ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"origin":"i1"`)

	got, _, err := decodeEvent(data)
	require.NoError(t, err)
	c, ok := got.(interface{ Correlation() string })
	require.True(t, ok)
	assert.Equal(t, "req-42", c.Correlation())
}

func TestEventBusMetrics_PerType(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Publish(shared.NewPostLikedEvent("p1", "u1", true)))
	require.NoError(t, bus.Publish(shared.NewPostLikedEvent("p1", "u2", true)))
	require.NoError(t, bus.Publish(shared.NewSessionEndedEvent("u1")))

	byType := bus.Metrics().PublishedByType()
	assert.Equal(t, int64(2), byType[shared.EventPostLiked])
	assert.Equal(t, int64(1), byType[shared.EventSessionEnded])

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalPublished)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}
