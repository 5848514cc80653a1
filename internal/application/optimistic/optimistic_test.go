package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestRun_SuccessKeepsAppliedState(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRunner(nil, pub, nil)
	state := 0

	err := r.Run(context.Background(), Command{
		Name:   "inc",
		Apply:  func() { state++ },
		Revert: func() { state-- },
		Remote: func(context.Context) error { return nil },
	})

	require.NoError(t, err)
	assert.Equal(t, 1, state)
	assert.Empty(t, pub.events)
	assert.Empty(t, r.Slot().Message())
}

func TestRun_FailureRevertsRecordsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRunner(nil, pub, nil)
	state := 0
	remoteErr := shared.ServiceFailure("dataaccess", "ToggleLike", errors.New("server unavailable"))

	err := r.Run(context.Background(), Command{
		Name:        "toggle_like",
		AggregateID: "p1",
		Apply:       func() { state++ },
		Revert:      func() { state-- },
		Remote:      func(context.Context) error { return remoteErr },
	})

	require.Error(t, err)
	assert.True(t, shared.IsServiceFailure(err))
	assert.Equal(t, 0, state)
	assert.Equal(t, remoteErr, r.Slot().Err())
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventOptimisticReverted, pub.events[0].EventType())
	assert.Equal(t, "p1", pub.events[0].AggregateID())
}

func TestRunWithoutRevert_KeepsStateAndRecords(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	boom := errors.New("boom")

	err := r.RunWithoutRevert(context.Background(), "complete_lesson", "l1", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "boom", r.Slot().Message())
}

func TestErrorSlot_OverwriteAndClear(t *testing.T) {
	var s ErrorSlot
	s.Set(errors.New("first"))
	s.Set(nil)
	assert.Equal(t, "first", s.Message())

	s.Set(errors.New("second"))
	assert.Equal(t, "second", s.Message())

	s.Clear()
	assert.NoError(t, s.Err())
}
