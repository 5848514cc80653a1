package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

var errServer = shared.ServiceFailure("dataaccess", "test", errors.New("server unavailable"))

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	signErr   error
	updateErr error
	updates   int
}

func (g *fakeGateway) SignUp(_ context.Context, email, name, _ string) (*user.User, error) {
	if g.signErr != nil {
		return nil, g.signErr
	}
	return user.New(email, name, t0), nil
}

func (g *fakeGateway) SignIn(_ context.Context, email, _ string) (*user.User, error) {
	if g.signErr != nil {
		return nil, g.signErr
	}
	return user.New(email, "Returning Learner", t0), nil
}

func (g *fakeGateway) UpdateProfile(_ context.Context, u *user.User) (*user.User, error) {
	g.updates++
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	return u.Clone(), nil
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func newController(gw *fakeGateway, store kv.Store) (*Controller, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewController(gw, store, Options{Publisher: pub, Clock: timeutil.NewFixedClock(t0)}), pub
}

func storedUser(t *testing.T, store kv.Store) *user.User {
	t.Helper()
	data, err := store.Get(context.Background(), CurrentUserKey)
	require.NoError(t, err)
	var u user.User
	require.NoError(t, json.Unmarshal(data, &u))
	return &u
}

func TestSignUp_PersistsSession(t *testing.T) {
	store := kv.NewMemory()
	c, pub := newController(&fakeGateway{}, store)

	u, err := c.SignUp(context.Background(), " Ana@Example.com ", "Ana", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, u.ID, storedUser(t, store).ID)
	assert.Equal(t, 1, pub.count(shared.EventSessionStarted))
}

func TestSignUp_ValidatesForm(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		userName string
		password string
	}{
		{"bad email", "not-an-email", "Ana", "secret1"},
		{"empty name", "ana@example.com", "   ", "secret1"},
		{"short password", "ana@example.com", "Ana", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(&fakeGateway{}, kv.NewMemory())

			_, err := c.SignUp(context.Background(), tt.email, tt.userName, tt.password)

			require.Error(t, err)
			assert.True(t, shared.IsInvalidArgument(err))
			assert.False(t, c.IsAuthenticated())
			assert.NotEmpty(t, c.LastError())
		})
	}
}

func TestSignIn_FailureLeavesSignedOut(t *testing.T) {
	c, _ := newController(&fakeGateway{signErr: errServer}, kv.NewMemory())

	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")

	require.Error(t, err)
	assert.False(t, c.IsAuthenticated())
	assert.Equal(t, errServer.Error(), c.LastError())
}

func TestRestore(t *testing.T) {
	store := kv.NewMemory()
	first, _ := newController(&fakeGateway{}, store)
	u, err := first.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	second, _ := newController(&fakeGateway{}, store)
	require.NoError(t, second.Restore(context.Background()))

	require.NotNil(t, second.CurrentUser())
	assert.Equal(t, u.ID, second.CurrentUser().ID)
}

func TestRestore_EmptyOrCorruptStore(t *testing.T) {
	c, _ := newController(&fakeGateway{}, kv.NewMemory())
	require.NoError(t, c.Restore(context.Background()))
	assert.Nil(t, c.CurrentUser())

	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), CurrentUserKey, []byte("{broken")))
	c, _ = newController(&fakeGateway{}, store)
	require.NoError(t, c.Restore(context.Background()))
	assert.False(t, c.IsAuthenticated())
}

func TestSignOut_DeletesKey(t *testing.T) {
	store := kv.NewMemory()
	c, pub := newController(&fakeGateway{}, store)
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(context.Background()))

	assert.False(t, c.IsAuthenticated())
	_, err = store.Get(context.Background(), CurrentUserKey)
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	assert.Equal(t, 1, pub.count(shared.EventSessionEnded))
}

func TestUpdateProfile(t *testing.T) {
	store := kv.NewMemory()
	gw := &fakeGateway{}
	c, _ := newController(gw, store)
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	name := "Ana Lopez"
	u, err := c.UpdateProfile(context.Background(), ProfileChanges{
		Name:      &name,
		Languages: []shared.Language{shared.LanguageFrench, "xx", shared.LanguageFrench},
	})

	require.NoError(t, err)
	assert.Equal(t, "Ana Lopez", u.Name)
	assert.Equal(t, []shared.Language{shared.LanguageFrench}, u.SelectedLanguages)
	assert.Equal(t, "Ana Lopez", storedUser(t, store).Name)
}

func TestUpdateProfile_FailureKeepsSession(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(gw, kv.NewMemory())
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	gw.updateErr = errServer
	name := "Changed"
	_, err = c.UpdateProfile(context.Background(), ProfileChanges{Name: &name})

	require.Error(t, err)
	assert.Equal(t, "Returning Learner", c.CurrentUser().Name)
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	c, _ := newController(&fakeGateway{}, kv.NewMemory())
	_, err := c.UpdateProfile(context.Background(), ProfileChanges{})
	assert.ErrorIs(t, err, shared.ErrNoSession)
}

func TestRecordLessonProgress(t *testing.T) {
	store := kv.NewMemory()
	c, pub := newController(&fakeGateway{}, store)
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	res, err := c.RecordLessonProgress(context.Background(), 1, 300, 1200)

	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Progress.Level)
	assert.Equal(t, 1200, res.Progress.ExperiencePoints)
	require.Len(t, res.Badges, 1)
	assert.Equal(t, user.BadgeFirstLesson, res.Badges[0].ID)

	assert.Equal(t, 2, storedUser(t, store).Progress.Level)
	assert.Equal(t, 1, pub.count(shared.EventLessonCompleted))
	assert.Equal(t, 1, pub.count(shared.EventLevelUp))
	assert.Equal(t, 1, pub.count(shared.EventBadgeEarned))

	res, err = c.RecordLessonProgress(context.Background(), 1, 300, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Badges, "badges are awarded once")
	assert.Len(t, c.CurrentUser().Progress.Badges, 1)
}

func TestRecordLessonProgress_Failures(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(gw, kv.NewMemory())
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	_, err = c.RecordLessonProgress(context.Background(), -1, 0, 0)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidArgument(err))
	assert.Zero(t, gw.updates)

}

func TestRecordLessonProgress_KeepsAwardWhenSyncFails(t *testing.T) {
	gw := &fakeGateway{}
	store := kv.NewMemory()
	c, pub := newController(gw, store)
	_, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	gw.updateErr = errServer
	res, err := c.RecordLessonProgress(context.Background(), 1, 60, 100)

	require.Error(t, err)
	assert.ErrorIs(t, err, errServer)
	assert.Equal(t, errServer.Error(), c.LastError())
	assert.Equal(t, 1, gw.updates)

	assert.Equal(t, 100, res.Progress.TotalPoints)
	require.Len(t, res.Badges, 1)
	assert.Equal(t, 100, c.CurrentUser().Progress.TotalPoints)
	assert.Equal(t, 1, c.CurrentUser().Progress.TotalLessonsCompleted)

	stored := storedUser(t, store)
	assert.Equal(t, 100, stored.Progress.TotalPoints)
	assert.Len(t, stored.Progress.Badges, 1)
	assert.Equal(t, 1, pub.count(shared.EventLessonCompleted))

	gw.updateErr = nil
	res, err = c.RecordLessonProgress(context.Background(), 1, 60, 50)
	require.NoError(t, err)
	assert.Equal(t, 150, res.Progress.TotalPoints)
	assert.Empty(t, res.Badges)
}
