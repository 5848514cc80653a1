package config

import (
	"errors"
	"hash/fnv"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// ActiveChallenges compares challenge dates with the clock instead of
	// trusting the stored IsActive snapshot.
	FeatureChallengeLiveActivity = "challenge.live_activity"

	// The API reads ranked leaderboards through the Redis cache.
	FeatureLeaderboardCache = "leaderboard.cache"

	// The worker reports challenges whose IsActive snapshot went stale.
	FeatureWorkerActivityReport = "worker.activity_report"
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is one toggle. A learner is inside a partial rollout when the hash
// of feature name and user ID falls below RolloutPercent.
type Feature struct {
	Name           string
	Description    string
	Enabled        bool
	RolloutPercent int

	// TargetLanguages limits the feature to learners of these languages.
	TargetLanguages []string

	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext is who is asking. A nil context asks globally.
type FeatureContext struct {
	UserID    string
	Languages []string
	IsAdmin   bool
}

func defaultFeatures() []Feature {
	return []Feature{
		{
			Name:        FeatureChallengeLiveActivity,
			Description: "Evaluate challenge activity against the clock",
		},
		{
			Name:           FeatureLeaderboardCache,
			Description:    "Serve ranked leaderboards from Redis",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureWorkerActivityReport,
			Description:    "Report stale challenge activity snapshots",
			Enabled:        true,
			RolloutPercent: 100,
		},
	}
}

type FeatureFlags struct {
	mu        sync.RWMutex
	features  map[string]*Feature
	overrides map[string]map[string]bool // user -> feature -> on
	now       func() time.Time
}

func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature),
		overrides: make(map[string]map[string]bool),
		now:       time.Now,
	}
	for _, f := range defaultFeatures() {
		f := f
		ff.features[f.Name] = &f
	}
	return ff
}

// LoadFeatureFlags applies FEATURE_<NAME> variables on top of the defaults.
// A boolean switches the feature fully on or off; a number 0..100 sets the
// rollout, e.g. FEATURE_LEADERBOARD_CACHE=50.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	for name, f := range ff.features {
		if pct, ok := parseRollout(os.Getenv(envKey(name))); ok {
			f.Enabled, f.RolloutPercent = pct > 0, pct
		}
	}
	return ff
}

func parseRollout(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if on, err := strconv.ParseBool(v); err == nil {
		if on {
			return 100, true
		}
		return 0, true
	}
	if pct, err := strconv.Atoi(v); err == nil && pct >= 0 && pct <= 100 {
		return pct, true
	}
	return 0, false
}

// envKey maps "challenge.live_activity" to FEATURE_CHALLENGE_LIVE_ACTIVITY.
func envKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled resolves, in order: user override, admin, switch, time window,
// language targeting, rollout bucket.
func (ff *FeatureFlags) IsEnabled(name string, fc *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if fc != nil && fc.UserID != "" {
		if on, ok := ff.overrides[fc.UserID][name]; ok {
			return on
		}
	}
	f, ok := ff.features[name]
	if !ok {
		return false
	}
	if fc != nil && fc.IsAdmin {
		return true
	}
	if !f.Enabled || !f.activeAt(ff.now()) {
		return false
	}
	if fc == nil {
		return f.RolloutPercent > 0
	}
	if !f.targets(fc.Languages) {
		return false
	}
	if f.RolloutPercent < 100 && fc.UserID != "" {
		return bucket(name, fc.UserID) < f.RolloutPercent
	}
	return f.RolloutPercent > 0
}

func (f *Feature) activeAt(t time.Time) bool {
	if f.EnabledFrom != nil && t.Before(*f.EnabledFrom) {
		return false
	}
	return f.EnabledUntil == nil || !t.After(*f.EnabledUntil)
}

// targets is true when no languages are targeted or nothing is known about
// the learner.
func (f *Feature) targets(langs []string) bool {
	if len(f.TargetLanguages) == 0 || len(langs) == 0 {
		return true
	}
	return slices.ContainsFunc(langs, func(l string) bool {
		return slices.Contains(f.TargetLanguages, l)
	})
}

func bucket(feature, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// Checker evaluates name globally on every call, so toggles made later are
// seen by whoever holds the closure.
func (ff *FeatureFlags) Checker(name string) func() bool {
	return func() bool { return ff.IsEnabled(name, nil) }
}

func (ff *FeatureFlags) SetUserOverride(userID, name string, on bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.overrides[userID] == nil {
		ff.overrides[userID] = make(map[string]bool)
	}
	ff.overrides[userID][name] = on
}

func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	delete(ff.overrides, userID)
	ff.mu.Unlock()
}

func (ff *FeatureFlags) SetRolloutPercent(name string, pct int) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidRolloutPercent
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	f.Enabled, f.RolloutPercent = pct > 0, pct
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.SetRolloutPercent(name, 100) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// GetAllFeatures returns deep copies.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]*Feature, len(ff.features))
	for name, f := range maps.All(ff.features) {
		c := *f
		c.TargetLanguages = slices.Clone(f.TargetLanguages)
		out[name] = &c
	}
	return out
}
