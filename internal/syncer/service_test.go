package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/store"
	"github.com/rafaeljc/bifrost/internal/testsupport"
)

// fakeRepo serves a fixed rule set. Methods the syncer never calls panic via
// the embedded nil interface.
type fakeRepo struct {
	store.RuleRepository
	rules []*store.Rule
	err   error
}

func (f *fakeRepo) AllRules(context.Context) ([]*store.Rule, error) {
	return f.rules, f.err
}

// recordingPublisher remembers every document it receives.
type recordingPublisher struct {
	name string
	err  error

	mu   sync.Mutex
	docs []store.Document
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, doc store.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return r.err
}

func (r *recordingPublisher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

var testRules = []*store.Rule{
	{Path: "/", SplitThreshold: 80, VariantA: "/index.html", VariantB: "/index_b.html"},
	{Path: "/pricing", SplitThreshold: 50, VariantA: "/pricing_a.html", VariantB: "/pricing_b.html"},
}

func testConfig() config.SyncerConfig {
	return config.SyncerConfig{Interval: time.Second, MaxRetries: 1, BaseRetryDelay: time.Millisecond}
}

func TestNew(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(nil, testConfig(), nil, &recordingPublisher{}) })
	assert.Panics(t, func() { New(nil, testConfig(), &fakeRepo{}) })

	svc := New(nil, config.SyncerConfig{Interval: time.Millisecond}, &fakeRepo{}, &recordingPublisher{})
	assert.Equal(t, 10*time.Second, svc.config.Interval, "sub-second intervals fall back to the default")
}

func TestService_Sync(t *testing.T) {
	t.Parallel()

	t.Run("publishes the rendered document everywhere", func(t *testing.T) {
		t.Parallel()

		// Arrange
		kv := &recordingPublisher{name: "kv"}
		blob := &recordingPublisher{name: "blob"}
		svc := New(logger.Discard(), testConfig(), &fakeRepo{rules: testRules}, kv, blob)

		// Act
		err := svc.Sync(context.Background())

		// Assert
		require.NoError(t, err)
		for _, p := range []*recordingPublisher{kv, blob} {
			require.Len(t, p.docs, 1)
			assert.Equal(t, store.BuildDocument(testRules), p.docs[0])
		}
	})

	t.Run("one failing publisher does not block the others", func(t *testing.T) {
		t.Parallel()

		// Arrange
		broken := &recordingPublisher{name: "table", err: errors.New("throttled")}
		kv := &recordingPublisher{name: "kv"}
		svc := New(logger.Discard(), testConfig(), &fakeRepo{rules: testRules}, broken, kv)

		// Act
		err := svc.Sync(context.Background())

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
		assert.Equal(t, 2, broken.Count(), "first attempt plus one retry")
		assert.Equal(t, 1, kv.Count())
	})

	t.Run("repository failure publishes nothing", func(t *testing.T) {
		t.Parallel()

		kv := &recordingPublisher{name: "kv"}
		svc := New(logger.Discard(), testConfig(), &fakeRepo{err: errors.New("connection refused")}, kv)

		err := svc.Sync(context.Background())

		require.Error(t, err)
		assert.Equal(t, 0, kv.Count())
	})

	t.Run("empty table publishes an empty document", func(t *testing.T) {
		t.Parallel()

		kv := &recordingPublisher{name: "kv"}
		svc := New(logger.Discard(), testConfig(), &fakeRepo{}, kv)

		require.NoError(t, svc.Sync(context.Background()))
		require.Len(t, kv.docs, 1)
		assert.Empty(t, kv.docs[0])
	})
}

func TestService_Run(t *testing.T) {
	t.Parallel()

	// Arrange
	kv := &recordingPublisher{name: "kv"}
	svc := New(logger.Discard(), testConfig(), &fakeRepo{rules: testRules}, kv)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Act
	go func() { done <- svc.Run(ctx) }()

	// Assert: the first cycle runs immediately, the next one on the ticker.
	require.Eventually(t, func() bool { return kv.Count() >= 2 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestService_Metrics(t *testing.T) {
	kv := &recordingPublisher{name: "metrics-kv"}
	broken := &recordingPublisher{name: "metrics-broken", err: errors.New("down")}
	svc := New(logger.Discard(), testConfig(), &fakeRepo{rules: testRules}, kv, broken)

	testsupport.AssertMetricDelta(t, "bifrost_syncer_publish_total",
		map[string]string{"publisher": "metrics-kv", "status": "success"}, 1,
		func() { _ = svc.Sync(context.Background()) })

	testsupport.AssertMetricDelta(t, "bifrost_syncer_publish_total",
		map[string]string{"publisher": "metrics-broken", "status": "fail"}, 1,
		func() { _ = svc.Sync(context.Background()) })

	assert.Equal(t, 2.0, testsupport.GetMetricValue(t, "bifrost_syncer_rules_published", nil))
	testsupport.AssertHistogramRecorded(t, "bifrost_syncer_run_duration_seconds", nil)
}
