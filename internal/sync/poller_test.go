package sync_test

import (
	"context"
	"errors"
	"slices"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	"github.com/nhle/climate-alerts/internal/source"
	"github.com/nhle/climate-alerts/internal/store"
	climsync "github.com/nhle/climate-alerts/internal/sync"
	"github.com/nhle/climate-alerts/tests/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var july = time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)

type fakeCrops struct {
	mu    gosync.Mutex
	crops []model.Crop
	err   error
}

func (f *fakeCrops) Crops(context.Context) ([]model.Crop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Crop(nil), f.crops...), nil
}

func (f *fakeCrops) set(crops ...model.Crop) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crops = crops
}

type watchedCrops struct {
	fakeCrops
	changes chan struct{}
}

func (w *watchedCrops) Changes() <-chan struct{} { return w.changes }

type fakeAlerts struct {
	mu      gosync.Mutex
	alerts  []model.Alert
	current []model.Alert
	err     error
	delay   time.Duration
}

func (f *fakeAlerts) Refresh(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.current = append([]model.Alert(nil), f.alerts...)
	return nil
}

func (f *fakeAlerts) ActiveAlerts() []model.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Alert(nil), f.current...)
}

func (f *fakeAlerts) set(alerts ...model.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = alerts
}

type fakeWeather struct {
	mu  gosync.Mutex
	w   model.Weather
	err error
}

func (f *fakeWeather) Current(context.Context) (model.Weather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w, f.err
}

func (f *fakeWeather) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// blockingWeather never answers until its context ends.
type blockingWeather struct {
	started chan struct{}
	once    gosync.Once
}

func (b *blockingWeather) Current(ctx context.Context) (model.Weather, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return model.Weather{}, ctx.Err()
}

// sinceClock runs from july at wall-clock speed.
type sinceClock struct{ start time.Time }

func (c sinceClock) Now() time.Time { return july.Add(time.Since(c.start)) }

type memPersister struct{}

func (memPersister) Load(context.Context) ([]model.Recommendation, error) { return nil, nil }
func (memPersister) Save(context.Context, []model.Recommendation) error   { return nil }
func (memPersister) Close() error                                         { return nil }

func papaNorte() model.Crop {
	return model.Crop{
		ID:           "c1",
		Name:         "Papa Norte",
		Type:         model.CropTypePotato,
		Location:     "Acobamba",
		PlantingDate: july.AddDate(0, 0, -12),
	}
}

func frost() model.Alert {
	return model.Alert{
		ID:          "1",
		Type:        model.AlertFrost,
		Severity:    model.PriorityHigh,
		Title:       "Helada intensa",
		Description: "temperaturas bajo cero",
		IsActive:    true,
		CreatedAt:   july,
		ValidUntil:  july.Add(12 * time.Hour),
	}
}

type fixture struct {
	crops   *fakeCrops
	alerts  *fakeAlerts
	weather *fakeWeather
	store   *store.Store
	poller  *climsync.Poller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		crops:   &fakeCrops{crops: []model.Crop{papaNorte()}},
		alerts:  &fakeAlerts{alerts: []model.Alert{frost()}},
		weather: &fakeWeather{w: model.Weather{Temperature: 18.5, Humidity: 65, WindSpeed: 12, Rainfall: 3.2}},
		store:   store.New(memPersister{}, nil),
	}
	t.Cleanup(func() { _ = f.store.Close() })

	engine := recommend.NewEngine(f.store, recommend.Options{Clock: testutil.NewFixedClock(july)})
	f.poller = climsync.New(climsync.Config{
		Crops:           f.crops,
		Alerts:          f.alerts,
		Weather:         f.weather,
		Engine:          engine,
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		CropInterval:    time.Hour,
	})
	return f
}

func statusOf(t *testing.T, p *climsync.Poller, k source.Kind) climsync.SyncStatus {
	t.Helper()
	for _, s := range p.GetStatuses() {
		if s.Kind == k {
			return s
		}
	}
	t.Fatalf("no status for %s", k)
	return climsync.SyncStatus{}
}

func nextResult(t *testing.T, p *climsync.Poller) climsync.SyncResultMsg {
	t.Helper()
	done := make(chan climsync.SyncResultMsg, 1)
	go func() {
		msg, _ := p.WaitForNextResult()().(climsync.SyncResultMsg)
		done <- msg
	}()
	select {
	case msg := <-done:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync result")
		return climsync.SyncResultMsg{}
	}
}

func TestRefreshAll_PopulatesSnapshotAndGenerates(t *testing.T) {
	f := newFixture(t)

	out, err := f.poller.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Generated)

	snap := f.poller.Snapshot()
	require.Len(t, snap.Crops, 1)
	require.Len(t, snap.Alerts, 1)
	require.NotNil(t, snap.Weather)
	assert.Equal(t, 65.0, snap.Weather.Humidity)

	titles := make([]string, 0)
	for _, r := range f.store.Recommendations() {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles, "Protección para Papa Norte - Helada intensa")

	for _, s := range f.poller.GetStatuses() {
		assert.Equal(t, climsync.SyncIdle, s.State, s.Kind)
		assert.False(t, s.LastSync.IsZero(), s.Kind)
		assert.False(t, s.Stale(), s.Kind)
	}
}

func TestRefreshAll_SecondPassUnchanged(t *testing.T) {
	f := newFixture(t)

	_, err := f.poller.RefreshAll(context.Background())
	require.NoError(t, err)
	n := len(f.store.Recommendations())

	out, err := f.poller.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Generated)
	assert.Equal(t, recommend.SkipUnchanged, out.Skip)
	assert.Len(t, f.store.Recommendations(), n)
}

func TestRefreshAll_FailingSourceKeepsPreviousReading(t *testing.T) {
	f := newFixture(t)

	_, err := f.poller.RefreshAll(context.Background())
	require.NoError(t, err)

	f.weather.fail(errors.New("connection refused"))
	_, err = f.poller.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnavailable)

	var unavailable *source.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, source.KindWeather, unavailable.Kind)

	snap := f.poller.Snapshot()
	require.NotNil(t, snap.Weather)
	assert.Equal(t, 65.0, snap.Weather.Humidity)

	weather := statusOf(t, f.poller, source.KindWeather)
	assert.Equal(t, climsync.SyncError, weather.State)
	assert.True(t, weather.Stale())
	assert.Error(t, weather.Error)

	assert.False(t, statusOf(t, f.poller, source.KindCrops).Stale())
	assert.False(t, statusOf(t, f.poller, source.KindAlerts).Stale())
}

func TestRefreshAll_WrappedErrorIsNotRewrapped(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("503")
	f.weather.fail(source.Unavailable(source.KindWeather, cause))

	_, err := f.poller.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "weather unavailable: 503", err.Error())
}

func TestRefreshAll_FailedFirstReadLeavesSourceAbsent(t *testing.T) {
	f := newFixture(t)
	f.crops.err = errors.New("registry unreadable")

	out, err := f.poller.RefreshAll(context.Background())
	require.Error(t, err)

	snap := f.poller.Snapshot()
	assert.Empty(t, snap.Crops)
	require.Len(t, snap.Alerts, 1)
	// Alerts alone are enough to run a cycle, but with no crops there is
	// nothing to pair them with.
	assert.True(t, out.Generated)
	assert.Zero(t, out.Candidates)
}

func TestRefreshAll_NoSources(t *testing.T) {
	st := store.New(memPersister{}, nil)
	defer st.Close()
	p := climsync.New(climsync.Config{
		Engine: recommend.NewEngine(st, recommend.Options{}),
	})

	out, err := p.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recommend.SkipNoInput, out.Skip)
	assert.True(t, p.Snapshot().Empty())
}

func TestStart_DeliversResultsAndStops(t *testing.T) {
	f := newFixture(t)

	cmd := f.poller.Start()
	require.NotNil(t, cmd)
	defer f.poller.Stop()

	msg, ok := cmd().(climsync.SyncResultMsg)
	require.True(t, ok)
	assert.NoError(t, msg.Error)
	assert.Equal(t, climsync.AllSources, msg.Source)
	assert.True(t, msg.Outcome.Generated)

	snap := f.poller.Snapshot()
	assert.Len(t, snap.Crops, 1)
	assert.Len(t, snap.Alerts, 1)
	assert.NotNil(t, snap.Weather)
	assert.NotEmpty(t, f.store.Recommendations())
}

func TestStart_FirstCycleWaitsForSlowSource(t *testing.T) {
	f := newFixture(t)
	f.alerts.delay = 50 * time.Millisecond
	engine := recommend.NewEngine(f.store, recommend.Options{
		MinInterval: time.Minute,
		Clock:       testutil.NewFixedClock(july),
	})
	p := climsync.New(climsync.Config{
		Crops:           f.crops,
		Alerts:          f.alerts,
		Weather:         f.weather,
		Engine:          engine,
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		CropInterval:    time.Hour,
	})

	cmd := p.Start()
	defer p.Stop()

	msg, ok := cmd().(climsync.SyncResultMsg)
	require.True(t, ok)
	require.True(t, msg.Outcome.Generated)
	assert.Contains(t, titles(f.store), "Protección para Papa Norte - Helada intensa")
}

func TestStart_ThrottledChangeIsRetried(t *testing.T) {
	f := newFixture(t)
	engine := recommend.NewEngine(f.store, recommend.Options{
		MinInterval: time.Second,
		Clock:       sinceClock{start: time.Now()},
	})
	p := climsync.New(climsync.Config{
		Crops:           f.crops,
		Alerts:          f.alerts,
		Weather:         f.weather,
		Engine:          engine,
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		CropInterval:    time.Hour,
	})
	p.Start()
	defer p.Stop()
	require.True(t, nextResult(t, p).Outcome.Generated)

	wind := frost()
	wind.ID = "4"
	wind.Type = model.AlertStrongWind
	wind.Title = "Vientos fuertes"
	f.alerts.set(frost(), wind)
	p.Trigger()

	// No further refresh is due for an hour, so only the retry can pick
	// up the throttled change.
	var throttled, retried bool
	for !retried || !slices.Contains(titles(f.store), "Protección para Papa Norte - Vientos fuertes") {
		msg := nextResult(t, p)
		throttled = throttled || msg.Outcome.Skip == recommend.SkipThrottled
		retried = retried || (msg.Retried && msg.Outcome.Generated)
	}
	assert.True(t, throttled)
}

func TestStop_CancelsPendingRetry(t *testing.T) {
	f := newFixture(t)
	engine := recommend.NewEngine(f.store, recommend.Options{
		MinInterval: time.Hour,
		Clock:       testutil.NewFixedClock(july),
	})
	p := climsync.New(climsync.Config{
		Crops:           f.crops,
		Alerts:          f.alerts,
		Weather:         f.weather,
		Engine:          engine,
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		CropInterval:    time.Hour,
	})
	p.Start()
	nextResult(t, p)

	f.weather.mu.Lock()
	f.weather.w.Humidity = 90
	f.weather.mu.Unlock()
	p.Trigger()
	for range 3 {
		nextResult(t, p)
	}

	p.Stop()
	assert.Equal(t, july, p.LastGenerated())
}

func titles(s *store.Store) []string {
	var out []string
	for _, r := range s.Recommendations() {
		out = append(out, r.Title)
	}
	return out
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t)

	require.NotNil(t, f.poller.Start())
	assert.Nil(t, f.poller.Start())

	f.poller.Stop()
	f.poller.Stop()
}

func TestTrigger_RefreshesEverySource(t *testing.T) {
	f := newFixture(t)
	f.poller.Start()
	defer f.poller.Stop()

	nextResult(t, f.poller)

	wind := frost()
	wind.ID = "4"
	wind.Type = model.AlertStrongWind
	wind.Title = "Vientos fuertes"
	f.alerts.set(frost(), wind)

	f.poller.Trigger()
	for range 3 {
		nextResult(t, f.poller)
	}

	assert.Len(t, f.poller.Snapshot().Alerts, 2)
}

func TestStart_WatchedRegistryRefreshesOnChange(t *testing.T) {
	crops := &watchedCrops{
		fakeCrops: fakeCrops{crops: []model.Crop{papaNorte()}},
		changes:   make(chan struct{}, 1),
	}
	st := store.New(memPersister{}, nil)
	defer st.Close()

	p := climsync.New(climsync.Config{
		Crops:           crops,
		Alerts:          &fakeAlerts{},
		Weather:         &fakeWeather{},
		Engine:          recommend.NewEngine(st, recommend.Options{Clock: testutil.NewFixedClock(july)}),
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		// A short interval would refresh crops on its own if the watcher
		// were ignored.
		CropInterval: time.Hour,
	})
	p.Start()
	defer p.Stop()

	nextResult(t, p)

	quinua := model.Crop{ID: "c2", Name: "Quinua Alta", Type: "quinua"}
	crops.set(papaNorte(), quinua)
	crops.changes <- struct{}{}

	msg := nextResult(t, p)
	assert.Equal(t, source.KindCrops, msg.Source)
	assert.Len(t, p.Snapshot().Crops, 2)
}

func TestStop_CancelsInFlightRefresh(t *testing.T) {
	weather := &blockingWeather{started: make(chan struct{})}
	st := store.New(memPersister{}, nil)
	defer st.Close()

	p := climsync.New(climsync.Config{
		Weather:         weather,
		Engine:          recommend.NewEngine(st, recommend.Options{}),
		AlertInterval:   time.Hour,
		WeatherInterval: time.Hour,
		CropInterval:    time.Hour,
	})
	p.Start()

	select {
	case <-weather.started:
	case <-time.After(5 * time.Second):
		t.Fatal("weather refresh never started")
	}
	p.Stop()

	status := statusOf(t, p, source.KindWeather)
	assert.Equal(t, climsync.SyncIdle, status.State)
	assert.NoError(t, status.Error)
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "idle", climsync.SyncIdle.String())
	assert.Equal(t, "running", climsync.SyncRunning.String())
	assert.Equal(t, "error", climsync.SyncError.String())
}
