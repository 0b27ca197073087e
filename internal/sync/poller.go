package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	"github.com/nhle/climate-alerts/internal/source"
)

// SyncState represents the current state of a source refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the refresh state for a single source.
type SyncStatus struct {
	Kind     source.Kind
	State    SyncState
	LastSync time.Time
	Error    error
}

// Stale reports whether the source's last refresh failed, so its data is
// from an earlier successful refresh (or absent).
func (s SyncStatus) Stale() bool {
	return s.State == SyncError
}

// AllSources marks a result that covers every source: the startup pass
// and cycles re-run after a throttle denial.
const AllSources source.Kind = "all"

// SyncResultMsg is a tea.Msg sent after each source refresh and the
// engine cycle that follows it.
type SyncResultMsg struct {
	Source  source.Kind
	Outcome recommend.Outcome
	Error   error
	// Retried is set when the cycle was re-run after a throttle denial
	// without a new refresh.
	Retried bool
}

// fetchTimeout is the maximum time allowed for a single source refresh.
const fetchTimeout = 30 * time.Second

// Default polling intervals.
const (
	DefaultAlertInterval   = 5 * time.Minute
	DefaultWeatherInterval = 15 * time.Minute
	DefaultCropInterval    = time.Minute
)

// Config wires a Poller.
type Config struct {
	Crops   source.CropRegistry
	Alerts  source.AlertFeed
	Weather source.WeatherProvider
	Engine  *recommend.Engine
	Logger  *slog.Logger

	AlertInterval   time.Duration
	WeatherInterval time.Duration
	// CropInterval is used only when Crops does not implement source.Watcher.
	CropInterval time.Duration
}

// Poller refreshes each upstream source on its own timer, keeps the latest
// reading of each, and runs an engine cycle against a consistent snapshot
// after every refresh.
type Poller struct {
	crops   source.CropRegistry
	alerts  source.AlertFeed
	weather source.WeatherProvider
	engine  *recommend.Engine
	logger  *slog.Logger

	intervals map[source.Kind]time.Duration

	mu       gosync.Mutex
	snap     recommend.Snapshot
	statuses map[source.Kind]*SyncStatus
	running  bool
	cancel   context.CancelFunc

	// cycleMu orders snapshot reads with the engine cycle that uses them.
	cycleMu gosync.Mutex

	resultCh  chan SyncResultMsg
	triggerCh map[source.Kind]chan struct{}
	retryCh   chan time.Duration
	wg        gosync.WaitGroup
}

// New creates a Poller. Zero intervals take the defaults.
func New(cfg Config) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	intervals := map[source.Kind]time.Duration{
		source.KindAlerts:  orDefault(cfg.AlertInterval, DefaultAlertInterval),
		source.KindWeather: orDefault(cfg.WeatherInterval, DefaultWeatherInterval),
		source.KindCrops:   orDefault(cfg.CropInterval, DefaultCropInterval),
	}

	p := &Poller{
		crops:     cfg.Crops,
		alerts:    cfg.Alerts,
		weather:   cfg.Weather,
		engine:    cfg.Engine,
		logger:    cfg.Logger,
		intervals: intervals,
		statuses:  make(map[source.Kind]*SyncStatus),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(map[source.Kind]chan struct{}),
		retryCh:   make(chan time.Duration, 1),
	}
	for _, k := range kinds {
		p.statuses[k] = &SyncStatus{Kind: k, State: SyncIdle}
		p.triggerCh[k] = make(chan struct{}, 1)
	}
	return p
}

var kinds = []source.Kind{source.KindCrops, source.KindAlerts, source.KindWeather}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// RefreshAll refreshes every source concurrently, then runs one engine
// cycle. Source failures are recorded in the statuses and joined into the
// returned error; the cycle still runs on whatever data is available.
func (p *Poller) RefreshAll(ctx context.Context) (recommend.Outcome, error) {
	err := p.refreshSources(ctx)
	return p.cycle(), err
}

// refreshSources refreshes every source concurrently and joins the
// failures.
func (p *Poller) refreshSources(ctx context.Context) error {
	var (
		errMu gosync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range kinds {
		g.Go(func() error {
			if err := p.refresh(gctx, k); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Snapshot returns a consistent copy of the latest reading of each source.
func (p *Poller) Snapshot() recommend.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Clone()
}

// LastGenerated returns when the engine last generated, or the zero time.
func (p *Poller) LastGenerated() time.Time {
	if p.engine == nil {
		return time.Time{}
	}
	return p.engine.LastGenerated()
}

// Start refreshes every source once, runs the first engine cycle on the
// complete snapshot, then polls each source on its own interval. A crop
// registry that implements source.Watcher is refreshed on change instead
// of on a timer. The returned tea.Cmd delivers the first SyncResultMsg.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	return p.waitForResult()
}

// run performs the startup pass and then hands over to the per-source
// loops and the retry loop.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	err := p.refreshSources(ctx)
	if ctx.Err() != nil {
		return
	}
	p.sendResult(SyncResultMsg{Source: AllSources, Outcome: p.cycle(), Error: err})

	p.wg.Add(len(kinds) + 1)
	go p.retryLoop(ctx)
	for _, k := range kinds {
		go p.pollSource(ctx, k)
	}
}

// Stop cancels all timers and in-flight refreshes and waits for the polling
// goroutines to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Trigger requests an immediate refresh of every source. It never blocks.
func (p *Poller) Trigger() tea.Cmd {
	for _, ch := range p.triggerCh {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// GetStatuses returns the current refresh status of each source.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(kinds))
	for _, k := range kinds {
		statuses = append(statuses, *p.statuses[k])
	}
	return statuses
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// pollSource runs the polling loop for a single source.
func (p *Poller) pollSource(ctx context.Context, k source.Kind) {
	defer p.wg.Done()

	var tick <-chan time.Time
	var changes <-chan struct{}
	if w, ok := p.crops.(source.Watcher); ok && k == source.KindCrops && w.Changes() != nil {
		changes = w.Changes()
	} else {
		ticker := time.NewTicker(p.intervals[k])
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.refreshAndCycle(ctx, k)
		case <-changes:
			p.refreshAndCycle(ctx, k)
		case <-p.triggerCh[k]:
			p.refreshAndCycle(ctx, k)
		}
	}
}

func (p *Poller) refreshAndCycle(ctx context.Context, k source.Kind) {
	err := p.refresh(ctx, k)
	if ctx.Err() != nil {
		return
	}
	outcome := p.cycle()
	p.sendResult(SyncResultMsg{Source: k, Outcome: outcome, Error: err})
}

// refresh fetches one source and records the reading. On failure the
// previous reading is kept and the source is marked stale.
func (p *Poller) refresh(ctx context.Context, k source.Kind) error {
	p.setStatus(k, SyncRunning, nil)

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var (
		crops   []model.Crop
		alerts  []model.Alert
		weather model.Weather
		err     error
	)
	switch k {
	case source.KindCrops:
		if p.crops == nil {
			break
		}
		crops, err = p.crops.Crops(fctx)
	case source.KindAlerts:
		if p.alerts == nil {
			break
		}
		if err = p.alerts.Refresh(fctx); err == nil {
			alerts = p.alerts.ActiveAlerts()
		}
	case source.KindWeather:
		if p.weather == nil {
			break
		}
		weather, err = p.weather.Current(fctx)
	}

	if err != nil {
		if ctx.Err() != nil {
			// Stopped mid-refresh; not a source failure.
			p.mu.Lock()
			p.statuses[k].State = SyncIdle
			p.mu.Unlock()
			return err
		}
		if !errors.Is(err, source.ErrUnavailable) {
			err = source.Unavailable(k, err)
		}
		p.logger.Warn("source refresh failed, keeping previous data", "source", k, "error", err)
		p.setStatus(k, SyncError, err)
		return err
	}

	p.mu.Lock()
	switch k {
	case source.KindCrops:
		if p.crops != nil {
			p.snap.Crops = crops
		}
	case source.KindAlerts:
		if p.alerts != nil {
			p.snap.Alerts = alerts
		}
	case source.KindWeather:
		if p.weather != nil {
			p.snap.Weather = &weather
		}
	}
	p.mu.Unlock()

	p.setStatus(k, SyncIdle, nil)
	return nil
}

// retryLoop re-runs the engine cycle once a throttle interval has passed,
// so a change denied by the throttle is not left waiting for the next
// refresh.
func (p *Poller) retryLoop(ctx context.Context) {
	defer p.wg.Done()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.retryCh:
			if fire == nil {
				timer = time.NewTimer(d)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			p.sendResult(SyncResultMsg{Source: AllSources, Outcome: p.cycle(), Retried: true})
		}
	}
}

// cycle runs the engine on the current snapshot. Cycles are serialized so
// the engine never sees an older snapshot after a newer one. A throttled
// cycle schedules a retry.
func (p *Poller) cycle() recommend.Outcome {
	if p.engine == nil {
		return recommend.Outcome{}
	}
	p.cycleMu.Lock()
	outcome := p.engine.Sync(p.Snapshot())
	p.cycleMu.Unlock()

	if outcome.Skip == recommend.SkipThrottled {
		select {
		case p.retryCh <- outcome.RetryAfter:
		default:
		}
	}
	return outcome
}

// setStatus updates the refresh status for a source.
func (p *Poller) setStatus(k source.Kind, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.statuses[k]
	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
