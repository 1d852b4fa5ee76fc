// Package sync runs the reminder polling loop: it fetches the medication
// directory and dose ledger on a fixed interval, evaluates due reminders
// and hands fire decisions to the emitter.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/clock"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/reminder"
)

// ErrNotRunning is returned by operations that need an active session.
var ErrNotRunning = errors.New("poller is not running")

// ErrNotResolution is returned when asked to resolve a dose to PENDING.
var ErrNotResolution = errors.New("status does not resolve a dose")

// defaultFetchTimeout is the maximum time allowed for one directory and
// ledger fetch.
const defaultFetchTimeout = 30 * time.Second

// State represents the current state of the polling loop.
type State int

const (
	StateStopped State = iota
	StateIdle
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "polling"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the poller's health.
type Status struct {
	State       State
	LastSuccess time.Time
	Error       error
}

// PollResultMsg is a tea.Msg sent after every evaluation pass.
type PollResultMsg struct {
	Day string

	// Schedule is today's categorized schedule. On a failed pass it is
	// rebuilt from the last stored snapshot when one exists.
	Schedule *reminder.DaySchedule

	// Stale is true when Schedule came from a stored snapshot.
	Stale bool

	// Pending lists every due, unresolved occurrence.
	Pending []reminder.Occurrence

	// Fired holds the notifications emitted during the pass.
	Fired []model.Notification

	// AutoMissed is how many doses were marked MISSED by the cutoff.
	AutoMissed int

	// FetchedAt is when the directory data behind Schedule was fetched.
	FetchedAt time.Time

	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg describes an expired or rejected session.
type AuthErrorMsg struct {
	Message string
}

// Directory is the remote medication directory and dose ledger.
// *api.Client satisfies it.
type Directory interface {
	FetchActiveMedications(ctx context.Context) ([]model.Medication, error)
	FetchTodayDoseRecords(ctx context.Context, day string) ([]model.DoseRecord, error)
	CreateDoseRecord(
		ctx context.Context,
		medicationID string,
		scheduledTime time.Time,
		status model.DoseStatus,
		notes string,
	) (model.DoseRecord, error)
	ResolveDose(
		ctx context.Context,
		id string,
		status model.DoseStatus,
		notes string,
	) (model.DoseRecord, error)
}

// Emitter turns fire decisions into notifications.
type Emitter interface {
	Emit(f reminder.Fire) model.Notification
}

// ActiveReminder is the inbox's active-reminder slot.
type ActiveReminder interface {
	DismissActive(medicationID, day, doseTime string) bool
}

// SnapshotCache stores the last fetched directory and ledger state.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context, day string) (*model.Snapshot, error)
	PruneSnapshots(ctx context.Context, keepDay string) error
}

// Config holds the poller's cadences.
type Config struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	FetchTimeout    time.Duration

	// AutoMissAfter marks a pending dose MISSED once this long has passed
	// since its scheduled time. Zero disables the transition.
	AutoMissAfter time.Duration
}

// Deps are the poller's collaborators. Cache and Active are optional.
type Deps struct {
	Directory Directory
	Clock     *clock.Clock
	Evaluator *reminder.Evaluator
	Emitter   Emitter
	Active    ActiveReminder
	Cache     SnapshotCache
	Logger    *zap.Logger
}

// Poller owns the reminder tracking state and the poll and cleanup loops.
type Poller struct {
	dir     Directory
	clock   *clock.Clock
	eval    *reminder.Evaluator
	tracker *reminder.Tracker
	emitter Emitter
	active  ActiveReminder
	cache   SnapshotCache
	logger  *zap.Logger
	cfg     Config

	resultCh  chan PollResultMsg
	triggerCh chan struct{}

	// lifeMu serializes Start and Stop.
	lifeMu  gosync.Mutex
	cancel  context.CancelFunc
	loops   gosync.WaitGroup
	running bool

	mu     gosync.Mutex
	status Status
}

// New creates a stopped Poller.
func New(deps Deps, cfg Config) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = reminder.DefaultPollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = reminder.DefaultCleanupInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.AutoMissAfter < 0 {
		cfg.AutoMissAfter = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		dir:       deps.Directory,
		clock:     deps.Clock,
		eval:      deps.Evaluator,
		tracker:   reminder.NewTracker(),
		emitter:   deps.Emitter,
		active:    deps.Active,
		cache:     deps.Cache,
		logger:    logger,
		cfg:       cfg,
		resultCh:  make(chan PollResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start begins polling: one pass runs immediately, then one per poll
// interval, with an independent cleanup loop. The returned command waits
// for the first PollResultMsg. Starting a running poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	p.setState(StateIdle, nil)

	p.loops.Add(2)
	go p.pollLoop(ctx)
	go p.cleanupLoop(ctx)

	p.logger.Info("reminder polling started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("repeat_interval", p.eval.RepeatInterval()),
	)
	return p.waitForResult()
}

// Stop halts both loops, waits for them to exit and discards all tracking
// state so the next session starts clean. A side effect already handed off
// before Stop may still surface.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.loops.Wait()
	p.running = false
	p.tracker.Reset()
	p.drainResults()
	p.setState(StateStopped, nil)

	p.logger.Info("reminder polling stopped")
}

// Run starts the poller and blocks until ctx is done, then stops it.
func (p *Poller) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	p.Stop()
	return nil
}

// Running reports whether the loops are active.
func (p *Poller) Running() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.running
}

// Refresh asks for an immediate evaluation pass.
func (p *Poller) Refresh() error {
	if !p.Running() {
		return ErrNotRunning
	}
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A pass is already queued.
	}
	return nil
}

// Status returns the current poller status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Tracker exposes the reminder tracking state.
func (p *Poller) Tracker() *reminder.Tracker {
	return p.tracker
}

// pollLoop runs one pass immediately and then on every tick or trigger.
func (p *Poller) pollLoop(ctx context.Context) {
	defer p.loops.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		case <-p.triggerCh:
			p.tick(ctx)
		}
	}
}

// cleanupLoop purges tracking entries from previous days.
func (p *Poller) cleanupLoop(ctx context.Context) {
	defer p.loops.Done()

	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

func (p *Poller) cleanup(ctx context.Context) {
	today := p.clock.Today()
	removed := p.tracker.PurgeStale(today)
	if removed > 0 {
		p.logger.Debug("purged stale reminder keys",
			zap.String("day", today),
			zap.Int("removed", removed),
		)
	}

	if p.cache != nil {
		if err := p.cache.PruneSnapshots(ctx, today); err != nil {
			p.logger.Warn("pruning snapshots", zap.Error(err))
		}
	}
}

// tick performs one fetch and evaluation pass and publishes the result.
func (p *Poller) tick(ctx context.Context) {
	p.setState(StateRunning, nil)

	now := p.clock.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	meds, doses, err := p.fetch(fetchCtx, now.Day)
	cancel()

	// Stopped mid-fetch: no side effects after Stop.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.fetchFailed(ctx, now, err)
		return
	}

	result := p.eval.Evaluate(now, meds, doses, p.tracker)

	// Resolved from another view or device.
	if p.active != nil {
		for _, k := range result.Resolved {
			p.active.DismissActive(k.MedicationID, k.Day, k.ScheduledTime)
		}
	}

	var missed []model.DoseRecord
	pending := result.Pending[:0:0]
	for _, occ := range result.Pending {
		if !p.pastCutoff(now, occ) {
			pending = append(pending, occ)
			continue
		}
		rec, err := p.Resolve(ctx, occ, model.DoseStatusMissed, autoMissNote(p.cfg.AutoMissAfter))
		if err != nil {
			p.logger.Warn("auto-marking dose missed",
				zap.String("medication_id", occ.Key.MedicationID),
				zap.String("dose_time", occ.ScheduledTime),
				zap.Error(err),
			)
			pending = append(pending, occ)
			continue
		}
		missed = append(missed, rec)
	}

	var fired []model.Notification
	for _, f := range result.Fires {
		if p.pastCutoff(now, f.Occurrence) {
			continue
		}
		fired = append(fired, p.emitter.Emit(f))
	}

	doses = mergeRecords(doses, missed)
	schedule := p.eval.BuildSchedule(now, meds, doses)

	if p.cache != nil {
		snap := model.Snapshot{Day: now.Day, Medications: meds, Doses: doses, FetchedAt: now.Time}
		if err := p.cache.SaveSnapshot(ctx, snap); err != nil {
			p.logger.Warn("saving schedule snapshot", zap.Error(err))
		}
	}

	p.mu.Lock()
	p.status = Status{State: StateIdle, LastSuccess: now.Time}
	p.mu.Unlock()

	p.logger.Debug("poll pass complete",
		zap.String("day", now.Day),
		zap.Int("pending", len(pending)),
		zap.Int("fired", len(fired)),
		zap.Int("auto_missed", len(missed)),
	)

	p.sendResult(PollResultMsg{
		Day:        now.Day,
		Schedule:   &schedule,
		Pending:    pending,
		Fired:      fired,
		AutoMissed: len(missed),
		FetchedAt:  now.Time,
	})
}

// fetch loads the directory and the ledger concurrently.
func (p *Poller) fetch(ctx context.Context, day string) ([]model.Medication, []model.DoseRecord, error) {
	var (
		meds  []model.Medication
		doses []model.DoseRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meds, err = p.dir.FetchActiveMedications(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		doses, err = p.dir.FetchTodayDoseRecords(gctx, day)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return meds, doses, nil
}

// fetchFailed aborts the pass. The schedule falls back to the stored
// snapshot for display only; nothing fires from stale data.
func (p *Poller) fetchFailed(ctx context.Context, now clock.Reading, err error) {
	p.logger.Warn("poll fetch failed", zap.String("day", now.Day), zap.Error(err))
	p.setState(StateError, err)

	msg := PollResultMsg{Day: now.Day, Error: err}
	if api.IsAuthError(err) {
		msg.AuthError = &AuthErrorMsg{
			Message: "Session expired. Press 'L' to sign in again.",
		}
	}

	if p.cache != nil {
		snap, cacheErr := p.cache.LoadSnapshot(ctx, now.Day)
		if cacheErr == nil && snap != nil {
			schedule := p.eval.BuildSchedule(now, snap.Medications, snap.Doses)
			msg.Schedule = &schedule
			msg.Stale = true
			msg.FetchedAt = snap.FetchedAt
		}
	}

	p.sendResult(msg)
}

// pastCutoff reports whether an unresolved occurrence should be marked
// MISSED instead of notified.
func (p *Poller) pastCutoff(now clock.Reading, occ reminder.Occurrence) bool {
	if p.cfg.AutoMissAfter <= 0 {
		return false
	}
	return !now.Time.Before(occ.At.Add(p.cfg.AutoMissAfter))
}

func autoMissNote(after time.Duration) string {
	return fmt.Sprintf("Automatically marked missed %s after the scheduled time", after)
}

// mergeRecords overlays updated records onto the fetched ledger.
func mergeRecords(doses, updated []model.DoseRecord) []model.DoseRecord {
	if len(updated) == 0 {
		return doses
	}
	out := make([]model.DoseRecord, 0, len(doses)+len(updated))
	replaced := make(map[string]bool, len(updated))
	for _, u := range updated {
		replaced[u.ID] = true
	}
	for _, d := range doses {
		if d.ID != "" && replaced[d.ID] {
			continue
		}
		out = append(out, d)
	}
	return append(out, updated...)
}

// setState updates the poller status.
func (p *Poller) setState(state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
}

// sendResult sends a PollResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg PollResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// drainResults discards results buffered by the stopped session so the
// next session's first wait sees its own pass.
func (p *Poller) drainResults() {
	for {
		select {
		case <-p.resultCh:
		default:
			return
		}
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

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// This should be called after processing a PollResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// Results exposes the result channel to consumers outside Bubble Tea.
func (p *Poller) Results() <-chan PollResultMsg {
	return p.resultCh
}
