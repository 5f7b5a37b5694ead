package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lernguide/internal/bridge"
	"lernguide/internal/logging"
	"lernguide/internal/metrics"
	"lernguide/internal/models"
	"lernguide/internal/notify"
	"lernguide/internal/store"
)

// Phase is the controller's position in the persistence lifecycle.
type Phase string

const (
	PhaseUninitialized      Phase = "uninitialized"
	PhaseChecking           Phase = "checkingForPriorSession"
	PhaseAwaitingUserChoice Phase = "awaitingUserChoice"
	PhaseNoPriorSession     Phase = "noPriorSession"
	PhaseActive             Phase = "active"
	PhaseResetting          Phase = "resetting"
)

// QuotaNotificationKey identifies the sticky storage-full warning.
const QuotaNotificationKey = "storage-quota"

var (
	ErrSessionPending = errors.New("prior session check or choice still pending")
	ErrNoPriorSession = errors.New("no prior session is awaiting a choice")
	ErrAlreadyStarted = errors.New("session controller already started")
	ErrClosed         = errors.New("session controller closed")
)

// ReconstructionError reports a snapshot that could not be turned back into live state.
type ReconstructionError struct {
	Source string // "continue" or "import"
	Err    error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("restore session from %s: %v", e.Source, e.Err)
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

type Options struct {
	// Debounce delays a save after the first change so bursts coalesce.
	Debounce    time.Duration
	SaveTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	Notifier    *notify.Center
}

// Controller owns the authoritative live state and is the only writer of the
// stored snapshot. All writes go through one persister goroutine.
type Controller struct {
	store       *store.Store
	notes       *notify.Center
	log         *logging.Logger
	metrics     *metrics.Metrics
	debounce    time.Duration
	saveTimeout time.Duration

	mu                sync.Mutex
	phase             Phase
	state             State
	candidate         *models.SessionSnapshot
	resolved          bool
	ready             chan struct{}
	quotaExceeded     bool
	unavailableWarned bool
	savedVersion      uint64
	hasSaved          bool

	saveCh    chan struct{}
	reqCh     chan request
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type requestKind int

const (
	requestFlush requestKind = iota
	requestClear
)

type request struct {
	kind   requestKind
	result chan error
}

// New creates a controller and starts its persister.
func New(st *store.Store, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewCenter(0)
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 10 * time.Second
	}
	c := &Controller{
		store:       st,
		notes:       opts.Notifier,
		log:         opts.Logger.Named("session"),
		metrics:     opts.Metrics,
		debounce:    opts.Debounce,
		saveTimeout: opts.SaveTimeout,
		phase:       PhaseUninitialized,
		state:       DefaultState(),
		ready:       make(chan struct{}),
		saveCh:      make(chan struct{}, 1),
		reqCh:       make(chan request),
		done:        make(chan struct{}),
	}
	c.wg.Add(1)
	go c.runPersister()
	return c
}

// Notifications exposes the center used for user-facing messages.
func (c *Controller) Notifications() *notify.Center { return c.notes }

// Start looks for a prior session. A stored snapshot with a non-transient
// screen is held as a candidate and returned; live state is not touched.
func (c *Controller) Start(ctx context.Context) (*models.SessionSnapshot, error) {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.phase = PhaseChecking
	c.mu.Unlock()

	snap := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap != nil && !snap.ScreenState.IsTransient() {
		c.candidate = snap
		c.phase = PhaseAwaitingUserChoice
		c.log.Info("prior session found",
			zap.String("screen", string(snap.ScreenState)),
			zap.Int("scriptDocuments", len(snap.ScriptDocuments)))
		return snap, nil
	}
	c.phase = PhaseNoPriorSession
	c.state = DefaultState()
	c.resolveLocked()
	return nil, nil
}

// PriorSession returns the snapshot awaiting a continue/new choice, if any.
func (c *Controller) PriorSession() *models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate
}

// Continue adopts the candidate snapshot. On failure the candidate is dropped,
// storage is cleared and a fresh session starts.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseAwaitingUserChoice || c.candidate == nil {
		c.mu.Unlock()
		return ErrNoPriorSession
	}
	candidate := c.candidate
	c.mu.Unlock()

	st, err := restoreState(candidate)
	if err != nil {
		recErr := &ReconstructionError{Source: "continue", Err: err}
		c.log.Warn("continue failed, starting fresh", zap.Error(recErr))
		c.metrics.ObserveRestore("continue", "error")
		c.notes.Push(notify.LevelWarning, "The previous session could not be restored. A new session was started.")
		c.startFresh(ctx)
		return recErr
	}

	c.mu.Lock()
	if c.phase != PhaseAwaitingUserChoice || c.candidate != candidate {
		c.mu.Unlock()
		return ErrNoPriorSession
	}
	c.commitRestoredLocked(st)
	c.mu.Unlock()

	c.metrics.ObserveRestore("continue", "ok")
	c.signalSave()
	return nil
}

// StartNew discards any candidate and stored snapshot and starts fresh.
func (c *Controller) StartNew(ctx context.Context) {
	c.startFresh(ctx)
}

// Reset clears storage and returns to a fresh session from any phase.
func (c *Controller) Reset(ctx context.Context) {
	c.log.Info("session reset")
	c.startFresh(ctx)
}

func (c *Controller) startFresh(ctx context.Context) {
	c.mu.Lock()
	c.phase = PhaseResetting
	c.candidate = nil
	c.state = DefaultState()
	c.mu.Unlock()

	if err := c.request(ctx, requestClear); err != nil {
		c.log.Warn("clear through persister failed, clearing directly", zap.Error(err))
		c.store.Clear(ctx)
	}

	c.mu.Lock()
	c.phase = PhaseNoPriorSession
	c.hasSaved = false
	c.resolveLocked()
	c.mu.Unlock()
}

// Import replaces live state with a user-supplied session file. Any failure
// leaves live state untouched.
func (c *Controller) Import(ctx context.Context, filename, declaredType string, content []byte) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseUninitialized, PhaseChecking, PhaseResetting:
		c.mu.Unlock()
		return ErrSessionPending
	}
	c.mu.Unlock()

	snap, err := bridge.Import(filename, declaredType, content)
	if err != nil {
		c.log.Warn("import rejected", zap.String("file", filename), zap.Error(err))
		c.metrics.ObserveRestore("import", "rejected")
		c.notes.Push(notify.LevelWarning, "The selected file is not a valid session file.")
		return err
	}
	st, err := restoreState(snap)
	if err != nil {
		recErr := &ReconstructionError{Source: "import", Err: err}
		c.log.Warn("import reconstruction failed", zap.String("file", filename), zap.Error(recErr))
		c.metrics.ObserveRestore("import", "error")
		c.notes.Push(notify.LevelWarning, "The session file could not be restored.")
		return recErr
	}

	c.mu.Lock()
	if c.phase == PhaseResetting {
		c.mu.Unlock()
		return ErrSessionPending
	}
	c.commitRestoredLocked(st)
	c.mu.Unlock()

	c.metrics.ObserveRestore("import", "ok")
	c.notes.Push(notify.LevelSuccess, "Session imported.")
	c.signalSave()
	return nil
}

func (c *Controller) commitRestoredLocked(st State) {
	st.Version = c.state.Version + 1
	c.state = st
	c.candidate = nil
	c.phase = PhaseActive
	c.hasSaved = false
	c.resolveLocked()
}

// Export returns the live state as an indented JSON document and its file name.
// It has no effect on storage.
func (c *Controller) Export(now time.Time) ([]byte, string, error) {
	st := c.State()
	data, err := bridge.Export(st.Snapshot())
	if err != nil {
		return nil, "", err
	}
	return data, bridge.FileName(now), nil
}

// State returns a copy of the live state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Resolved reports whether the prior-session check and any choice are complete.
func (c *Controller) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// WaitReady blocks until Resolved would report true.
func (c *Controller) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// QuotaExceeded reports whether the last save was rejected for size.
func (c *Controller) QuotaExceeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quotaExceeded
}

func (c *Controller) resolveLocked() {
	if !c.resolved {
		c.resolved = true
		close(c.ready)
	}
}

// Update applies fn to a copy of the live state and commits it if the result
// is valid. A fresh session becomes active on its first change.
func (c *Controller) Update(fn func(*State) error) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseUninitialized, PhaseChecking, PhaseAwaitingUserChoice, PhaseResetting:
		c.mu.Unlock()
		return ErrSessionPending
	}
	next := c.state.clone()
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := next.validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	next.Version = c.state.Version + 1
	c.state = next
	if c.phase == PhaseNoPriorSession {
		c.phase = PhaseActive
	}
	c.mu.Unlock()

	c.signalSave()
	return nil
}

// Flush saves the latest state now and returns the save error, if any.
func (c *Controller) Flush(ctx context.Context) error {
	return c.request(ctx, requestFlush)
}

// Close flushes pending changes and stops the persister.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Flush(ctx)
		close(c.done)
		c.wg.Wait()
	})
	return err
}

func (c *Controller) signalSave() {
	select {
	case c.saveCh <- struct{}{}:
	default:
	}
}

func (c *Controller) request(ctx context.Context, kind requestKind) error {
	req := request{kind: kind, result: make(chan error, 1)}
	select {
	case c.reqCh <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
