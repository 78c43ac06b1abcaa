package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"markestedt/macroflow/action"
	"markestedt/macroflow/platform"
)

var (
	ErrAlreadyRunning  = errors.New("macro is already running")
	ErrNotRunning      = errors.New("macro is not running")
	ErrNoActions       = errors.New("macro has no actions")
	ErrRunning         = errors.New("cannot edit a running macro")
	ErrIndexOutOfRange = errors.New("action index out of range")
)

// DefaultStopTimeout bounds how long Stop waits for the worker
const DefaultStopTimeout = time.Second

// State is the engine lifecycle state
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason explains why a run ended
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonStopped   Reason = "stopped"
	ReasonHotkey    Reason = "hotkey"
	ReasonError     Reason = "error"
)

// Companion is a background helper whose lifetime is bound to one run
type Companion interface {
	Start(ctx context.Context) error
	Stop()
}

// Status is a snapshot of the engine published on every transition and step
type Status struct {
	State       State  `json:"state"`
	RunID       string `json:"run_id,omitempty"`
	Macro       string `json:"macro,omitempty"`
	Iteration   int    `json:"iteration"`
	LoopCount   int    `json:"loop_count"`
	ActionIndex int    `json:"action_index"`
	ActionName  string `json:"action_name,omitempty"`
	Executed    int    `json:"executed"`
	Failed      int    `json:"failed"`
	Reason      Reason `json:"reason,omitempty"`
}

// RunSummary is the record of one finished run
type RunSummary struct {
	ID         string    `json:"id"`
	Macro      string    `json:"macro"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LoopCount  int       `json:"loop_count"`
	Iterations int       `json:"iterations"`
	Executed   int       `json:"executed"`
	Failed     int       `json:"failed"`
	Reason     Reason    `json:"reason"`
}

// Options wires the engine to its collaborators
type Options struct {
	Env         *action.Env
	Hotkey      platform.Hotkey
	Logger      *slog.Logger
	StopTimeout time.Duration
}

// Engine owns an action list and plays it back on one worker goroutine
type Engine struct {
	env         *action.Env
	hotkey      platform.Hotkey
	logger      *slog.Logger
	stopTimeout time.Duration

	mu         sync.Mutex
	name       string
	actions    []action.Action
	delay      int
	loopCount  int
	stopKey    string
	companions []Companion

	state      State
	status     Status
	startedAt  time.Time
	cancel     context.CancelFunc
	resume     chan struct{}
	done       chan struct{}
	finished   chan struct{}
	finishOnce *sync.Once
	stopReason Reason
	running    []action.Action
	bound      []Companion

	subscribers []func(Status)
	onFinish    []func(RunSummary)
}

// NewEngine creates an idle engine with default settings
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := opts.Env
	if env == nil {
		env = &action.Env{}
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	done := make(chan struct{})
	close(done)

	return &Engine{
		env:         env,
		hotkey:      opts.Hotkey,
		logger:      logger.With("component", "engine"),
		stopTimeout: stopTimeout,
		delay:       DefaultDelay,
		loopCount:   DefaultLoopCount,
		stopKey:     DefaultStopKey,
		done:        done,
		finished:    done,
	}
}

// AddCompanion binds c to every following run
func (e *Engine) AddCompanion(c Companion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.companions = append(e.companions, c)
}

// Companions returns the companions bound to following runs
func (e *Engine) Companions() []Companion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Companion(nil), e.companions...)
}

// ClearCompanions removes all companions
func (e *Engine) ClearCompanions() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.companions = nil
}

// Subscribe registers fn for status updates. fn runs on engine goroutines
// and must not call back into the engine.
func (e *Engine) Subscribe(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// OnFinish registers fn to receive the summary of every finished run
func (e *Engine) OnFinish(fn func(RunSummary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinish = append(e.onFinish, fn)
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns the current status snapshot
func (e *Engine) Stats() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Done is closed when the current (or last) run has fully finished
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Name returns the macro name used in run records
func (e *Engine) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// SetName sets the macro name used in run records
func (e *Engine) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.name = name
}

// Start begins playback on a worker goroutine
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()

	if e.active() {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(e.actions) == 0 {
		e.mu.Unlock()
		return ErrNoActions
	}

	runCtx, cancel := context.WithCancel(ctx)
	actions := append([]action.Action(nil), e.actions...)
	companions := append([]Companion(nil), e.companions...)
	delay := time.Duration(e.delay) * time.Millisecond
	loopCount := e.loopCount
	stopKey := e.stopKey

	e.state = Running
	e.cancel = cancel
	e.resume = nil
	e.done = make(chan struct{})
	e.finished = make(chan struct{})
	e.finishOnce = &sync.Once{}
	e.stopReason = ""
	e.running = nil
	e.bound = nil
	e.startedAt = time.Now()
	e.status = Status{
		RunID:     uuid.NewString(),
		Macro:     e.name,
		LoopCount: loopCount,
	}
	done := e.done
	e.mu.Unlock()

	action.Reset(actions)
	if err := e.begin(runCtx, actions, companions); err != nil {
		cancel()
		close(done)
		e.finish(ReasonError)
		e.logger.Error("Macro failed to start", "error", err)
		return err
	}

	e.mu.Lock()
	e.running = actions
	e.bound = companions
	e.mu.Unlock()

	e.listenStopKey(runCtx, stopKey)

	e.logger.Info("Macro started", "actions", len(actions), "loop_count", loopCount, "delay_ms", delay.Milliseconds(), "stop_key", stopKey)
	e.publish()

	go e.work(runCtx, actions, delay, loopCount, done)
	return nil
}

// begin starts companions and per-run action state, undoing on failure
func (e *Engine) begin(ctx context.Context, actions []action.Action, companions []Companion) error {
	var started []action.Starter
	for _, a := range actions {
		s, ok := a.(action.Starter)
		if !ok {
			continue
		}
		if err := s.Begin(ctx, e.env); err != nil {
			for _, prev := range started {
				prev.End(e.env)
			}
			return fmt.Errorf("failed to prepare %s: %w", a.Label(), err)
		}
		started = append(started, s)
	}

	for i, c := range companions {
		if err := c.Start(ctx); err != nil {
			for _, prev := range companions[:i] {
				prev.Stop()
			}
			for _, s := range started {
				s.End(e.env)
			}
			return fmt.Errorf("failed to start companion: %w", err)
		}
	}

	return nil
}

// listenStopKey stops the run when the stop key is pressed
func (e *Engine) listenStopKey(ctx context.Context, stopKey string) {
	if e.hotkey == nil || stopKey == "" {
		return
	}

	combo, err := platform.ParseHotkey(stopKey)
	if err != nil {
		e.logger.Warn("Invalid stop key, hotkey stop disabled", "stop_key", stopKey, "error", err)
		return
	}

	events, err := e.hotkey.Listen(ctx, combo)
	if err != nil {
		e.logger.Warn("Failed to listen for stop key", "stop_key", stopKey, "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if evt.Type == platform.Pressed {
					e.logger.Info("Stop key pressed", "stop_key", stopKey)
					e.stop(ReasonHotkey)
					return
				}
			}
		}
	}()
}

func (e *Engine) work(ctx context.Context, actions []action.Action, delay time.Duration, loopCount int, done chan struct{}) {
	completed := false
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Macro worker panicked", "panic", r)
			e.setStopReason(ReasonError)
		}
		// Settled before done closes; Stop only fills an empty reason
		if completed {
			e.setStopReason(ReasonCompleted)
		} else {
			e.setStopReason(ReasonStopped)
		}
		close(done)
		e.finish("")
	}()

	for iter := 1; loopCount <= 0 || iter <= loopCount; iter++ {
		e.mu.Lock()
		e.status.Iteration = iter
		e.mu.Unlock()

		e.logger.Debug("Iteration started", "iteration", iter, "loop_count", loopCount)

		for i, a := range actions {
			if !e.waitIfPaused(ctx) {
				return
			}

			e.mu.Lock()
			e.status.ActionIndex = i
			e.status.ActionName = a.Label()
			e.mu.Unlock()
			e.publish()

			ok := action.Run(ctx, a, e.env)
			if ctx.Err() != nil {
				return
			}

			e.mu.Lock()
			e.status.Executed++
			if !ok {
				e.status.Failed++
			}
			e.mu.Unlock()

			if !ok {
				e.logger.Warn("Action failed, continuing", "index", i, "action", a.Label())
			}

			if !sleep(ctx, delay) {
				return
			}
		}
	}
	completed = true
}

// waitIfPaused blocks while paused. It reports false once the run is cancelled.
func (e *Engine) waitIfPaused(ctx context.Context) bool {
	for {
		e.mu.Lock()
		resume := e.resume
		e.mu.Unlock()

		if resume == nil {
			return ctx.Err() == nil
		}

		select {
		case <-resume:
		case <-ctx.Done():
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Pause holds the worker before its next action
func (e *Engine) Pause() error {
	e.mu.Lock()
	switch e.state {
	case Paused:
		e.mu.Unlock()
		return nil
	case Running:
	default:
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.state = Paused
	e.resume = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info("Macro paused")
	e.publish()
	return nil
}

// Resume releases a paused worker
func (e *Engine) Resume() error {
	e.mu.Lock()
	switch e.state {
	case Running:
		e.mu.Unlock()
		return nil
	case Paused:
	default:
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.state = Running
	close(e.resume)
	e.resume = nil
	e.mu.Unlock()

	e.logger.Info("Macro resumed")
	e.publish()
	return nil
}

// Stop cancels the run and waits a bounded time for the worker to exit
func (e *Engine) Stop() error {
	return e.stop(ReasonStopped)
}

func (e *Engine) stop(reason Reason) error {
	e.mu.Lock()
	if !e.active() {
		e.mu.Unlock()
		return ErrNotRunning
	}
	if e.stopReason == "" {
		e.stopReason = reason
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	e.logger.Info("Stopping macro", "reason", reason)
	cancel()

	select {
	case <-done:
	case <-time.After(e.stopTimeout):
		e.logger.Warn("Macro worker did not stop in time", "timeout", e.stopTimeout)
	}

	e.finish(reason)
	return nil
}

func (e *Engine) setStopReason(r Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopReason == "" {
		e.stopReason = r
	}
}

// finish tears a run down exactly once, whichever path gets here first
func (e *Engine) finish(fallback Reason) {
	e.mu.Lock()
	once := e.finishOnce
	e.mu.Unlock()
	if once == nil {
		return
	}

	once.Do(func() {
		e.mu.Lock()
		reason := e.stopReason
		if reason == "" {
			reason = fallback
		}
		if reason == "" {
			reason = ReasonCompleted
		}
		cancel := e.cancel
		actions := e.running
		companions := e.bound
		if e.resume != nil {
			close(e.resume)
			e.resume = nil
		}
		e.mu.Unlock()

		cancel()

		for _, c := range companions {
			c.Stop()
		}
		for _, a := range actions {
			if s, ok := a.(action.Starter); ok {
				s.End(e.env)
			}
		}

		e.mu.Lock()
		e.state = Stopped
		e.status.Reason = reason
		e.running = nil
		e.bound = nil
		summary := RunSummary{
			ID:         e.status.RunID,
			Macro:      e.status.Macro,
			StartedAt:  e.startedAt,
			FinishedAt: time.Now(),
			LoopCount:  e.status.LoopCount,
			Iterations: e.status.Iteration,
			Executed:   e.status.Executed,
			Failed:     e.status.Failed,
			Reason:     reason,
		}
		hooks := append([]func(RunSummary){}, e.onFinish...)
		finished := e.finished
		e.mu.Unlock()

		e.logger.Info("Macro finished",
			"reason", reason,
			"iterations", summary.Iterations,
			"executed", summary.Executed,
			"failed", summary.Failed,
			"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

		e.publish()
		for _, fn := range hooks {
			fn(summary)
		}
		close(finished)
	})
}

func (e *Engine) snapshotLocked() Status {
	s := e.status
	s.State = e.state
	return s
}

func (e *Engine) publish() {
	e.mu.Lock()
	s := e.snapshotLocked()
	subs := append([]func(Status){}, e.subscribers...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
