package macro

import (
	"path/filepath"
	"strings"

	"markestedt/macroflow/action"
)

func (e *Engine) active() bool {
	return e.state == Running || e.state == Paused
}

// Add appends an action
func (e *Engine) Add(a action.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	e.actions = append(e.actions, a)
	return nil
}

// Replace swaps the action at index i
func (e *Engine) Replace(i int, a action.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	if i < 0 || i >= len(e.actions) {
		return ErrIndexOutOfRange
	}
	e.actions[i] = a
	return nil
}

// Remove deletes the action at index i
func (e *Engine) Remove(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	if i < 0 || i >= len(e.actions) {
		return ErrIndexOutOfRange
	}
	e.actions = append(e.actions[:i], e.actions[i+1:]...)
	return nil
}

// MoveUp swaps the action at i with its predecessor
func (e *Engine) MoveUp(i int) error {
	return e.swap(i, i-1)
}

// MoveDown swaps the action at i with its successor
func (e *Engine) MoveDown(i int) error {
	return e.swap(i, i+1)
}

func (e *Engine) swap(i, j int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	if i < 0 || i >= len(e.actions) || j < 0 || j >= len(e.actions) {
		return ErrIndexOutOfRange
	}
	e.actions[i], e.actions[j] = e.actions[j], e.actions[i]
	return nil
}

// Action returns the action at index i
func (e *Engine) Action(i int) (action.Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.actions) {
		return nil, ErrIndexOutOfRange
	}
	return e.actions[i], nil
}

// Actions returns a copy of the action list
func (e *Engine) Actions() []action.Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]action.Action(nil), e.actions...)
}

// Clear removes every action
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	e.actions = nil
	return nil
}

// SetDelay sets the pause between actions in milliseconds
func (e *Engine) SetDelay(ms int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = max(ms, 0)
}

// SetLoopCount sets how often the list runs. Zero or less loops forever.
func (e *Engine) SetLoopCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loopCount = n
}

// SetStopKey sets the global key that stops a run
func (e *Engine) SetStopKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopKey = strings.ToLower(strings.TrimSpace(key))
}

// Settings returns delay, loop count and stop key
func (e *Engine) Settings() (delay, loopCount int, stopKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay, e.loopCount, e.stopKey
}

// Document snapshots the engine as a serializable document
func (e *Engine) Document() *Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Document{
		Version:   DocumentVersion,
		Delay:     e.delay,
		LoopCount: e.loopCount,
		StopKey:   e.stopKey,
		Actions:   append([]action.Action{}, e.actions...),
	}
}

// LoadDocument replaces the action list and settings
func (e *Engine) LoadDocument(doc *Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active() {
		return ErrRunning
	}
	e.actions = append([]action.Action(nil), doc.Actions...)
	e.delay = max(doc.Delay, 0)
	e.loopCount = doc.LoopCount
	e.stopKey = strings.ToLower(doc.StopKey)
	if e.stopKey == "" {
		e.stopKey = DefaultStopKey
	}
	return nil
}

// SaveFile writes the engine state to path
func (e *Engine) SaveFile(path string) error {
	if err := e.Document().WriteFile(path); err != nil {
		return err
	}
	e.logger.Info("Macro saved", "path", path)
	return nil
}

// LoadFile replaces the engine state with the document at path
func (e *Engine) LoadFile(path string) (*Document, error) {
	doc, err := ReadFile(path, e.logger)
	if err != nil {
		return nil, err
	}
	if err := e.LoadDocument(doc); err != nil {
		return nil, err
	}
	e.SetName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	e.logger.Info("Macro loaded", "path", path, "actions", len(doc.Actions), "skipped", len(doc.Skipped))
	return doc, nil
}
