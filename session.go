package main

import (
	"context"
	"fmt"
	"log/slog"

	"markestedt/macroflow/action"
	"markestedt/macroflow/config"
	"markestedt/macroflow/macro"
	"markestedt/macroflow/platform"
	"markestedt/macroflow/storage"
	"markestedt/macroflow/systray"
	"markestedt/macroflow/watcher"
	"markestedt/macroflow/web"
)

// Session wires the engine to watchers, history, the web UI and the tray
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	clip   platform.Clipboard

	engine   *macro.Engine
	registry *watcher.Registry
	db       *storage.DB
	server   *web.Server
	tray     *systray.SystrayManager
}

type sessionOptions struct {
	history bool
	web     bool
	tray    bool
}

// NewSession builds the engine and everything bound to it
func NewSession(cfg *config.Config, logger *slog.Logger, opts sessionOptions) (*Session, error) {
	clip := platform.NewClipboard()
	input := platform.NewInput()
	registry := watcher.NewRegistry(clip, logger)

	env := &action.Env{
		Input:     input,
		Clipboard: clip,
		Paster:    platform.NewPaster(input),
		Clips:     registry,
		Folders:   registry,
		Logger:    logger,
	}

	engine := macro.NewEngine(macro.Options{
		Env:    env,
		Hotkey: platform.NewHotkey(),
		Logger: logger,
	})
	engine.SetDelay(cfg.Macro.Delay)
	engine.SetLoopCount(cfg.Macro.LoopCount)
	engine.SetStopKey(cfg.Macro.StopKey)

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		clip:     clip,
		engine:   engine,
		registry: registry,
	}
	s.bindCompanions(cfg)

	if opts.history {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		db, err := storage.Open(dir)
		if err != nil {
			// history is optional; playback still works without it
			logger.Warn("Run history disabled", "error", err)
		} else {
			s.db = db
		}
	}

	if opts.web && cfg.Web.Enabled {
		s.server = web.NewServer(engine, s.db, cfg, cfg.Web.Port, logger)
		s.server.OnConfigChange(s.applyConfig)
		s.server.OnMacroChange(func(doc *macro.Document) { s.warnConflicts(doc.Actions) })
	}

	if opts.tray {
		port := 0
		if s.server != nil {
			port = cfg.Web.Port
		}
		s.tray = systray.NewSystrayManager(engine, port, nil, logger)
	}

	engine.Subscribe(s.onStatus)
	engine.OnFinish(s.onFinish)

	return s, nil
}

// Engine returns the session's engine
func (s *Session) Engine() *macro.Engine {
	return s.engine
}

// LoadFile loads a macro, records it as recent and warns about clipboard conflicts
func (s *Session) LoadFile(path string) (*macro.Document, error) {
	doc, err := s.engine.LoadFile(path)
	if err != nil {
		return nil, err
	}

	for _, skipped := range doc.Skipped {
		s.logger.Warn("Skipped step", "index", skipped.Index, "error", skipped.Err)
	}
	s.warnConflicts(doc.Actions)

	s.cfg.AddRecentFile(path)
	if err := s.cfg.Save(); err != nil {
		s.logger.Warn("Failed to save recent files", "error", err)
	}
	return doc, nil
}

// Serve runs the web server until ctx is canceled
func (s *Session) Serve(ctx context.Context) {
	if s.server == nil {
		return
	}
	go func() {
		if err := s.server.Start(ctx); err != nil {
			s.logger.Error("Web server stopped", "error", err)
		}
	}()
}

// Close stops playback and releases watchers and the database
func (s *Session) Close() {
	_ = s.engine.Stop()
	s.registry.Close()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("Failed to close database", "error", err)
		}
	}
}

func (s *Session) onStatus(st macro.Status) {
	if s.server != nil {
		s.server.BroadcastStatus(st)
	}
	if s.tray != nil {
		s.tray.Update(st)
	}
}

func (s *Session) onFinish(sum macro.RunSummary) {
	run := runFromSummary(sum)

	if s.db != nil {
		if err := s.db.SaveRun(run); err != nil {
			s.logger.Error("Failed to save run", "error", err)
		}
	}
	if s.server != nil {
		s.server.BroadcastRun(run)
	}
}

// applyConfig pushes saved web UI settings into the engine. A run in
// progress keeps its companions; the next start picks up the new ones.
func (s *Session) applyConfig(cfg *config.Config) {
	s.cfg = cfg
	s.engine.SetDelay(cfg.Macro.Delay)
	s.engine.SetLoopCount(cfg.Macro.LoopCount)
	s.engine.SetStopKey(cfg.Macro.StopKey)
	s.bindCompanions(cfg)
	s.warnConflicts(s.engine.Actions())
}

// bindCompanions replaces the run companions with the watchers cfg enables
func (s *Session) bindCompanions(cfg *config.Config) {
	s.engine.ClearCompanions()
	if cfg.Clipboard.Enabled {
		s.engine.AddCompanion(watcher.NewClipboardWatcher(s.clip, cfg.Clipboard.OutputFile, s.logger))
	}
	if cfg.FolderMonitor.Enabled {
		s.engine.AddCompanion(watcher.NewFolderWatcher(cfg.FolderMonitor.FolderPath, s.clip, s.logger))
	}
}

func (s *Session) warnConflicts(actions []action.Action) {
	for _, name := range clipboardConflicts(s.cfg, actions) {
		s.logger.Warn("Clipboard watching is enabled and this step also uses the clipboard", "step", name)
	}
}

func runFromSummary(sum macro.RunSummary) *storage.Run {
	return &storage.Run{
		ID:         sum.ID,
		Macro:      sum.Macro,
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		LoopCount:  sum.LoopCount,
		Iterations: sum.Iterations,
		Executed:   sum.Executed,
		Failed:     sum.Failed,
		Reason:     string(sum.Reason),
	}
}

// clipboardConflicts names the steps that read or overwrite the clipboard while
// a clipboard watcher would be draining it
func clipboardConflicts(cfg *config.Config, actions []action.Action) []string {
	if !cfg.Clipboard.Enabled && !cfg.FolderMonitor.Enabled {
		return nil
	}

	var names []string
	for i, a := range actions {
		switch v := a.(type) {
		case *action.TextListCycle:
			if v.TypeDirectly {
				continue
			}
		case *action.ClipboardCapture, *action.FolderCapture:
		default:
			continue
		}
		names = append(names, fmt.Sprintf("%d: %s", i+1, a.Label()))
	}
	return names
}
