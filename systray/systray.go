package systray

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"markestedt/macroflow/macro"
)

// Controls is the engine surface exposed in the tray menu
type Controls interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	Stats() macro.Status
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	ctrl     Controls
	webPort  int
	iconData []byte
	logger   *slog.Logger

	ctx  context.Context
	quit chan struct{}

	mu     sync.Mutex
	ready  bool
	start  *systray.MenuItem
	pause  *systray.MenuItem
	resume *systray.MenuItem
	stop   *systray.MenuItem
}

// NewSystrayManager creates a new systray manager. webPort 0 hides the web UI entry.
func NewSystrayManager(ctrl Controls, webPort int, iconData []byte, logger *slog.Logger) *SystrayManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystrayManager{
		ctrl:     ctrl,
		webPort:  webPort,
		iconData: iconData,
		logger:   logger.With("component", "systray"),
		quit:     make(chan struct{}),
	}
}

// Run starts the system tray (blocking call). Runs started from the menu are
// bound to ctx.
func (m *SystrayManager) Run(ctx context.Context) {
	m.ctx = ctx
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// Update reflects an engine snapshot in the tooltip and menu
func (m *SystrayManager) Update(st macro.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}

	systray.SetTooltip(tooltip(st))

	on := menuState(st.State)
	setEnabled(m.start, on.start)
	setEnabled(m.pause, on.pause)
	setEnabled(m.resume, on.resume)
	setEnabled(m.stop, on.stop)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

type enabledItems struct {
	start, pause, resume, stop bool
}

func menuState(s macro.State) enabledItems {
	switch s {
	case macro.Running:
		return enabledItems{pause: true, stop: true}
	case macro.Paused:
		return enabledItems{resume: true, stop: true}
	default:
		return enabledItems{start: true}
	}
}

func tooltip(st macro.Status) string {
	name := st.Macro
	if name == "" {
		name = "untitled"
	}

	switch st.State {
	case macro.Running, macro.Paused:
		loops := "∞"
		if st.LoopCount > 0 {
			loops = fmt.Sprint(st.LoopCount)
		}
		return fmt.Sprintf("macroflow - %s %s (%d/%s)", name, st.State, st.Iteration, loops)
	default:
		return fmt.Sprintf("macroflow - %s %s", name, st.State)
	}
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}
	systray.SetTitle("macroflow")

	m.mu.Lock()
	m.start = systray.AddMenuItem("Start", "Play the loaded macro")
	m.pause = systray.AddMenuItem("Pause", "Pause playback")
	m.resume = systray.AddMenuItem("Resume", "Resume playback")
	m.stop = systray.AddMenuItem("Stop", "Stop playback")
	m.ready = true
	m.mu.Unlock()

	var openWebUI *systray.MenuItem
	if m.webPort > 0 {
		systray.AddSeparator()
		openWebUI = systray.AddMenuItem("Open Web UI", "Open the macroflow dashboard")
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit macroflow")

	m.Update(m.ctrl.Stats())

	var openCh <-chan struct{}
	if openWebUI != nil {
		openCh = openWebUI.ClickedCh
	}

	// Handle menu clicks
	go func() {
		for {
			select {
			case <-m.start.ClickedCh:
				m.control("start", func() error { return m.ctrl.Start(m.ctx) })
			case <-m.pause.ClickedCh:
				m.control("pause", m.ctrl.Pause)
			case <-m.resume.ClickedCh:
				m.control("resume", m.ctrl.Resume)
			case <-m.stop.ClickedCh:
				m.control("stop", m.ctrl.Stop)
			case <-openCh:
				m.openWebUI()
			case <-mQuit.ClickedCh:
				m.logger.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

func (m *SystrayManager) control(op string, fn func() error) {
	if err := fn(); err != nil {
		m.logger.Warn("Tray action failed", "op", op, "error", err)
	}
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	m.logger.Info("System tray exited")
}

// openWebUI opens the web UI in the default browser
func (m *SystrayManager) openWebUI() {
	url := fmt.Sprintf("http://localhost:%d", m.webPort)
	m.logger.Info("Opening web UI", "url", url)

	name, args, ok := browserCommand(runtime.GOOS, url)
	if !ok {
		m.logger.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		m.logger.Error("Failed to open web UI", "error", err)
	}
}

func browserCommand(goos, url string) (string, []string, bool) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", url}, true
	case "darwin":
		return "open", []string{url}, true
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, true
	default:
		return "", nil, false
	}
}
