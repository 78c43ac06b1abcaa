package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"markestedt/macroflow/config"
	"markestedt/macroflow/macro"
	"markestedt/macroflow/platform"
	"markestedt/macroflow/storage"
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(recentCmd)

	runCmd.Flags().IntVar(&runLoops, "loops", 0, "loop count override (0 repeats until stopped)")
	runCmd.Flags().IntVar(&runDelay, "delay", 0, "delay between steps in milliseconds (overrides the file)")
	runCmd.Flags().StringVar(&runStopKey, "stop-key", "", "global stop key (overrides the file)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record the run")

	serveCmd.Flags().BoolVar(&serveNoTray, "no-tray", false, "run without the system tray icon")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")

	pickCmd.Flags().DurationVar(&pickTimeout, "timeout", 30*time.Second, "how long to wait for a click")
	pickCmd.Flags().BoolVar(&pickNow, "now", false, "print the current cursor position without waiting for a click")
}

var (
	runLoops     int
	runDelay     int
	runStopKey   string
	runNoHistory bool

	serveNoTray bool

	historyLimit int

	pickTimeout time.Duration
	pickNow     bool
)

// swapped out in tests
var (
	pickClick      = platform.PickPosition
	cursorPosition = platform.CursorPosition
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Play a macro file",
	Long:  "Play a macro file in the foreground until it completes, the stop key is pressed, or the process is interrupted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Close()

		s, err := NewSession(cfg, logger.Logger, sessionOptions{history: !runNoHistory})
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.LoadFile(args[0]); err != nil {
			return err
		}

		engine := s.Engine()
		if cmd.Flags().Changed("loops") {
			engine.SetLoopCount(runLoops)
		}
		if cmd.Flags().Changed("delay") {
			engine.SetDelay(runDelay)
		}
		if runStopKey != "" {
			engine.SetStopKey(runStopKey)
		}

		// Interrupts go through Stop so the run is recorded as stopped
		if err := engine.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to start macro: %w", err)
		}

		select {
		case <-engine.Done():
		case <-ctx.Done():
			_ = engine.Stop()
			<-engine.Done()
		}

		st := engine.Stats()
		fmt.Printf("%s: %s after %d iteration(s), %d step(s), %d failed\n",
			engine.Name(), st.Reason, st.Iteration, st.Executed, st.Failed)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [FILE]",
	Short: "Run the web UI and tray controls",
	Long:  "Load an optional macro and control playback from the web UI, the system tray and the stop key.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Close()

		s, err := NewSession(cfg, logger.Logger, sessionOptions{history: true, web: true, tray: !serveNoTray})
		if err != nil {
			return err
		}
		defer s.Close()

		if len(args) == 1 {
			if _, err := s.LoadFile(args[0]); err != nil {
				return err
			}
		}

		s.Serve(ctx)

		logger.Info("macroflow started", "web", s.server != nil, "tray", s.tray != nil)

		if s.tray == nil {
			<-ctx.Done()
			return nil
		}

		go func() {
			select {
			case <-ctx.Done():
			case <-s.tray.WaitForQuit():
				cancel()
			}
			s.tray.Stop()
		}()

		// Blocks on the main goroutine until the tray quits
		s.tray.Run(ctx)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a macro file",
	Long:  "Decode a macro file and list its steps. Steps that cannot be decoded are reported.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := macro.ReadFile(args[0], nil)
		if err != nil {
			return err
		}

		printDocument(os.Stdout, doc)

		if len(doc.Skipped) > 0 {
			return fmt.Errorf("%d step(s) could not be decoded", len(doc.Skipped))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		db, err := storage.Open(dir)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRuns(historyLimit, 0)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		return printRuns(os.Stdout, runs)
	},
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Print the screen position of the next click",
	Long:  "Print the screen position of the next mouse click, or of the cursor right away with --now.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !pickNow {
			fmt.Println("Click anywhere to capture the position...")
		}
		pos, err := pickOnce(cmd.Context(), pickNow, pickTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("%d %d\n", pos.X, pos.Y)
		return nil
	},
}

func pickOnce(ctx context.Context, now bool, timeout time.Duration) (platform.Position, error) {
	if now {
		return cursorPosition(), nil
	}
	return pickClick(ctx, timeout)
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently used macro files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Close()

		for i, f := range cfg.RecentFiles {
			fmt.Printf("%2d  %s\n", i+1, f)
		}
		return nil
	},
}

func printDocument(w io.Writer, doc *macro.Document) {
	loops := fmt.Sprint(doc.LoopCount)
	if doc.LoopCount <= 0 {
		loops = "until stopped"
	}
	fmt.Fprintf(w, "version %s, delay %d ms, loops %s, stop key %s\n", doc.Version, doc.Delay, loops, doc.StopKey)

	for i, a := range doc.Actions {
		fmt.Fprintf(w, "%3d. %-20s %s\n", i+1, a.Label(), a.Describe())
	}
	for _, s := range doc.Skipped {
		fmt.Fprintf(w, "skipped entry %d: %v\n", s.Index, s.Err)
	}
}

func printRuns(w io.Writer, runs []storage.Run) error {
	writer := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "STARTED\tMACRO\tREASON\tITERATIONS\tSTEPS\tFAILED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Macro,
			r.Reason,
			r.Iterations,
			r.Executed,
			r.Failed,
			r.Duration().Round(time.Millisecond))
	}
	return writer.Flush()
}
