package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harlequingg/devfocus/internal/client"
	"github.com/harlequingg/devfocus/internal/timer"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Run the Pomodoro timer",
}

var timerTaskID string

var timerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session on a task",
	Long: `Start a focus session on a task and count down in the foreground.

Ctrl-C pauses the timer and saves it; ` + "`focus timer resume`" + ` picks it up again
within the hour.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if timerTaskID == "" {
			return errors.New("--task is required")
		}
		return runTimer(cmd, timerTaskID)
	},
}

var timerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused or interrupted timer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimer(cmd, "")
	},
}

var timerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved timer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := timer.New(timerConfig(nil, nil, nil))
		restored, err := t.Restore()
		if err != nil {
			return err
		}
		if !restored {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No timer running."))
			return nil
		}
		printState(cmd.OutOrStdout(), t.State())
		return nil
	},
}

var timerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Stop the timer and discard the saved state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := timer.New(timerConfig(nil, nil, nil))
		if _, err := t.Restore(); err != nil {
			return err
		}
		if err := t.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Timer reset.")
		return nil
	},
}

var timerSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "End the current break early",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := timer.New(timerConfig(nil, nil, nil))
		if _, err := t.Restore(); err != nil {
			return err
		}
		if err := t.Skip(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Break skipped. Start the next session with `focus timer start --task <id>`.")
		return nil
	},
}

func init() {
	timerStartCmd.Flags().StringVarP(&timerTaskID, "task", "t", "", "task to focus on")
	timerCmd.AddCommand(timerStartCmd, timerResumeCmd, timerStatusCmd, timerResetCmd, timerSkipCmd)
	rootCmd.AddCommand(timerCmd)
}

func timerConfig(sessions timer.Sessions, notify func(timer.Event), notes func(context.Context) string) timer.Config {
	return timer.Config{
		Work:     cfg.Timer.Work(),
		Break:    cfg.Timer.Break(),
		Sessions: sessions,
		Store:    timer.NewFileStore(cfg.Timer.StateFile),
		Notify:   notify,
		Notes:    notes,
	}
}

// runTimer drives the countdown in the foreground until the break after the
// next work interval ends or the user interrupts it.
func runTimer(cmd *cobra.Command, taskID string) error {
	c, err := authedClient()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	events := make(chan timer.Event, 4)
	var completion *client.Completion
	sessions := &client.Sessions{
		Client:     c,
		OnComplete: func(comp *client.Completion) { completion = comp },
	}
	t := timer.New(timerConfig(
		sessions,
		func(e timer.Event) {
			select {
			case events <- e:
			default:
			}
		},
		func(ctx context.Context) string {
			fmt.Fprintln(out)
			return askNotes(ctx, p)
		},
	))

	if _, err := t.Restore(); err != nil {
		return err
	}
	if taskID != "" {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		err = t.Select(timer.Task{ID: task.ID, Title: task.Title})
		if errors.Is(err, timer.ErrSessionInFlight) {
			return fmt.Errorf("%w; finish it with `focus timer resume` or discard it with `focus timer reset`", err)
		}
		if err != nil {
			return err
		}
	} else if t.State().Task == nil && t.State().Phase == timer.Work {
		return errors.New("nothing to resume; start a session with `focus timer start --task <id>`")
	}

	if err := t.Start(ctx); err != nil {
		return err
	}
	printState(out, t.State())

	runErr := make(chan error, 1)
	go func() { runErr <- t.Run(ctx) }()

	render := time.NewTicker(time.Second)
	defer render.Stop()

	for {
		select {
		case <-ctx.Done():
			return pauseAndExit(out, t, runErr)

		case err := <-runErr:
			if ctx.Err() != nil {
				return pauseAndExit(out, t, nil)
			}
			fmt.Fprintln(out)
			return fmt.Errorf("%w; run `focus timer resume` to retry", err)

		case e := <-events:
			fmt.Fprintf(out, "\n%s %s\n", titleStyle.Render(e.Title), e.Body)
			switch e.Kind {
			case timer.WorkComplete:
				if completion != nil {
					printCompletion(out, completion)
				}
				state := t.State()
				if s, err := c.SuggestBreak(ctx, state.SessionCount, ""); err == nil {
					fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Break idea:"), s.Suggestion)
				}
				if err := t.Start(ctx); err != nil {
					return err
				}
			case timer.BreakComplete:
				stop()
				<-runErr
				return nil
			}

		case <-render.C:
			fmt.Fprintf(out, "\r%s", statusLine(t.State()))
		}
	}
}

// pauseAndExit waits for the run loop if it is still going, then saves the
// timer as paused.
func pauseAndExit(out io.Writer, t *timer.Timer, runErr <-chan error) error {
	if runErr != nil {
		<-runErr
	}
	if err := t.Pause(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nPaused at %s. Resume with `focus timer resume`.\n", timer.Format(t.State().Remaining))
	return nil
}

// askNotes prompts for session notes, giving up when ctx is done.
func askNotes(ctx context.Context, p *prompter) string {
	answer := make(chan string, 1)
	go func() {
		s, _ := p.line("Notes for this session (optional)")
		answer <- s
	}()
	select {
	case s := <-answer:
		return s
	case <-ctx.Done():
		return ""
	}
}

func statusLine(s timer.State) string {
	phase := workStyle.Render("FOCUS")
	if s.Phase == timer.Break {
		phase = breakStyle.Render("BREAK")
	}
	line := fmt.Sprintf("%s %s", phase, timer.Format(s.Remaining))
	if !s.Active {
		line += dimStyle.Render(" (paused)")
	}
	if s.Task != nil && s.Phase == timer.Work {
		line += "  " + s.Task.Title
	}
	return line
}

func printState(w io.Writer, s timer.State) {
	fmt.Fprintln(w, statusLine(s))
	if s.SessionCount > 0 {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d pomodoros this run", s.SessionCount)))
	}
}

func printCompletion(w io.Writer, c *client.Completion) {
	if c.Task != nil {
		fmt.Fprintf(w, "%s %s\n", c.Task.Title, progress(c.Task.CompletedPomodoros, c.Task.EstimatedPomodoros))
	}
	fmt.Fprintf(w, "%s %d total, streak %d (best %d)\n",
		labelStyle.Render("Pomodoros:"), c.User.TotalPomodoros, c.User.CurrentStreak, c.User.LongestStreak)
}
