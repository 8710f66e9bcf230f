package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harlequingg/devfocus/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show streaks and focus time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		s, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your focus sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		sessions, err := c.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No sessions yet."))
			return nil
		}
		for _, s := range sessions {
			status := dimStyle.Render("open")
			if s.Completed {
				status = successStyle.Render("done")
			}
			title := s.TaskTitle
			if title == "" {
				title = dimStyle.Render("(deleted task)")
			}
			fmt.Fprintf(out, "%s  %s  %2dm  %s\n", s.StartedAt.Local().Format("Jan 02 15:04"), status, s.Duration, title)
			if s.Notes != "" {
				fmt.Fprintf(out, "    %s\n", dimStyle.Render(s.Notes))
			}
		}
		return nil
	},
}

var suggestCount int

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a break activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		s, err := c.SuggestBreak(cmd.Context(), suggestCount, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Suggestion)
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestCount, "sessions", "n", 1, "pomodoros completed so far")
	rootCmd.AddCommand(statsCmd, sessionsCmd, suggestCmd)
}

const barWidth = 20

func printSummary(w io.Writer, s *stats.Summary) {
	fmt.Fprintln(w, titleStyle.Render("Focus stats"))
	fmt.Fprintf(w, "%s %d   %s %d   %s %d\n",
		labelStyle.Render("today"), s.TodayPomodoros,
		labelStyle.Render("week"), s.WeekPomodoros,
		labelStyle.Render("total"), s.TotalPomodoros)
	fmt.Fprintf(w, "%s %sh   %s %d (best %d)\n",
		labelStyle.Render("focus time"), s.TotalFocusHours,
		labelStyle.Render("streak"), s.CurrentStreak, s.LongestStreak)

	if len(s.Last7Days) > 0 {
		fmt.Fprintln(w)
		most := 0
		for _, d := range s.Last7Days {
			most = max(most, d.Pomodoros)
		}
		for _, d := range s.Last7Days {
			fmt.Fprintf(w, "%s %s %d\n", d.Day, bar(d.Pomodoros, most), d.Pomodoros)
		}
	}

	if len(s.ByCategory) > 0 {
		fmt.Fprintln(w)
		for _, c := range s.ByCategory {
			fmt.Fprintf(w, "%-16s %sh\n", c.Name, c.Hours)
		}
	}
}

// bar renders n as a share of most, barWidth cells wide.
func bar(n, most int) string {
	if most <= 0 || n <= 0 {
		return dimStyle.Render(strings.Repeat(".", barWidth))
	}
	filled := max(n*barWidth/most, 1)
	return workStyle.Render(strings.Repeat("#", filled)) + dimStyle.Render(strings.Repeat(".", barWidth-filled))
}
