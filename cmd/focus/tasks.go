package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harlequingg/devfocus/internal/client"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	Short:   "Manage tasks",
}

var (
	tasksListDone bool
	tasksListOpen bool
)

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your tasks, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		var filter *bool
		switch {
		case tasksListDone && tasksListOpen:
			return fmt.Errorf("--done and --open are mutually exclusive")
		case tasksListDone:
			filter = boolPtr(true)
		case tasksListOpen:
			filter = boolPtr(false)
		}
		tasks, err := c.ListTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No tasks."))
			return nil
		}
		for _, t := range tasks {
			printTaskLine(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

var newTask client.NewTask

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		t := newTask
		t.Title = strings.Join(args, " ")
		task, err := c.CreateTask(cmd.Context(), t)
		if err != nil {
			return err
		}
		printTaskLine(cmd.OutOrStdout(), *task)
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		t, err := c.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printTaskLine(out, *t)
		if t.Description != "" {
			fmt.Fprintln(out, "  "+t.Description)
		}
		fmt.Fprintf(out, "  %s %s  %s %s\n", labelStyle.Render("category"), t.Category, labelStyle.Render("priority"), t.Priority)
		printBreakdown(out, t.AIBreakdown)
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Record one completed pomodoro on a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		t, err := c.IncrementTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printTaskLine(cmd.OutOrStdout(), *t)
		return nil
	},
}

var tasksRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.DeleteTask(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
		return nil
	},
}

var breakdownApply bool

var tasksBreakdownCmd = &cobra.Command{
	Use:   "breakdown <id>",
	Short: "Ask the AI to split a task into pomodoro-sized subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		t, err := c.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		subtasks, err := c.Breakdown(ctx, t.Title, t.Description)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printBreakdown(out, subtasks)
		if !breakdownApply {
			fmt.Fprintln(out, dimStyle.Render("Run again with --apply to save this plan."))
			return nil
		}
		t, err = c.ApplyBreakdown(ctx, t.ID, subtasks)
		if err != nil {
			return err
		}
		printTaskLine(out, *t)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().BoolVar(&tasksListDone, "done", false, "only completed tasks")
	tasksListCmd.Flags().BoolVar(&tasksListOpen, "open", false, "only tasks still in progress")

	tasksAddCmd.Flags().StringVarP(&newTask.Description, "description", "d", "", "task description")
	tasksAddCmd.Flags().StringVarP(&newTask.Category, "category", "c", "", "category (default general)")
	tasksAddCmd.Flags().StringVarP(&newTask.Priority, "priority", "p", "", "low, medium or high (default medium)")
	tasksAddCmd.Flags().IntVarP(&newTask.EstimatedPomodoros, "estimate", "e", 0, "estimated pomodoros (default 1)")

	tasksBreakdownCmd.Flags().BoolVar(&breakdownApply, "apply", false, "save the plan on the task")

	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksShowCmd, tasksDoneCmd, tasksRemoveCmd, tasksBreakdownCmd)
	rootCmd.AddCommand(tasksCmd)
}

func boolPtr(b bool) *bool { return &b }

func printTaskLine(w io.Writer, t client.Task) {
	mark := "[ ]"
	if t.IsCompleted {
		mark = successStyle.Render("[x]")
	}
	fmt.Fprintf(w, "%s %s  %s  %s\n",
		mark,
		dimStyle.Render(t.ID),
		t.Title,
		progress(t.CompletedPomodoros, t.EstimatedPomodoros),
	)
}

func progress(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}

func printBreakdown(w io.Writer, subtasks []client.Subtask) {
	for _, s := range subtasks {
		fmt.Fprintf(w, "  %s %s %s\n",
			labelStyle.Render(fmt.Sprintf("%d.", s.Index)),
			s.Subtask,
			dimStyle.Render(strings.Repeat("*", s.Difficulty)),
		)
		for _, step := range s.Steps {
			fmt.Fprintf(w, "     - %s\n", step)
		}
	}
}
