package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/session"
)

// sessionsCommand manages persisted sessions.
func (c *CLI) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List and remove saved sessions",
	}
	cmd.AddCommand(c.sessionsListCommand())
	cmd.AddCommand(c.sessionsRemoveCommand())
	return cmd
}

func (c *CLI) sessionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			store, err := newSessionStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No sessions")
				return nil
			}
			fmt.Println(sessionTable(list, time.Now()))
			printNextStep("Open one", appName+" edit --session <id>")
			return nil
		},
	}
}

func (c *CLI) sessionsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id...]",
		Aliases: []string{"remove"},
		Short:   "Remove saved sessions",
		Args:    cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			cfg, err := c.config()
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			store, err := newSessionStore(cmd.Context(), cfg)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			defer store.Close()
			list, err := store.List(cmd.Context())
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			ids := make([]string, 0, len(list))
			for _, s := range list {
				ids = append(ids, s.ID+"\t"+s.Name)
			}
			return ids, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			store, err := newSessionStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := errors.ValidateSessionID(id); err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				printSuccess("Removed %s", id)
			}
			return nil
		},
	}
}

// sessionTable renders sessions as a bordered table.
func sessionTable(list []*session.Session, now time.Time) string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = "—"
		}
		chart := s.Selection.Chart
		if chart == "" {
			chart = "—"
		}
		rows = append(rows, []string{s.ID, name, chart, formatRelativeTime(s.UpdatedAt, now)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Name", "Chart", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

// formatRelativeTime renders t relative to now ("3h ago").
func formatRelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case t.IsZero():
		return "—"
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}
