package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}
	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsShowCommand())
	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No sessions recorded yet.")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %-10s  %2d attempts  %6d tokens  %s\n",
					rec.StartedAt.Format(time.DateTime),
					rec.Outcome,
					rec.Attempts,
					rec.TotalTokens,
					truncate(rec.Instruction, 50))
				fmt.Printf("  id: %s\n", rec.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "Session database path")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Max sessions to show (0 for all)")
	return cmd
}

func newSessionsShowCommand() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			attempts, err := store.GetAttempts(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Session:  %s\n", rec.ID)
			fmt.Printf("Started:  %s\n", rec.StartedAt.Format(time.DateTime))
			fmt.Printf("Outcome:  %s\n", rec.Outcome)
			if rec.Reason != "" {
				fmt.Printf("Reason:   %s\n", rec.Reason)
			}
			if rec.ArtifactPath != "" {
				fmt.Printf("Artifact: %s\n", rec.ArtifactPath)
			}
			fmt.Printf("Instruction: %s\n", rec.Instruction)

			for _, att := range attempts {
				fmt.Printf("\nAttempt %d (%s, %v)\n", att.Index, att.Stage, att.Duration.Round(time.Millisecond))
				if att.Defects != "" {
					fmt.Printf("  defects:\n")
					for _, line := range strings.Split(att.Defects, "\n") {
						fmt.Printf("    %s\n", line)
					}
				}
				if att.CompileStatus != "" {
					fmt.Printf("  compile: %s\n", att.CompileStatus)
				}
				if att.Diagnostic != "" {
					fmt.Printf("  diagnostic: %s\n", att.Diagnostic)
				}
				if att.Error != "" {
					fmt.Printf("  error: %s\n", att.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "Session database path")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
