package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	ledgerentities "pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	"pollstack/internal/app/bootstrap"
	"pollstack/internal/platform/config"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(sweepCmd)

	historyCmd.Flags().Int("limit", 20, "Entries per page")
	historyCmd.Flags().String("cursor", "", "Entry id to continue after")
	historyCmd.Flags().Bool("newest-first", false, "Page backwards from the newest entry")
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the credit ledger",
	Long: `Operator tooling for the credit ledger. Reads the same environment as
the api and worker processes and talks to the configured stores directly.`,
	SilenceUsage: true,
}

var balanceCmd = &cobra.Command{
	Use:   "balance SUBJECT_ID",
	Short: "Print a subject's cached balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			balance, err := c.Ledger.Balances.GetBalance(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], balance)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history SUBJECT_ID",
	Short: "Print one page of a subject's ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cursor, _ := cmd.Flags().GetString("cursor")
		newestFirst, _ := cmd.Flags().GetBool("newest-first")
		direction := ledgerentities.DirectionForward
		if newestFirst {
			direction = ledgerentities.DirectionBackward
		}
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			page, err := c.Ledger.History.GetHistoryPage(ctx, ledgerentities.HistoryQuery{
				SubjectID:     args[0],
				CursorEntryID: cursor,
				PageSize:      limit,
				Direction:     direction,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit [SUBJECT_ID]",
	Short: "Replay ledgers and report balance drift",
	Long:  `Audit one subject, or every subject when no id is given. Exits non-zero on drift.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			if len(args) == 1 {
				report, err := c.Ledger.Audit.Audit(ctx, args[0])
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.Consistent() {
					return fmt.Errorf("subject %s drifted", args[0])
				}
				return nil
			}
			drifted, total, err := c.Ledger.Audit.AuditAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audited %d subjects, %d drifted\n", total, len(drifted))
			if len(drifted) > 0 {
				if err := printJSON(cmd.OutOrStdout(), drifted); err != nil {
					return err
				}
				return fmt.Errorf("%d subjects drifted", len(drifted))
			}
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Close expired entities and complete pending lotteries once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			report, err := c.Surveys.Sweeper.DistributeAllPending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed=%d distributed=%d failed=%d\n", report.Closed, report.Distributed, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d entities still pending", report.Failed)
			}
			return nil
		})
	},
}

func withContainer(cmd *cobra.Command, fn func(context.Context, *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.EnableTimers = false
	if cfg.InMemory() {
		return fmt.Errorf("no store dsn configured; set POSTGRES_DSN or the per-store DSNs")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.LogLevel == "debug" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	container, err := bootstrap.Build(cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(cmd.Context(), container)
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
