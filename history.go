package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/rmcloud-upload/internal/config"
	"github.com/tonimelisma/rmcloud-upload/internal/ledger"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent uploads",
		Long: `Show recent upload attempts recorded in the local history database,
newest first. Failed attempts are listed with their error.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "l", ledger.DefaultLimit, "maximum number of uploads to show")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("reading --limit: %w", err)
	}

	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	path := config.DefaultLedgerPath()
	if path == "" {
		return errors.New("cannot determine data directory")
	}

	// Do not create an empty database just to report that it is empty.
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		return printHistory(cc, nil)
	}

	l, err := ledger.Open(cmd.Context(), path, cc.Logger)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	return printHistory(cc, entries)
}

func printHistory(cc *CLIContext, entries []ledger.Entry) error {
	if cc.Flags.JSON {
		if entries == nil {
			entries = []ledger.Entry{}
		}

		return printJSON(os.Stdout, entries)
	}

	if len(entries) == 0 {
		cc.Statusf("No uploads recorded.\n")
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		detail := shortID(e.DocumentID)
		if e.Status == ledger.StatusFailed {
			detail = e.Error
		}

		rows = append(rows, []string{
			formatTime(e.FinishedAt, now),
			e.Status,
			e.Device,
			formatSize(e.Size),
			e.VisibleName,
			detail,
		})
	}

	printTable(os.Stdout, []string{"WHEN", "STATUS", "DEVICE", "SIZE", "NAME", "DOCUMENT"}, rows)

	return nil
}
