package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidisnap/internal/api"
	"vidisnap/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var local bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent request outcomes",
		Long: "Shows the newest processed requests with their outcome, failing stage, and " +
			"duration. Uploads, labels and thumbnails are never stored. Use --local to read " +
			"the history database directly when the daemon is not running.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.RequestsResponse
			if local {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := history.Open(cfg.HistoryPath())
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
				records, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("read history: %w", err)
				}
				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return fmt.Errorf("summarize history: %w", err)
				}
				resp = api.RequestsResponse{Requests: api.FromRecords(records), Summary: api.FromSummary(summary)}
			} else {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				resp, err = client.Requests(cmd.Context(), limit)
				if err != nil {
					return wrapClientError(err, client.BaseURL())
				}
			}

			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			renderHistory(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of requests to show")
	cmd.Flags().BoolVar(&local, "local", false, "Read the history database instead of querying the daemon")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderHistory(out io.Writer, resp api.RequestsResponse) {
	if len(resp.Requests) == 0 {
		fmt.Fprintln(out, "No requests recorded")
		return
	}
	rows := make([][]string, 0, len(resp.Requests))
	for _, rec := range resp.Requests {
		when := rec.CreatedAt
		if ts, err := api.ParseTime(rec.CreatedAt); err == nil && !ts.IsZero() {
			when = humanize.Time(ts)
		}
		failure := "-"
		if rec.Kind != "" {
			failure = fmt.Sprintf("%s (%s)", rec.Kind, rec.Stage)
		}
		rows = append(rows, []string{
			when,
			shortID(rec.RequestID),
			rec.Extension,
			humanize.IBytes(uint64(max(rec.UploadBytes, 0))),
			fmt.Sprintf("%d", rec.Status),
			failure,
			(time.Duration(rec.DurationMS) * time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"When", "Request", "Ext", "Size", "Status", "Failure", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
	))
	s := resp.Summary
	fmt.Fprintf(out, "%d total, %d succeeded, %d failed\n", s.Total, s.Succeeded, s.Failed)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
