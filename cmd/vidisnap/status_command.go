package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidisnap/internal/api"
	"vidisnap/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query GET /health on a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return wrapClientError(err, client.BaseURL())
			}
			if jsonOutput {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Service", passFail(health.Status == api.HealthHealthy), health.Status, colorize))
			modelKind := statusOK
			if !health.ModelLoaded {
				modelKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Model loaded", modelKind, yesNo(health.ModelLoaded), colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON response")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, model, and dependency status",
		Long: "Queries GET /status on the daemon. When no daemon answers, the local " +
			"preflight checks are run instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := client.Status(cmd.Context())
			if err != nil {
				if ctx.remoteRequested() {
					return wrapClientError(err, client.BaseURL())
				}
				cfg, cfgErr := ctx.ensureConfig()
				if cfgErr != nil {
					return cfgErr
				}
				results := preflight.RunAll(cmd.Context(), cfg)
				if jsonOutput {
					return writeJSON(cmd, api.FromPreflight(results))
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running at "+client.BaseURL(), colorize))
				fmt.Fprintln(out)
				renderChecks(out, api.FromPreflight(results), colorize)
				return nil
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(out, status, colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON response")
	return cmd
}

func renderDaemonStatus(out io.Writer, status api.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	running := fmt.Sprintf("pid %d, version %s", status.PID, status.Version)
	if status.UptimeSeconds > 0 {
		running += ", up " + (time.Duration(status.UptimeSeconds) * time.Second).String()
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, running, colorize))

	model := status.Model
	switch {
	case model.Loaded:
		detail := fmt.Sprintf("%s (%d classes) at %s", model.Name, model.Classes, model.Server)
		fmt.Fprintln(out, renderStatusLine("Model", statusOK, detail, colorize))
	case model.LoadError != "":
		fmt.Fprintln(out, renderStatusLine("Model", statusError, model.LoadError, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Model", statusWarn, "loading "+model.Name+" from "+model.Server, colorize))
	}
	for _, dep := range status.Dependencies {
		detail := dep.Command
		if !dep.Available {
			detail = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, passFail(dep.Available), detail, colorize))
	}

	staging := status.Staging
	if staging.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Staging", statusError, staging.Error, colorize))
	} else {
		kind := statusOK
		detail := fmt.Sprintf("%d files, %s in %s", staging.Files, humanize.IBytes(uint64(max(staging.Bytes, 0))), staging.Dir)
		if oldest, err := api.ParseTime(staging.OldestAt); err == nil && !oldest.IsZero() {
			kind = statusInfo
			detail += ", oldest " + humanize.Time(oldest)
		}
		fmt.Fprintln(out, renderStatusLine("Staging", kind, detail, colorize))
	}
	if status.CleanupFailures > 0 {
		fmt.Fprintln(out, renderStatusLine("Cleanup failures", statusWarn, fmt.Sprintf("%d", status.CleanupFailures), colorize))
	}
	if h := status.History; h != nil {
		fmt.Fprintln(out, renderStatusLine("Requests", statusInfo,
			fmt.Sprintf("%d total, %d succeeded, %d failed", h.Total, h.Succeeded, h.Failed), colorize))
	}

	if len(status.Pools) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(status.Pools))
		for _, p := range status.Pools {
			rows = append(rows, []string{p.Name, fmt.Sprintf("%d", p.Size), fmt.Sprintf("%d", p.InFlight), fmt.Sprintf("%d", p.Waiting)})
		}
		fmt.Fprintln(out, renderTable([]string{"Pool", "Size", "In flight", "Waiting"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
	}

	if len(status.Preflight) > 0 {
		fmt.Fprintln(out)
		renderChecks(out, status.Preflight, colorize)
	}
}

func renderChecks(out io.Writer, checks []api.CheckResult, colorize bool) {
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range checks {
		fmt.Fprintln(out, renderStatusLine(check.Name, passFail(check.Passed), check.Detail, colorize))
	}
}
