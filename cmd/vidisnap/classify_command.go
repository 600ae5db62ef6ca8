package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidisnap/internal/api"
	"vidisnap/internal/config"
	"vidisnap/internal/daemonrun"
	"vidisnap/internal/failure"
	"vidisnap/internal/inference"
	"vidisnap/internal/logging"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/upload"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var thumbnailPath string

	cmd := &cobra.Command{
		Use:   "classify <video>",
		Short: "Classify the first frame of a video",
		Long: "Runs the same pipeline as POST /process. Without --server the pipeline runs " +
			"in-process against the configured model server; with --server the file is " +
			"uploaded to a running daemon.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open video: %w", err)
			}
			defer file.Close()

			var result api.ProcessResponse
			if ctx.remoteRequested() {
				result, err = classifyRemote(cmd.Context(), ctx, path, file)
			} else {
				result, err = classifyLocal(cmd.Context(), ctx, path, file)
			}
			if err != nil {
				return err
			}

			if thumbnailPath != "" {
				if err := writeThumbnail(thumbnailPath, result.ThumbnailB64); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			renderClassification(cmd.OutOrStdout(), filepath.Base(path), result, thumbnailPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw /process response")
	cmd.Flags().StringVar(&thumbnailPath, "thumbnail", "", "Write the extracted frame as JPEG to this path")
	return cmd
}

func classifyRemote(ctx context.Context, cmdCtx *commandContext, path string, body io.Reader) (api.ProcessResponse, error) {
	client, err := cmdCtx.apiClient()
	if err != nil {
		return api.ProcessResponse{}, err
	}
	resp, err := client.Process(ctx, filepath.Base(path), body)
	if err != nil {
		return api.ProcessResponse{}, wrapClientError(err, client.BaseURL())
	}
	return resp, nil
}

func classifyLocal(ctx context.Context, cmdCtx *commandContext, path string, file *os.File) (api.ProcessResponse, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return api.ProcessResponse{}, err
	}
	level := cmdCtx.logLevel()
	if level == "" {
		level = "warn"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return api.ProcessResponse{}, fmt.Errorf("init logger: %w", err)
	}

	if _, err := upload.Validate(path); err != nil {
		return api.ProcessResponse{}, errors.New(failure.PublicDetail(err))
	}

	stack, err := daemonrun.NewStack(cfg, logger, nil)
	if err != nil {
		return api.ProcessResponse{}, err
	}
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout(cfg))
	engine, err := inference.Load(loadCtx, daemonrun.LoadOptions(cfg, logger), stack.Backend)
	cancel()
	if err != nil {
		return api.ProcessResponse{}, fmt.Errorf("load model: %w", err)
	}
	stack.Holder.Set(engine)

	var size int64 = -1
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	resp, err := stack.Pipeline.Process(ctx, pipeline.Request{
		ID:    uuid.NewString(),
		Video: upload.Video{Filename: filepath.Base(path), Body: file, Size: size},
	})
	if err != nil {
		if diag := failure.DiagnosticOf(err); diag != "" {
			return api.ProcessResponse{}, fmt.Errorf("%s: %s", failure.PublicDetail(err), diag)
		}
		return api.ProcessResponse{}, fmt.Errorf("%s: %w", failure.PublicDetail(err), err)
	}
	return api.FromResponse(resp), nil
}

func loadTimeout(cfg *config.Config) time.Duration {
	if cfg.Model.LoadTimeoutSeconds > 0 {
		return time.Duration(cfg.Model.LoadTimeoutSeconds) * time.Second
	}
	return 2 * time.Minute
}

func writeThumbnail(path, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode thumbnail: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}

func renderClassification(out io.Writer, name string, result api.ProcessResponse, thumbnailPath string) {
	rows := make([][]string, 0, len(result.Labels))
	for i, label := range result.Labels {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			displayLabel(label.Label),
			fmt.Sprintf("%.2f%%", label.Score*100),
		})
	}
	fmt.Fprintln(out, name)
	fmt.Fprintln(out, renderTable([]string{"#", "Label", "Score"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))

	thumbBytes := uint64(base64.StdEncoding.DecodedLen(len(result.ThumbnailB64)))
	if thumbnailPath != "" {
		fmt.Fprintf(out, "Thumbnail: %s written to %s\n", humanize.IBytes(thumbBytes), thumbnailPath)
	} else {
		fmt.Fprintf(out, "Thumbnail: %s (use --thumbnail or --json to keep it)\n", humanize.IBytes(thumbBytes))
	}
}
