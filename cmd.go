package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jdxj/ncmconv/internal/batch"
	"github.com/jdxj/ncmconv/internal/cover"
	"github.com/jdxj/ncmconv/internal/ncm"
	"github.com/jdxj/ncmconv/internal/tagger"
)

var ErrInvalidOutput = errors.New("invalid output")

func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ncmconv",
		Short:         "Convert ncm files into mp3/flac",
		Args:          cobra.NoArgs,
		RunE:          rootCmdRun,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// flags
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "specifies a yaml config file")
	flags.StringP("input", "i", "", "specifies the path where the ncm file is located")
	flags.StringSliceP("file", "f", nil, "specifies a certain ncm file")
	flags.StringP("output", "o", "", "specifies the path to save the decrypted result, defaults to the input's directory")
	flags.IntP("workers", "w", 0, "number of files converted in parallel, 0 picks one from the cpu count")
	flags.Bool("no-cover", false, "do not download cover art")
	flags.Duration("cover-timeout", cover.DefaultTimeout, "timeout of a single cover request")
	flags.String("log-level", "info", "log level")
	return cmd
}

func rootCmdRun(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	log.SetLevel(level)

	if cfg.Output != "" {
		if err := checkOutput(cfg.Output); err != nil {
			return err
		}
	}

	inputFiles, err := batch.Discover(cfg.Input, cfg.Files)
	if errors.Is(err, batch.ErrNoNCMFile) {
		cmd.Println("No NCM files found.")
		return nil
	}
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = batch.WorkerCount(runtime.NumCPU())
	}

	runner := &batch.Runner{
		Workers: workers,
		Convert: newConverter(cfg).Convert,
		Log:     log.WithField("component", "batch"),
	}

	cmd.Printf("Found %d NCM files. (%d threads)\n", len(inputFiles), workers)
	cmd.Println(batch.Separator)
	summary, err := runner.Run(context.Background(), inputFiles, func(res batch.Result) {
		for _, line := range batch.FormatResult(res) {
			cmd.Println(line)
		}
		cmd.Println(batch.Separator)
	})
	if err != nil {
		return err
	}
	cmd.Println(summary.String())
	return nil
}

func newConverter(cfg *Config) *ncm.Converter {
	conv := &ncm.Converter{
		OutputDir: cfg.Output,
		ChunkSize: ncm.ChunkSize,
		Tags:      tagger.New(),
		Log:       log.WithField("component", "ncm"),
	}
	if !cfg.NoCover {
		conv.Cover = cover.NewFetcher(
			cover.WithClient(&http.Client{Timeout: cfg.CoverTimeout}),
			cover.WithBaseURL(cfg.CoverBaseURL),
			cover.WithLogger(log.WithField("component", "cover")),
		)
	}
	return conv
}

func checkOutput(output string) error {
	info, err := os.Stat(output)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, info.Name())
	}
	return nil
}
