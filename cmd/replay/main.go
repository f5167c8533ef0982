package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexiqai/media-recorder/internal/config"
	"github.com/lexiqai/media-recorder/internal/inspect"
	"github.com/lexiqai/media-recorder/internal/observability"
	"github.com/lexiqai/media-recorder/internal/telephony"
)

const usageText = "Usage: replay -input events.jsonl [-dir DIR] [-name NAME] [-inspect] [-no-finalize]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code so deferred cleanup runs before exit
func run(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("replay", flag.ContinueOnError)
	input := flags.String("input", "", "Media stream event log, one JSON message per line (- for stdin)")
	dir := flags.String("dir", "", "Directory to write the recording to (default RECORDINGS_DIR or the working directory)")
	name := flags.String("name", "", "Recording base name (default from RECORDING_NAME_SOURCE)")
	doInspect := flags.Bool("inspect", false, "Print a JSON report of the recording after replay")
	noFinalize := flags.Bool("no-finalize", false, "Leave the recording unfinalized if the log has no stop event")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, usageText)
		flags.PrintDefaults()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if *dir != "" {
		if cfg.RecordingsDir, err = config.ResolveRecordingsDir(*dir); err != nil {
			logger.Error().Err(err).Msg("Invalid output directory")
			return 1
		}
	}

	var in io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Error().Err(err).Str("input", *input).Msg("Failed to open event log")
			return 1
		}
		defer f.Close()
		in = f
	}

	opts := telephony.SessionOptionsFromConfig(cfg)
	opts.BaseName = *name
	if *noFinalize {
		opts.FinalizeOnDisconnect = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := telephony.NewSession(opts)
	if err := telephony.Replay(ctx, in, session); err != nil {
		logger.Error().Err(err).Str("input", *input).Msg("Replay failed")
		return 1
	}

	path := session.RecordingPath()
	if path == "" {
		logger.Warn().Str("input", *input).Msg("Event log had no start event, nothing recorded")
		return 0
	}
	logger.Info().Str("path", path).Bool("finalized", session.Stopped()).Msg("Replay complete")

	if *doInspect {
		report, err := inspect.File(path)
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Failed to inspect recording")
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Failed to write inspection report")
			return 1
		}
	}
	return 0
}
