// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Command edlconv reads CMX 3600 EDLs and writes them back out in a chosen
// style, optionally repairing inconsistent record timecodes on the way.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"unicode/utf8"

	"github.com/ansel1/merry/v2"
	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	cmx3600 "github.com/Avalanche-io/otio-edl"
)

// repairRow is one line of the repair report.
type repairRow struct {
	File string `csv:"file"`
	cmx3600.Repair
}

// result is what converting one input produced.
type result struct {
	name    string
	output  string
	repairs []cmx3600.Repair
}

func main() {
	cfg, inputs, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "edlconv:", err)
		os.Exit(2)
	}

	level, _ := cfg.level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, inputs, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

// parseArgs reads flags over the optional config file. Only flags given on
// the command line override the file.
func parseArgs(args []string) (Config, []string, error) {
	fs := flag.NewFlagSet("edlconv", flag.ContinueOnError)
	defaults := defaultConfig()

	configPath := fs.String("config", "", "YAML config file")
	rate := fs.Float64("rate", defaults.Rate, "frame rate for timecode interpretation")
	ignore := fs.Bool("ignore-mismatch", defaults.IgnoreMismatch, "repair record timecodes instead of failing")
	style := fs.String("style", defaults.Style, "output style (avid, nucoda, premiere)")
	reelLength := fs.Int("reel-length", defaults.ReelLength, "maximum reel name length, 0 for unlimited")
	out := fs.String("out", defaults.Out, "output directory; stdout when empty")
	repairs := fs.String("repairs", defaults.Repairs, "write a CSV report of timecode repairs")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	jobs := fs.Int("jobs", defaults.Jobs, "files converted at once")

	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return Config{}, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			cfg.Rate = *rate
		case "ignore-mismatch":
			cfg.IgnoreMismatch = *ignore
		case "style":
			cfg.Style = *style
		case "reel-length":
			cfg.ReelLength = *reelLength
		case "out":
			cfg.Out = *out
		case "repairs":
			cfg.Repairs = *repairs
		case "log-level":
			cfg.LogLevel = *logLevel
		case "jobs":
			cfg.Jobs = *jobs
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	if fs.NArg() > 1 && cfg.Out == "" {
		return Config{}, nil, merry.Wrap(cmx3600.ErrInvalidConfiguration,
			merry.WithMessage("-out is required with more than one input"))
	}
	return cfg, fs.Args(), nil
}

// run converts every input. With no inputs it reads stdin.
func run(ctx context.Context, cfg Config, inputs []string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	style, err := cmx3600.ParseOutputStyle(cfg.Style)
	if err != nil {
		return err
	}

	if len(inputs) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return merry.Prepend(err, "reading stdin")
		}
		res, err := convert(cfg, style, "-", data, logger)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(stdout, res.output); err != nil {
			return err
		}
		return writeRepairs(cfg.Repairs, []result{res})
	}

	if cfg.Out != "" {
		if err := checkTargets(inputs); err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
			return merry.Prependf(err, "creating %s", cfg.Out)
		}
	}

	results := make([]result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)

	for i, path := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return merry.Prependf(err, "reading %s", path)
			}
			res, err := convert(cfg, style, path, data, logger)
			if err != nil {
				return err
			}
			results[i] = res

			if cfg.Out == "" {
				return nil
			}
			target := filepath.Join(cfg.Out, filepath.Base(path))
			if err := os.WriteFile(target, []byte(res.output), 0o644); err != nil {
				return merry.Prependf(err, "writing %s", target)
			}
			logger.Info("converted", "input", path, "output", target, "repairs", len(res.repairs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.Out == "" {
		if _, err := io.WriteString(stdout, results[0].output); err != nil {
			return err
		}
	}
	return writeRepairs(cfg.Repairs, results)
}

// checkTargets fails when two inputs would be written to the same file in
// the output directory.
func checkTargets(inputs []string) error {
	seen := make(map[string]string, len(inputs))
	for _, path := range inputs {
		base := filepath.Base(path)
		if first, ok := seen[base]; ok {
			return merry.Wrap(cmx3600.ErrInvalidConfiguration,
				merry.WithMessagef("%s and %s would both be written to %s", first, path, base))
		}
		seen[base] = path
	}
	return nil
}

// convert decodes one EDL and encodes it again in the configured style.
func convert(cfg Config, style cmx3600.OutputStyle, name string, data []byte, logger *slog.Logger) (result, error) {
	logger = logger.With("file", name)

	text, err := decodeText(data)
	if err != nil {
		return result{}, merry.Prependf(err, "decoding %s", name)
	}
	if !utf8.Valid(data) {
		logger.Debug("input is not UTF-8, read as ISO-8859-1")
	}

	decoder := cmx3600.NewDecoder(bytes.NewReader(text))
	decoder.SetRate(cfg.Rate)
	decoder.SetIgnoreTimecodeMismatch(cfg.IgnoreMismatch)
	decoder.SetLogger(logger)

	timelines, err := decoder.DecodeAll()
	if err != nil {
		return result{}, merry.Prependf(err, "%s", name)
	}

	// Each titled section is written back in turn.
	var buf bytes.Buffer
	encoder := cmx3600.NewEncoder(&buf)
	encoder.SetStyle(style)
	encoder.SetRate(cfg.Rate)
	encoder.SetReelNameLength(cfg.ReelLength)
	encoder.SetLogger(logger)
	for _, timeline := range timelines {
		if err := encoder.Encode(timeline); err != nil {
			return result{}, merry.Prependf(err, "%s", name)
		}
	}

	return result{name: name, output: buf.String(), repairs: decoder.Repairs()}, nil
}

// decodeText returns data as UTF-8. Input that is not valid UTF-8 is read as
// ISO-8859-1, the usual encoding of EDLs from older systems.
func decodeText(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}

// writeRepairs writes every repair to path as CSV. Nothing is written when
// path is empty.
func writeRepairs(path string, results []result) error {
	if path == "" {
		return nil
	}

	rows := []repairRow{}
	for _, res := range results {
		for _, repair := range res.repairs {
			rows = append(rows, repairRow{File: res.name, Repair: repair})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return merry.Prependf(err, "creating %s", path)
	}
	defer f.Close()

	if err := gocsv.Marshal(&rows, f); err != nil {
		return merry.Prependf(err, "writing %s", path)
	}
	return f.Close()
}
