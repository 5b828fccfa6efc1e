// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmx3600 "github.com/Avalanche-io/otio-edl"
)

const overlapping = `TITLE: Overlap
FCM: NON-DROP FRAME

001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
* FROM CLIP NAME: Shot1
002  B001     V     C        00:00:10:00 00:00:12:00 01:00:04:00 01:00:06:00
* FROM CLIP NAME: Shot2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	dir := t.TempDir()
	path := writeFile(t, dir, "edlconv.yaml", `rate: 25
style: nucoda
ignore_mismatch: true
jobs: 2
`)

	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Rate)
	assert.Equal(t, "nucoda", cfg.Style)
	assert.True(t, cfg.IgnoreMismatch)
	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, cmx3600.DefaultReelNameLength, cfg.ReelLength)

	_, err = loadConfig(writeFile(t, dir, "bad.yaml", "rate: [1, 2"))
	assert.True(t, errors.Is(err, cmx3600.ErrInvalidConfiguration))

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		kind   error
	}{
		{"rate", func(c *Config) { c.Rate = 0 }, cmx3600.ErrInvalidConfiguration},
		{"style", func(c *Config) { c.Style = "resolve" }, cmx3600.ErrInvalidStyle},
		{"reel length", func(c *Config) { c.ReelLength = -1 }, cmx3600.ErrInvalidConfiguration},
		{"jobs", func(c *Config) { c.Jobs = 0 }, cmx3600.ErrInvalidConfiguration},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, cmx3600.ErrInvalidConfiguration},
	}

	require.NoError(t, defaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestParseArgs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "edlconv.yaml", "style: premiere\nrate: 25\n")

	cfg, inputs, err := parseArgs([]string{"-config", path, "-rate", "30", "a.edl"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Rate, "flag overrides file")
	assert.Equal(t, "premiere", cfg.Style, "file overrides default")
	assert.Equal(t, []string{"a.edl"}, inputs)

	_, _, err = parseArgs([]string{"a.edl", "b.edl"})
	assert.True(t, errors.Is(err, cmx3600.ErrInvalidConfiguration))

	_, _, err = parseArgs([]string{"-style", "resolve"})
	assert.True(t, errors.Is(err, cmx3600.ErrInvalidStyle))
}

func TestRun_Stdin(t *testing.T) {
	cfg := defaultConfig()
	cfg.Style = "premiere"

	var out bytes.Buffer
	err := run(context.Background(), cfg, nil,
		strings.NewReader("TITLE: Piped\n001  A001     V     C        00:00:00:00 00:00:01:00 01:00:00:00 01:00:01:00\n"),
		&out, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.String(), "TITLE: Piped\nFCM: NON-DROP FRAME\n"), out.String())
	assert.Contains(t, out.String(), "001  A001     V     C     ")
}

func TestRun_Batch(t *testing.T) {
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "converted")

	first := writeFile(t, in, "reel1.edl", overlapping)
	second := writeFile(t, in, "reel2.edl", strings.Replace(overlapping, "Overlap", "Second", 1))

	cfg := defaultConfig()
	cfg.IgnoreMismatch = true
	cfg.Out = outDir
	cfg.Repairs = filepath.Join(outDir, "repairs.csv")
	cfg.Jobs = 2

	require.NoError(t, run(context.Background(), cfg, []string{first, second}, nil, nil, slog.New(slog.DiscardHandler)))

	converted, err := os.ReadFile(filepath.Join(outDir, "reel1.edl"))
	require.NoError(t, err)
	assert.Contains(t, strings.Join(strings.Fields(string(converted)), " "),
		"002 B001 V C 00:00:10:00 00:00:12:00 01:00:05:00 01:00:07:00")

	report, err := os.ReadFile(cfg.Repairs)
	require.NoError(t, err)

	var rows []repairRow
	require.NoError(t, gocsv.UnmarshalBytes(report, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, first, rows[0].File)
	assert.Equal(t, second, rows[1].File)
	assert.Equal(t, "2", rows[0].Event)
	assert.Equal(t, "01:00:04:00", rows[0].RecordIn)
	assert.Equal(t, "01:00:05:00", rows[0].RepairedIn)
}

func TestRun_StrictFailure(t *testing.T) {
	in := t.TempDir()
	path := writeFile(t, in, "reel1.edl", overlapping)

	cfg := defaultConfig()
	cfg.Out = t.TempDir()

	err := run(context.Background(), cfg, []string{path}, nil, nil, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmx3600.ErrTimecodeMismatch))
	assert.Contains(t, err.Error(), "reel1.edl")
}

func TestRun_DuplicateNames(t *testing.T) {
	first := writeFile(t, t.TempDir(), "reel1.edl", overlapping)
	second := writeFile(t, t.TempDir(), "reel1.edl", overlapping)
	outDir := filepath.Join(t.TempDir(), "converted")

	cfg := defaultConfig()
	cfg.IgnoreMismatch = true
	cfg.Out = outDir

	err := run(context.Background(), cfg, []string{first, second}, nil, nil, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmx3600.ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), first)
	assert.Contains(t, err.Error(), second)

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "nothing should be written")
}

func TestRun_MultipleTitles(t *testing.T) {
	input := "TITLE: Reel One\n" +
		"001  A001     V     C        00:00:00:00 00:00:01:00 01:00:00:00 01:00:01:00\n" +
		"TITLE: Reel Two\n" +
		"001  B001     V     C        00:00:00:00 00:00:02:00 02:00:00:00 02:00:02:00\n"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), defaultConfig(), nil,
		strings.NewReader(input), &out, slog.New(slog.DiscardHandler)))

	text := out.String()
	one := strings.Index(text, "TITLE: Reel One")
	two := strings.Index(text, "TITLE: Reel Two")
	require.True(t, one >= 0 && two > one, text)
	assert.Contains(t, text[:two], "A001")
	assert.Contains(t, text[two:], "B001")
	assert.NotContains(t, text[two:], "A001")
}

func TestDecodeText(t *testing.T) {
	utf8Text := []byte("* FROM CLIP NAME: Café\n")
	got, err := decodeText(utf8Text)
	require.NoError(t, err)
	assert.Equal(t, utf8Text, got)

	latin1 := []byte("* FROM CLIP NAME: Caf\xe9\n")
	got, err = decodeText(latin1)
	require.NoError(t, err)
	assert.Equal(t, "* FROM CLIP NAME: Café\n", string(got))
}
