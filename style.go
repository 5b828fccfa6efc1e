// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/orsinium-labs/enum"
	"gopkg.in/yaml.v3"
)

// OutputStyle represents the style/flavor of EDL output.
type OutputStyle enum.Member[string]

var (
	// OutputStyleAvid represents Avid Media Composer style EDL.
	OutputStyleAvid = OutputStyle{Value: "avid"}
	// OutputStyleNucoda represents Nucoda style EDL.
	OutputStyleNucoda = OutputStyle{Value: "nucoda"}
	// OutputStylePremiere represents Adobe Premiere Pro style EDL.
	OutputStylePremiere = OutputStyle{Value: "premiere"}

	// Styles lists every supported output style.
	Styles = enum.New(OutputStyleAvid, OutputStyleNucoda, OutputStylePremiere)

	// DefaultStyle is used when no style is named.
	DefaultStyle = OutputStyleAvid
)

func (s OutputStyle) String() string {
	return s.Value
}

// ParseOutputStyle resolves a style name. An empty name or "default" selects
// DefaultStyle.
func ParseOutputStyle(name string) (OutputStyle, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "default" {
		return DefaultStyle, nil
	}

	style := Styles.Parse(name)
	if style == nil {
		return OutputStyle{}, merry.Wrap(ErrInvalidStyle, merry.WithMessagef("unknown output style %q", name))
	}
	return *style, nil
}

// styleRules are the formatting choices that vary between output styles.
type styleRules struct {
	NumberWidth          int    `yaml:"number_width"`
	NumberSeparator      string `yaml:"number_separator"`
	ReelMinWidth         int    `yaml:"reel_min_width"`
	ChannelWidth         int    `yaml:"channel_width"`
	EditTypeWidth        int    `yaml:"edit_type_width"`
	DurationWidth        int    `yaml:"duration_width"`
	ExplicitAudioChannel bool   `yaml:"explicit_audio_channel"`
	ClipNamePrefix       string `yaml:"clip_name_prefix"`
	ToClipNamePrefix     string `yaml:"to_clip_name_prefix"`
	SourceFilePrefix     string `yaml:"source_file_prefix"`
	LocatorPrefix        string `yaml:"locator_prefix"`
	FreezeFrameComment   string `yaml:"freeze_frame_comment"`
	FreezeNameSuffix     string `yaml:"freeze_name_suffix"`
	EmitCDL              bool   `yaml:"emit_cdl"`
	BlankLineAfterEvent  bool   `yaml:"blank_line_after_event"`
}

//go:embed styles.yaml
var stylesYAML []byte

// styleTable is loaded once and only read afterwards.
var styleTable = mustLoadStyles(stylesYAML)

func mustLoadStyles(data []byte) map[string]styleRules {
	table, err := loadStyles(data)
	if err != nil {
		panic(err)
	}
	return table
}

func loadStyles(data []byte) (map[string]styleRules, error) {
	table := map[string]styleRules{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing style table: %w", err)
	}
	for _, style := range Styles.Members() {
		if _, ok := table[style.Value]; !ok {
			return nil, fmt.Errorf("style table has no row for %q", style.Value)
		}
	}
	return table, nil
}

// rules returns the formatting row for s.
func (s OutputStyle) rules() styleRules {
	return styleTable[s.Value]
}
