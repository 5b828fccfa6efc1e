// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Package cmx3600 provides support for reading and writing CMX 3600 EDL (Edit Decision List) files.
// The CMX 3600 format is a text-based interchange format used in video editing.
package cmx3600

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Avalanche-io/otio-edl/timecode"
	"github.com/ansel1/merry/v2"
)

// DefaultRate is the frame rate assumed when the caller supplies none.
const DefaultRate = timecode.DefaultRate

// metadataNamespace is the metadata key everything this package records lives under.
const metadataNamespace = "cmx_3600"

// EditType represents the type of edit in an EDL.
type EditType string

const (
	// EditTypeCut represents a cut (instantaneous transition).
	EditTypeCut EditType = "C"
	// EditTypeDissolve represents a dissolve/cross-fade.
	EditTypeDissolve EditType = "D"
	// EditTypeWipe represents a wipe transition.
	EditTypeWipe EditType = "W"
	// EditTypeKeyBackground represents a key with background.
	EditTypeKeyBackground EditType = "KB"
	// EditTypeKey represents a key (overlay).
	EditTypeKey EditType = "K"
	// EditTypeKeyOut represents a key removal.
	EditTypeKeyOut EditType = "KO"
	// EditTypeSyncRoll represents a sync roll.
	EditTypeSyncRoll EditType = "R"
)

// knownEditTypes holds every edit type code a header may carry besides W###.
var knownEditTypes = map[EditType]bool{
	EditTypeCut:           true,
	EditTypeSyncRoll:      true,
	EditTypeDissolve:      true,
	EditTypeWipe:          true,
	EditTypeKey:           true,
	EditTypeKeyBackground: true,
	EditTypeKeyOut:        true,
	"M":                   true,
	"F":                   true,
	"Q":                   true,
	"N":                   true,
	"X":                   true,
}

// wipeCodeRegex matches a numbered wipe edit type.
var wipeCodeRegex = regexp.MustCompile(`^W\d{3}$`)

// IsTransition returns true for edit types that span two sources.
func (e EditType) IsTransition() bool {
	return e == EditTypeDissolve || e == EditTypeWipe
}

// TrackType names a track in the timeline (V, A1, A2, ...).
type TrackType string

const (
	// TrackTypeVideo represents a video track.
	TrackTypeVideo TrackType = "V"
	// TrackTypeAudio represents an audio track.
	TrackTypeAudio TrackType = "A"
	// TrackTypeAudio1 represents audio track 1.
	TrackTypeAudio1 TrackType = "A1"
	// TrackTypeAudio2 represents audio track 2.
	TrackTypeAudio2 TrackType = "A2"
)

// IsAudioTrack returns true if the track type is audio.
func (t TrackType) IsAudioTrack() bool {
	return strings.HasPrefix(string(t), "A")
}

// Channels is the channel assignment field of an event line (V, A, B, AA/V, ...).
type Channels string

// channelMap expands channel shorthand into track names.
// Channels not listed are used as the track name verbatim.
var channelMap = map[Channels][]TrackType{
	"V":    {TrackTypeVideo},
	"A":    {TrackTypeAudio1},
	"AA":   {TrackTypeAudio1, TrackTypeAudio2},
	"B":    {TrackTypeVideo, TrackTypeAudio1},
	"A2/V": {TrackTypeVideo, TrackTypeAudio2},
	"AA/V": {TrackTypeVideo, TrackTypeAudio1, TrackTypeAudio2},
}

// Tracks returns the tracks an edit on these channels lands on.
func (c Channels) Tracks() []TrackType {
	if tracks, ok := channelMap[c]; ok {
		return tracks
	}
	return []TrackType{TrackType(c)}
}

// Edit is one event line: a single source placed on the record side.
type Edit struct {
	Line               int             // Source line number
	EditNumber         string          // Normalized edit number
	ReelName           string          // Source reel/tape name
	Channels           Channels        // Channel assignment (V, A, B, AA/V, ...)
	EditType           EditType        // Edit type (C, D, W, etc.)
	WipeCode           string          // Wipe code (e.g., W001, W002)
	TransitionDuration int             // Transition duration in frames (for dissolves/wipes)
	SourceIn           timecode.Frames // Source in
	SourceOut          timecode.Frames // Source out
	RecordIn           timecode.Frames // Record in
	RecordOut          timecode.Frames // Record out
	Timecodes          [4]string       // Source in/out, record in/out as written
	Adjusted           bool            // Record timecodes were repaired
}

// SourceDuration is the span of source material the edit consumes.
func (e *Edit) SourceDuration() timecode.Frames {
	return e.SourceOut - e.SourceIn
}

// RecordDuration is the span the edit occupies on the record side.
func (e *Edit) RecordDuration() timecode.Frames {
	return e.RecordOut - e.RecordIn
}

// EDLEvent represents a single edit event in an EDL: every line sharing one
// edit number plus the comments that follow them.
type EDLEvent struct {
	EventNumber  string        // Normalized edit number
	Line         int           // Line of the first event line
	Edits        []Edit        // Event lines, in order
	Comments     []string      // Unrecognised comment lines, preserved verbatim
	ClipName     string        // Clip name from comment
	DestClipName string        // TO CLIP NAME for the incoming side of a transition
	SpeedEffects []SpeedEffect // M2 motion effects
	FreezeFrame  bool          // Freeze frame detected
	FilePath     string        // File path from FROM CLIP/FROM FILE comment
	Markers      []Marker      // Locators/markers
	ASCCDL       *ASCCDL       // ASC CDL color correction
}

// HasTransition reports whether any line of the event is a transition.
func (e *EDLEvent) HasTransition() bool {
	for _, edit := range e.Edits {
		if edit.EditType.IsTransition() {
			return true
		}
	}
	return false
}

// HasMotion reports whether the event carries a speed or freeze effect.
func (e *EDLEvent) HasMotion() bool {
	return e.FreezeFrame || len(e.SpeedEffects) > 0
}

// SpeedEffect represents an M2 motion effect.
type SpeedEffect struct {
	Name     string  // Effect name/reel
	Speed    float64 // Speed multiplier (frames per second)
	Timecode string  // Source timecode
}

// Marker represents a locator or marker in an EDL.
type Marker struct {
	Timecode string          // Marker timecode
	Frames   timecode.Frames // Marker timecode as a frame count
	Color    string          // Marker color
	Comment  string          // Marker comment
	Line     int             // Source line number
}

// ASCCDL holds ASC Color Decision List values exactly as written.
// No color science is applied to them.
type ASCCDL struct {
	SOP string // ASC_SOP (slope)(offset)(power)
	SAT string // ASC_SAT saturation
}

// DefaultReelNameLength is the default maximum length for reel names.
const DefaultReelNameLength = 8

// SanitizeReelName ensures a reel name conforms to EDL requirements.
// Reel names should be alphanumeric and not exceed the specified length.
// If maxLength is 0 or negative, no length limit is applied.
func SanitizeReelName(name string, maxLength int) string {
	// Replace spaces and special characters
	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)

	// Truncate to max length if maxLength is positive
	if maxLength > 0 && len(name) > maxLength {
		name = name[:maxLength]
	}

	// Ensure not empty
	if name == "" {
		name = "AX"
	}

	return name
}

// isBlackReel reports whether a reel names the black special source.
func isBlackReel(reel string) bool {
	upper := strings.ToUpper(reel)
	return upper == "BL" || upper == "BLACK"
}

// isBarsReel reports whether a reel names the bars special source.
func isBarsReel(reel string) bool {
	upper := strings.ToUpper(reel)
	return upper == "BARS" || upper == "SMPTEBARS"
}

var (
	// ErrMalformedTimecode marks timecode text that cannot be read. Always fatal.
	ErrMalformedTimecode = timecode.ErrMalformedTimecode
	// ErrNegativeDuration marks a source or record span that runs backwards.
	ErrNegativeDuration = timecode.ErrNegativeDuration
	// ErrMalformedEvent marks an event line missing required fields. Always fatal.
	ErrMalformedEvent = merry.Sentinel("malformed event")
	// ErrTimecodeMismatch marks adjacent events whose record timecodes disagree.
	ErrTimecodeMismatch = merry.Sentinel("timecode mismatch")
	// ErrUnsupportedFeature marks a construct the EDL mapping cannot represent.
	ErrUnsupportedFeature = merry.Sentinel("unsupported feature")
	// ErrInvalidStyle marks an unknown output style name.
	ErrInvalidStyle = merry.Sentinel("invalid style")
	// ErrInvalidConfiguration marks a bad rate or other parameter.
	ErrInvalidConfiguration = merry.Sentinel("invalid configuration")
)

// ParseError represents an error that occurred during EDL parsing.
type ParseError struct {
	Line    int
	Event   string
	Text    string
	Kind    error
	Message string
}

func (e *ParseError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("line %d: event %s: %s", e.Line, e.Event, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Unwrap returns the error kind so callers can use errors.Is.
func (e *ParseError) Unwrap() error {
	return e.Kind
}

// EncodeError represents an error that occurred during EDL encoding.
type EncodeError struct {
	Item    string
	Kind    error
	Message string
}

func (e *EncodeError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("encode error: %s: %s", e.Item, e.Message)
	}
	return fmt.Sprintf("encode error: %s", e.Message)
}

// Unwrap returns the error kind so callers can use errors.Is.
func (e *EncodeError) Unwrap() error {
	return e.Kind
}
