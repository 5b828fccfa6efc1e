// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Avalanche-io/gotio"
	"github.com/Avalanche-io/gotio/opentime"
	"github.com/samber/lo"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// audioChannelRegex matches an audio track name usable as a channel field.
var audioChannelRegex = regexp.MustCompile(`^A\d+$`)

// Encoder writes OpenTimelineIO Timeline to CMX 3600 EDL format.
type Encoder struct {
	w           io.Writer
	style       OutputStyle
	reelNameLen int
	rate        float64
	dropFrame   *bool
	logger      *slog.Logger
}

// NewEncoder creates a new EDL encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:           w,
		style:       DefaultStyle,
		reelNameLen: DefaultReelNameLength,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// SetStyle sets the output style (avid, nucoda, premiere).
func (e *Encoder) SetStyle(style OutputStyle) {
	e.style = style
}

// SetReelNameLength sets the maximum length for reel names.
// Use 0 or negative for unlimited length.
func (e *Encoder) SetReelNameLength(length int) {
	e.reelNameLen = length
}

// SetRate sets the frame rate for timecode generation.
// Zero uses the timeline's own rate.
func (e *Encoder) SetRate(rate float64) {
	e.rate = rate
}

// SetDropFrame forces drop-frame or non-drop-frame timecode. By default
// drop-frame is used at drop-frame rates unless the timeline says otherwise.
func (e *Encoder) SetDropFrame(dropFrame bool) {
	e.dropFrame = &dropFrame
}

// SetLogger sets the logger that receives encode diagnostics.
func (e *Encoder) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e.logger = logger
}

// writerLine is one event line ready to be numbered.
type writerLine struct {
	reel      string
	channel   string
	editType  string
	duration  int
	sourceIn  timecode.Frames
	sourceOut timecode.Frames
	recordIn  timecode.Frames
	recordOut timecode.Frames
}

// writerEvent is one numbered event: its lines and the notes under them.
type writerEvent struct {
	recordIn timecode.Frames
	lines    []writerLine
	notes    []string
}

// encodeState holds what one Encode call derives from the timeline.
type encodeState struct {
	rules           styleRules
	rate            float64
	dropFrame       bool
	start           timecode.Frames
	skipLeadingGaps bool
}

// Encode writes the Timeline to EDL format. Nothing is written unless the
// whole timeline can be expressed.
func (e *Encoder) Encode(t *gotio.Timeline) error {
	if !Styles.Contains(e.style) {
		return &EncodeError{
			Kind:    ErrInvalidStyle,
			Message: fmt.Sprintf("unknown output style %q", e.style.Value),
		}
	}
	if e.rate != 0 && !timecode.ValidRate(e.rate) {
		return &EncodeError{
			Kind:    ErrInvalidConfiguration,
			Message: fmt.Sprintf("invalid frame rate %v", e.rate),
		}
	}
	if t == nil {
		return &EncodeError{Kind: ErrInvalidConfiguration, Message: "timeline is nil"}
	}

	for _, child := range t.Tracks().Children() {
		if _, ok := child.(*gotio.Track); !ok {
			return &EncodeError{
				Item:    child.Name(),
				Kind:    ErrUnsupportedFeature,
				Message: "EDL format supports only tracks at the top level",
			}
		}
	}

	// Get video tracks (EDL supports only one video track)
	videoTracks := t.VideoTracks()
	if len(videoTracks) > 1 {
		return &EncodeError{
			Item:    videoTracks[1].Name(),
			Kind:    ErrUnsupportedFeature,
			Message: "EDL format supports only one video track",
		}
	}

	state := e.newState(t)

	// A track that starts later than another needs no black leader; reading
	// the EDL back puts the gap in again.
	state.skipLeadingGaps = lo.SomeBy(append(videoTracks, t.AudioTracks()...), func(track *gotio.Track) bool {
		children := track.Children()
		if len(children) == 0 {
			return false
		}
		_, isGap := children[0].(*gotio.Gap)
		return !isGap
	})

	var events []*writerEvent
	for _, track := range videoTracks {
		trackEvents, err := e.trackEvents(state, track, string(TrackTypeVideo))
		if err != nil {
			return err
		}
		events = append(events, trackEvents...)
	}
	for i, track := range t.AudioTracks() {
		trackEvents, err := e.trackEvents(state, track, e.audioChannel(state, track, i))
		if err != nil {
			return err
		}
		events = append(events, trackEvents...)
	}

	// Record order; video events were collected first and win ties.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].recordIn < events[j].recordIn
	})
	events = mergeChannels(events)

	var buf bytes.Buffer
	e.writeHeader(&buf, state, t)
	for i, ev := range events {
		e.writeEvent(&buf, state, i+1, ev)
	}

	e.logger.Debug("encoded EDL",
		slog.Int("events", len(events)),
		slog.String("style", e.style.Value),
		slog.Float64("rate", state.rate),
	)

	_, err := e.w.Write(buf.Bytes())
	return err
}

func (e *Encoder) newState(t *gotio.Timeline) *encodeState {
	cmx := namespace(t.Metadata())

	state := &encodeState{
		rules: e.style.rules(),
		rate:  e.rate,
	}
	if state.rate == 0 {
		state.rate = timelineRate(t, cmx)
	}

	state.dropFrame = timecode.IsDropFrameRate(state.rate)
	if v, ok := cmx["drop_frame"].(bool); ok {
		state.dropFrame = state.dropFrame && v
	}
	if e.dropFrame != nil {
		state.dropFrame = *e.dropFrame && timecode.IsDropFrameRate(state.rate)
	}

	if text, ok := cmx["start_timecode"].(string); ok {
		if start, err := timecode.Parse(text, state.rate, state.dropFrame); err == nil {
			state.start = start
		} else {
			e.logger.Warn("ignoring unreadable start timecode",
				slog.String("timecode", text),
				slog.String("error", err.Error()),
			)
		}
	}
	return state
}

// timelineRate finds the rate a timeline was built at: the EDL rate it was
// read with, else the first clip's rate, else DefaultRate.
func timelineRate(t *gotio.Timeline, cmx map[string]interface{}) float64 {
	if rate, ok := toFloat(cmx["edl_rate"]); ok && timecode.ValidRate(rate) {
		return rate
	}

	tracks := append(t.VideoTracks(), t.AudioTracks()...)
	for _, track := range tracks {
		for _, child := range track.Children() {
			if clip, ok := child.(*gotio.Clip); ok {
				dur, err := clip.Duration()
				if err == nil && dur.Rate() > 0 {
					return dur.Rate()
				}
			}
		}
	}
	return DefaultRate
}

func (e *Encoder) audioChannel(state *encodeState, track *gotio.Track, index int) string {
	channel := track.Name()
	if !audioChannelRegex.MatchString(channel) {
		channel = fmt.Sprintf("A%d", index+1)
	}
	if channel == string(TrackTypeAudio1) && !state.rules.ExplicitAudioChannel {
		channel = string(TrackTypeAudio)
	}
	return channel
}

// trackEvents walks one track and returns its events with record positions.
func (e *Encoder) trackEvents(state *encodeState, track *gotio.Track, channel string) ([]*writerEvent, error) {
	var (
		events   []*writerEvent
		cursor   = state.start
		previous *writerEvent
	)

	children := track.Children()
	for i := 0; i < len(children); i++ {
		switch item := children[i].(type) {
		case *gotio.Gap:
			duration, err := item.Duration()
			if err != nil {
				return nil, err
			}
			if i == 0 && state.skipLeadingGaps {
				cursor += toFrames(duration, state.rate)
				continue
			}
			ev := e.gapEvent(channel, cursor, toFrames(duration, state.rate))
			events = append(events, ev)
			previous = ev
			cursor = ev.lines[0].recordOut

		case *gotio.Clip:
			ev, err := e.clipEvent(state, track, item, channel, cursor)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
			previous = ev
			cursor = ev.lines[0].recordOut

		case *gotio.Transition:
			if i+1 >= len(children) {
				return nil, e.unsupported(track, item.Name(), "transition has no incoming item")
			}
			ev, err := e.transitionEvent(state, track, item, children[i+1], channel, cursor, previous)
			if err != nil {
				return nil, err
			}
			i++
			events = append(events, ev)
			previous = ev
			cursor = ev.lines[len(ev.lines)-1].recordOut

		default:
			return nil, e.unsupported(track, children[i].Name(), "item type cannot be written to an EDL")
		}
	}

	return events, nil
}

// mergeChannels folds cut events that place the same source over the same
// record range on several tracks into one event with a combined channel
// code, the reverse of channelMap. Notes of the folded events must already
// appear under the event that keeps them.
func mergeChannels(events []*writerEvent) []*writerEvent {
	merged := make([]*writerEvent, 0, len(events))
	folded := make([]bool, len(events))

	for i, ev := range events {
		if folded[i] {
			continue
		}
		merged = append(merged, ev)
		if !ev.isCut() {
			continue
		}

		group := []int{}
		tracks := []TrackType{channelTrack(ev.lines[0].channel)}
		for j := i + 1; j < len(events) && events[j].recordIn == ev.recordIn; j++ {
			other := events[j]
			if folded[j] || !other.isCut() || !sameSource(ev.lines[0], other.lines[0]) {
				continue
			}
			track := channelTrack(other.lines[0].channel)
			if lo.Contains(tracks, track) || !lo.Every(ev.notes, other.notes) {
				continue
			}
			group = append(group, j)
			tracks = append(tracks, track)
		}
		if len(group) == 0 {
			continue
		}

		code, ok := lo.FindKeyBy(channelMap, func(_ Channels, mapped []TrackType) bool {
			return len(mapped) == len(tracks) && lo.Every(mapped, tracks)
		})
		if !ok || len(tracks) < 2 {
			continue
		}
		ev.lines[0].channel = string(code)
		for _, j := range group {
			folded[j] = true
		}
	}

	return merged
}

// isCut reports whether ev is a single cut line.
func (ev *writerEvent) isCut() bool {
	return len(ev.lines) == 1 && ev.lines[0].editType == string(EditTypeCut)
}

func sameSource(a, b writerLine) bool {
	return strings.TrimSpace(a.reel) == strings.TrimSpace(b.reel) &&
		a.sourceIn == b.sourceIn && a.sourceOut == b.sourceOut &&
		a.recordIn == b.recordIn && a.recordOut == b.recordOut
}

// channelTrack maps a written channel field back to its track.
func channelTrack(channel string) TrackType {
	if channel == string(TrackTypeAudio) {
		return TrackTypeAudio1
	}
	return TrackType(channel)
}

func (e *Encoder) unsupported(track *gotio.Track, item, message string) error {
	return &EncodeError{
		Item:    fmt.Sprintf("%s/%s", track.Name(), item),
		Kind:    ErrUnsupportedFeature,
		Message: message,
	}
}

func (e *Encoder) gapEvent(channel string, at, duration timecode.Frames) *writerEvent {
	return &writerEvent{
		recordIn: at,
		lines: []writerLine{{
			reel:      e.reelField("BL"),
			channel:   channel,
			editType:  string(EditTypeCut),
			sourceIn:  0,
			sourceOut: duration,
			recordIn:  at,
			recordOut: at + duration,
		}},
	}
}

// clipLine places a clip at the record cursor.
func (e *Encoder) clipLine(state *encodeState, clip *gotio.Clip, channel string, at timecode.Frames) (writerLine, error) {
	duration, err := clip.Duration()
	if err != nil {
		return writerLine{}, err
	}

	sourceRange := clip.SourceRange()
	if sourceRange == nil {
		// Use available range if no source range
		ar, err := clip.AvailableRange()
		if err != nil {
			return writerLine{}, err
		}
		sourceRange = &ar
	}

	frames := toFrames(duration, state.rate)
	sourceIn := toFrames(sourceRange.StartTime(), state.rate)

	return writerLine{
		reel:      e.reelField(clipReel(clip)),
		channel:   channel,
		editType:  string(EditTypeCut),
		sourceIn:  sourceIn,
		sourceOut: sourceIn + frames,
		recordIn:  at,
		recordOut: at + frames,
	}, nil
}

func (e *Encoder) clipEvent(state *encodeState, track *gotio.Track, clip *gotio.Clip, channel string, at timecode.Frames) (*writerEvent, error) {
	line, err := e.clipLine(state, clip, channel, at)
	if err != nil {
		return nil, err
	}

	ev := &writerEvent{recordIn: at, lines: []writerLine{line}}
	notes, err := e.clipNotes(state, track, clip, line, true)
	if err != nil {
		return nil, err
	}
	ev.notes = notes
	return ev, nil
}

// transitionEvent writes a zero-length outgoing line and the incoming line
// under one edit number.
func (e *Encoder) transitionEvent(state *encodeState, track *gotio.Track, tr *gotio.Transition, next any, channel string, at timecode.Frames, previous *writerEvent) (*writerEvent, error) {
	cmx := namespace(tr.Metadata())

	editType, err := e.transitionCode(track, tr, cmx)
	if err != nil {
		return nil, err
	}

	inOffset := toFrames(tr.InOffset(), state.rate)
	duration := int(inOffset + toFrames(tr.OutOffset(), state.rate))

	// A transition centred on the cut starts inside the outgoing item.
	if inOffset > 0 && previous != nil {
		last := &previous.lines[len(previous.lines)-1]
		last.recordOut -= inOffset
		last.sourceOut -= inOffset
	}
	recordIn := at - inOffset

	outgoing := writerLine{
		reel:     e.reelField("BL"),
		channel:  channel,
		editType: string(EditTypeCut),
		recordIn: recordIn,
	}
	if reel, ok := cmx["from_reel"].(string); ok {
		outgoing.reel = e.reelField(reel)
		if text, ok := cmx["from_source_in"].(string); ok {
			if frames, err := timecode.Parse(text, state.rate, state.dropFrame); err == nil {
				outgoing.sourceIn = frames
			}
		}
	} else if previous != nil {
		last := previous.lines[len(previous.lines)-1]
		outgoing.reel = last.reel
		outgoing.sourceIn = last.sourceOut
	}
	outgoing.sourceOut = outgoing.sourceIn
	outgoing.recordOut = outgoing.recordIn

	ev := &writerEvent{recordIn: recordIn}

	var incoming writerLine
	switch item := next.(type) {
	case *gotio.Clip:
		incoming, err = e.clipLine(state, item, channel, at)
		if err != nil {
			return nil, err
		}
		if fromName, ok := cmx["from_clip_name"].(string); ok && fromName != "" {
			ev.notes = append(ev.notes, state.rules.ClipNamePrefix+fromName)
		}
		notes, err := e.clipNotes(state, track, item, incoming, false)
		if err != nil {
			return nil, err
		}
		ev.notes = append(ev.notes, notes...)
	case *gotio.Gap:
		gapDuration, err := item.Duration()
		if err != nil {
			return nil, err
		}
		incoming = e.gapEvent(channel, at, toFrames(gapDuration, state.rate)).lines[0]
	default:
		return nil, e.unsupported(track, tr.Name(), "transition must lead into a clip or gap")
	}

	incoming.editType = editType
	incoming.duration = duration
	incoming.recordIn -= inOffset
	incoming.sourceIn -= inOffset

	ev.lines = []writerLine{outgoing, incoming}
	return ev, nil
}

func (e *Encoder) transitionCode(track *gotio.Track, tr *gotio.Transition, cmx map[string]interface{}) (string, error) {
	code, _ := cmx["transition"].(string)

	switch tr.TransitionType() {
	case gotio.TransitionTypeSMPTEDissolve:
		return string(EditTypeDissolve), nil
	case gotio.TransitionTypeCustom:
		if wipeCodeRegex.MatchString(tr.Name()) {
			return tr.Name(), nil
		}
		if wipeCodeRegex.MatchString(code) {
			return code, nil
		}
	}
	return "", e.unsupported(track, tr.Name(), fmt.Sprintf("transition type %q cannot be written to an EDL", tr.TransitionType()))
}

// clipNotes renders the comment lines under a clip in canonical order: clip
// name, to-clip name, source file, motion, freeze frame, CDL, locators, then
// preserved comments.
func (e *Encoder) clipNotes(state *encodeState, track *gotio.Track, clip *gotio.Clip, line writerLine, isFrom bool) ([]string, error) {
	rules := state.rules
	metadata := clip.Metadata()
	cmx := namespace(metadata)

	var speeds []float64
	freeze := false
	for _, effect := range clip.Effects() {
		switch fx := effect.(type) {
		case *gotio.FreezeFrame:
			freeze = true
		case *gotio.LinearTimeWarp:
			if fx.TimeScalar() == 0 {
				freeze = true
				continue
			}
			speeds = append(speeds, fx.TimeScalar())
		default:
			return nil, e.unsupported(track, clip.Name(), "effect cannot be written to an EDL")
		}
	}

	var notes []string

	name := clip.Name()
	if freeze && name != "" {
		name += rules.FreezeNameSuffix
	}
	_, hasClipName := cmx["clip_name"]
	_, hasDestName := cmx["dest_clip_name"]
	switch {
	case hasDestName || (!isFrom && len(cmx) == 0):
		notes = append(notes, rules.ToClipNamePrefix+name)
	case name != "" && (hasClipName || (isFrom && len(cmx) == 0)):
		notes = append(notes, rules.ClipNamePrefix+name)
	}

	if rules.SourceFilePrefix != "" {
		if ref, ok := clip.MediaReference().(*gotio.ExternalReference); ok {
			if url := ref.TargetURL(); url != "" && url != clipReel(clip) {
				notes = append(notes, rules.SourceFilePrefix+url)
			}
		}
	}

	reel := strings.TrimSpace(line.reel)
	trigger := timecode.Format(line.sourceIn, state.rate, state.dropFrame)
	for _, scalar := range speeds {
		notes = append(notes, fmt.Sprintf("M2   %-8s %05.1f    %s", reel, scalar*state.rate, trigger))
	}
	if freeze {
		notes = append(notes, fmt.Sprintf("M2   %-8s %05.1f    %s", reel, 0.0, trigger))
		if rules.FreezeFrameComment != "" {
			notes = append(notes, rules.FreezeFrameComment)
		}
	}

	if cdl, ok := metadata["cdl"].(map[string]interface{}); ok && rules.EmitCDL {
		if sop, ok := cdl["asc_sop"]; ok && fmt.Sprint(sop) != "" {
			notes = append(notes, fmt.Sprintf("* ASC_SOP %v", sop))
		}
		if sat, ok := cdl["asc_sat"]; ok && fmt.Sprint(sat) != "" {
			notes = append(notes, fmt.Sprintf("* ASC_SAT %v", sat))
		}
	}

	for _, marker := range clip.Markers() {
		notes = append(notes, e.locator(state, marker, line))
	}

	for _, comment := range stringSlice(cmx["comments"]) {
		notes = append(notes, "* "+comment)
	}

	return notes, nil
}

// locator renders a marker at its record timecode, or at its source
// timecode when it was read as one.
func (e *Encoder) locator(state *encodeState, marker *gotio.Marker, line writerLine) string {
	cmx := namespace(marker.Metadata())

	at := toFrames(marker.MarkedRange().StartTime(), state.rate)
	if sourceSide, _ := cmx["source_side"].(bool); !sourceSide {
		at = line.recordIn + (at - line.sourceIn)
	}

	color, _ := cmx["color"].(string)
	if color == "" {
		color = string(marker.Color())
	}

	text := fmt.Sprintf("%s%s %-7s %s",
		state.rules.LocatorPrefix,
		timecode.Format(at, state.rate, state.dropFrame),
		color,
		marker.Comment(),
	)
	return strings.TrimRight(text, " ")
}

// reelField sanitizes and sizes the reel name. With a limit the field is
// exactly that wide; without one the whole name is kept.
func (e *Encoder) reelField(reel string) string {
	name := SanitizeReelName(reel, e.reelNameLen)
	if e.reelNameLen > 0 {
		return fmt.Sprintf("%-*s", e.reelNameLen, name)
	}
	return name
}

// clipReel finds the reel a clip came from.
func clipReel(clip *gotio.Clip) string {
	if reel, ok := namespace(clip.Metadata())["reel"].(string); ok && reel != "" {
		return reel
	}

	switch ref := clip.MediaReference().(type) {
	case *gotio.GeneratorReference:
		if ref.GeneratorKind() == "SMPTEBars" {
			return "BARS"
		}
		return "BL"
	case *gotio.ExternalReference:
		if ref.Name() != "" {
			return ref.Name()
		}
		return ref.TargetURL()
	case nil:
		return "AX"
	default:
		if ref.Name() != "" {
			return ref.Name()
		}
	}
	return "AX"
}

func (e *Encoder) writeHeader(buf *bytes.Buffer, state *encodeState, t *gotio.Timeline) {
	title := t.Name()
	if title == "" {
		title = "Timeline"
	}
	fmt.Fprintf(buf, "TITLE: %s\n", title)

	if state.dropFrame {
		buf.WriteString("FCM: DROP FRAME\n")
	} else {
		buf.WriteString("FCM: NON-DROP FRAME\n")
	}

	for _, comment := range stringSlice(namespace(t.Metadata())["comments"]) {
		fmt.Fprintf(buf, "* %s\n", comment)
	}
	buf.WriteString("\n")
}

func (e *Encoder) writeEvent(buf *bytes.Buffer, state *encodeState, number int, ev *writerEvent) {
	rules := state.rules
	reelWidth := rules.ReelMinWidth
	if e.reelNameLen > 0 {
		reelWidth = e.reelNameLen
	}

	for _, line := range ev.lines {
		duration := ""
		if line.duration > 0 {
			duration = fmt.Sprintf("%03d", line.duration)
		}
		fmt.Fprintf(buf, "%0*d%s%-*s %-*s %-*s %-*s %s %s %s %s\n",
			rules.NumberWidth, number,
			rules.NumberSeparator,
			reelWidth, line.reel,
			rules.ChannelWidth, line.channel,
			rules.EditTypeWidth, line.editType,
			rules.DurationWidth, duration,
			timecode.Format(line.sourceIn, state.rate, state.dropFrame),
			timecode.Format(line.sourceOut, state.rate, state.dropFrame),
			timecode.Format(line.recordIn, state.rate, state.dropFrame),
			timecode.Format(line.recordOut, state.rate, state.dropFrame),
		)
	}

	for _, note := range ev.notes {
		buf.WriteString(note)
		buf.WriteString("\n")
	}

	if rules.BlankLineAfterEvent {
		buf.WriteString("\n")
	}
}

// WriteToString encodes a timeline as EDL text. A rate of 0 uses the
// timeline's own rate; reelNameLength <= 0 keeps full reel names.
func WriteToString(t *gotio.Timeline, rate float64, style string, reelNameLength int) (string, error) {
	outputStyle, err := ParseOutputStyle(style)
	if err != nil {
		return "", &EncodeError{Kind: ErrInvalidStyle, Message: err.Error()}
	}

	var buf bytes.Buffer
	encoder := NewEncoder(&buf)
	encoder.SetStyle(outputStyle)
	encoder.SetRate(rate)
	encoder.SetReelNameLength(reelNameLength)
	if err := encoder.Encode(t); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// toFrames converts a time to a whole frame count at rate.
func toFrames(t opentime.RationalTime, rate float64) timecode.Frames {
	return timecode.Frames(math.Round(t.RescaledTo(rate).Value()))
}

// namespace returns the cmx_3600 metadata dictionary, or an empty one.
func namespace(metadata map[string]interface{}) map[string]interface{} {
	if cmx, ok := metadata[metadataNamespace].(map[string]interface{}); ok {
		return cmx
	}
	return map[string]interface{}{}
}

// stringSlice reads a list of strings from metadata.
func stringSlice(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		return lo.FilterMap(list, func(item interface{}, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	}
	return nil
}

// toFloat reads a number from metadata.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
