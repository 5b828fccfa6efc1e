// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Avalanche-io/gotio"
	"github.com/Avalanche-io/gotio/opentime"
	"github.com/samber/lo"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// imageSequenceRegex matches a frame-range image sequence path.
// Format: /path/filename.[1001-1020].ext
var imageSequenceRegex = regexp.MustCompile(`.*\.(\[(\d+)-(\d+)\])\.\w+$`)

// markerColors are the marker colors the timeline model knows by name.
var markerColors = []string{
	"RED", "PINK", "ORANGE", "YELLOW", "GREEN", "CYAN", "BLUE", "PURPLE", "MAGENTA", "BLACK", "WHITE",
}

type itemKind int

const (
	itemClip itemKind = iota
	itemGap
	itemTransition
)

// plannedItem is a track item with its record placement resolved.
type plannedItem struct {
	kind       itemKind
	event      *EDLEvent
	edit       *Edit
	recordIn   timecode.Frames
	duration   timecode.Frames
	sourceIn   timecode.Frames
	name       string
	filePath   string
	dest       bool
	annotated  bool
	speeds     []float64
	freeze     bool
	markers    []plannedMarker
	transition *transitionPlan
}

type plannedMarker struct {
	marker     Marker
	at         timecode.Frames
	sourceSide bool
}

// transitionPlan describes the transition into the clip that follows it.
type transitionPlan struct {
	code         string
	wipe         bool
	duration     int
	fromReel     string
	fromSourceIn string
	fromClipName string
	fade         string
}

type trackPlan struct {
	name   TrackType
	cursor timecode.Frames
	items  []*plannedItem
}

// elidedSource is the zero-length outgoing line of a transition.
type elidedSource struct {
	reel     string
	sourceIn string
}

// builder converts reconciled events into a timeline.
type builder struct {
	rate      float64
	dropFrame bool
	logger    *slog.Logger
	start     timecode.Frames
	tracks    map[TrackType]*trackPlan
	order     []TrackType
	owners    []*markerOwner
}

type markerOwner struct {
	event *EDLEvent
	item  *plannedItem
	track TrackType
}

func newBuilder(rate float64, dropFrame bool, logger *slog.Logger) *builder {
	return &builder{
		rate:      rate,
		dropFrame: dropFrame,
		logger:    logger,
		tracks:    make(map[TrackType]*trackPlan),
	}
}

// build plans every event, places markers, then creates the timeline.
func (b *builder) build(doc *document) (*gotio.Timeline, error) {
	if len(doc.Events) > 0 {
		b.start = doc.Events[0].Edits[0].RecordIn
	}

	for _, ev := range doc.Events {
		if err := b.planEvent(ev); err != nil {
			return nil, err
		}
	}

	for _, owner := range b.owners {
		b.placeMarkers(owner)
	}

	return b.materialize(doc)
}

func (b *builder) track(name TrackType) *trackPlan {
	if t, ok := b.tracks[name]; ok {
		return t
	}
	t := &trackPlan{name: name, cursor: b.start}
	b.tracks[name] = t
	b.order = append(b.order, name)
	return t
}

func (b *builder) planEvent(ev *EDLEvent) error {
	hasTransition := ev.HasTransition()

	var (
		from     *elidedSource
		owner    *markerOwner
		eventMap = map[*Edit][]*plannedItem{}
	)

	for idx := range ev.Edits {
		edit := &ev.Edits[idx]

		switch edit.EditType {
		case EditTypeCut, EditTypeDissolve, EditTypeWipe:
		default:
			return &ParseError{
				Line:    edit.Line,
				Event:   ev.EventNumber,
				Text:    string(edit.EditType),
				Kind:    ErrUnsupportedFeature,
				Message: fmt.Sprintf("edit type %q is not supported", edit.EditType),
			}
		}

		isFrom := !hasTransition || idx == 0
		if hasTransition && isFrom && !edit.EditType.IsTransition() && edit.RecordDuration() == 0 {
			from = &elidedSource{reel: edit.ReelName, sourceIn: edit.Timecodes[0]}
			continue
		}

		var transition *transitionPlan
		if edit.EditType.IsTransition() {
			var err error
			transition, err = b.planTransition(ev, edit, from)
			if err != nil {
				return err
			}
		}

		annotate := owner == nil && (isFrom || from != nil) && !isBlackReel(edit.ReelName)
		for i, name := range edit.Channels.Tracks() {
			item, err := b.place(ev, edit, name, transition, isFrom, annotate)
			if err != nil {
				return err
			}
			if item.kind != itemClip {
				continue
			}
			eventMap[edit] = append(eventMap[edit], item)
			if annotate && i == 0 {
				owner = &markerOwner{event: ev, item: item, track: name}
			}
		}
	}

	if owner != nil {
		b.owners = append(b.owners, owner)
	} else if len(ev.Markers) > 0 || len(ev.Comments) > 0 || ev.ASCCDL != nil {
		b.logger.Warn("event has no clip to carry its notes",
			slog.String("event", ev.EventNumber),
			slog.Int("line", ev.Line),
		)
	}

	b.applyMotion(ev, eventMap)
	return nil
}

func (b *builder) planTransition(ev *EDLEvent, edit *Edit, from *elidedSource) (*transitionPlan, error) {
	n := edit.TransitionDuration
	if n <= 0 || timecode.Frames(n) > edit.RecordDuration() {
		return nil, &ParseError{
			Line:  edit.Line,
			Event: ev.EventNumber,
			Text:  strconv.Itoa(n),
			Kind:  ErrMalformedEvent,
			Message: fmt.Sprintf("transition duration %d must be positive and at most the incoming %d frames",
				n, edit.RecordDuration()),
		}
	}

	plan := &transitionPlan{
		code:     string(edit.EditType),
		wipe:     edit.EditType == EditTypeWipe,
		duration: n,
	}
	if plan.wipe && edit.WipeCode != "" {
		plan.code = edit.WipeCode
	}
	if from != nil {
		plan.fromReel = from.reel
		plan.fromSourceIn = from.sourceIn
		plan.fromClipName = ev.ClipName
		if isBlackReel(from.reel) {
			plan.fade = "in"
		}
	}
	if isBlackReel(edit.ReelName) {
		plan.fade = "out"
	}
	return plan, nil
}

// place appends the items for one edit on one track.
func (b *builder) place(ev *EDLEvent, edit *Edit, name TrackType, transition *transitionPlan, isFrom, annotate bool) (*plannedItem, error) {
	track := b.track(name)

	if edit.RecordIn < track.cursor {
		return nil, &ParseError{
			Line:  edit.Line,
			Event: ev.EventNumber,
			Text:  edit.Timecodes[2],
			Kind:  ErrTimecodeMismatch,
			Message: fmt.Sprintf("record in %s is before the end of track %s at %s",
				edit.Timecodes[2], name, timecode.Format(track.cursor, b.rate, b.dropFrame)),
		}
	}
	if edit.RecordIn > track.cursor {
		track.items = append(track.items, &plannedItem{
			kind:     itemGap,
			recordIn: track.cursor,
			duration: edit.RecordIn - track.cursor,
		})
	}

	if transition != nil {
		track.items = append(track.items, &plannedItem{
			kind:       itemTransition,
			event:      ev,
			edit:       edit,
			recordIn:   edit.RecordIn,
			duration:   timecode.Frames(transition.duration),
			transition: transition,
		})
	}

	item := &plannedItem{
		kind:      itemClip,
		event:     ev,
		edit:      edit,
		recordIn:  edit.RecordIn,
		duration:  edit.RecordDuration(),
		sourceIn:  edit.SourceIn,
		dest:      !isFrom,
		annotated: annotate,
	}
	if isBlackReel(edit.ReelName) {
		item.kind = itemGap
	}

	item.name = edit.ReelName
	switch {
	case item.dest && ev.DestClipName != "":
		item.name = ev.DestClipName
	case isFrom && ev.ClipName != "":
		item.name = ev.ClipName
	}
	if isFrom && ev.FilePath != "" {
		item.filePath = ev.FilePath
		if ev.ClipName == "" {
			base := path.Base(ev.FilePath)
			item.name = strings.TrimSuffix(base, path.Ext(base))
		}
	}

	track.items = append(track.items, item)
	track.cursor = edit.RecordOut
	return item, nil
}

// applyMotion attaches M2 and freeze frame effects to the event's clips. An M2
// line applies to the edit whose reel it names, else to the first clip.
func (b *builder) applyMotion(ev *EDLEvent, eventMap map[*Edit][]*plannedItem) {
	var first *Edit
	for i := range ev.Edits {
		if _, ok := eventMap[&ev.Edits[i]]; ok {
			first = &ev.Edits[i]
			break
		}
	}
	if first == nil {
		if ev.HasMotion() {
			b.logger.Warn("motion effect has no clip",
				slog.String("event", ev.EventNumber),
				slog.Int("line", ev.Line),
			)
		}
		return
	}

	for _, effect := range ev.SpeedEffects {
		target := first
		for i := range ev.Edits {
			edit := &ev.Edits[i]
			if _, ok := eventMap[edit]; ok && edit.ReelName == effect.Name {
				target = edit
				break
			}
		}
		scalar := effect.Speed / b.rate
		for _, item := range eventMap[target] {
			if scalar == 0 {
				item.freeze = true
				continue
			}
			item.speeds = append(item.speeds, scalar)
		}
	}

	if ev.FreezeFrame {
		for _, item := range eventMap[first] {
			item.freeze = true
		}
	}

	for _, items := range eventMap {
		for _, item := range items {
			if item.freeze {
				item.name = strings.TrimSuffix(item.name, " FF")
			}
		}
	}
}

// placeMarkers puts each locator on the clip whose record range holds it. A
// locator outside every record range but inside the owner's source range is
// read as a source timecode.
func (b *builder) placeMarkers(owner *markerOwner) {
	track := b.tracks[owner.track]
	for _, marker := range owner.event.Markers {
		f := marker.Frames

		target, found := lo.Find(track.items, func(item *plannedItem) bool {
			return item.kind == itemClip && f >= item.recordIn && f < item.recordIn+item.duration
		})
		if found {
			target.markers = append(target.markers, plannedMarker{
				marker: marker,
				at:     target.sourceIn + (f - target.recordIn),
			})
			continue
		}

		o := owner.item
		if f >= o.sourceIn && f <= o.sourceIn+o.duration {
			o.markers = append(o.markers, plannedMarker{marker: marker, at: f, sourceSide: true})
			continue
		}

		b.logger.Debug("locator outside its clip",
			slog.String("event", owner.event.EventNumber),
			slog.Int("line", marker.Line),
			slog.String("timecode", marker.Timecode),
		)
		o.markers = append(o.markers, plannedMarker{
			marker: marker,
			at:     o.sourceIn + (f - o.recordIn),
		})
	}
}

func (b *builder) rt(frames timecode.Frames) opentime.RationalTime {
	return opentime.NewRationalTime(float64(frames), b.rate)
}

func (b *builder) materialize(doc *document) (*gotio.Timeline, error) {
	cmx := map[string]interface{}{
		"edl_rate":   b.rate,
		"drop_frame": b.dropFrame,
	}
	if len(doc.Events) > 0 {
		cmx["start_timecode"] = timecode.Format(b.start, b.rate, b.dropFrame)
	}
	if doc.FCM != "" {
		cmx["fcm"] = doc.FCM
	}
	if len(doc.Comments) > 0 {
		cmx["comments"] = doc.Comments
	}

	timeline := gotio.NewTimeline(doc.Title, nil, map[string]interface{}{metadataNamespace: cmx})

	// Video tracks come first, each group in first-seen order.
	order := append([]TrackType(nil), b.order...)
	sort.SliceStable(order, func(i, j int) bool {
		return !order[i].IsAudioTrack() && order[j].IsAudioTrack()
	})

	for _, name := range order {
		kind := gotio.TrackKindVideo
		if name.IsAudioTrack() {
			kind = gotio.TrackKindAudio
		}
		track := gotio.NewTrack(string(name), nil, kind, nil, nil)

		for _, item := range b.tracks[name].items {
			var err error
			switch item.kind {
			case itemGap:
				err = track.AppendChild(gotio.NewGapWithDuration(b.rt(item.duration)))
			case itemTransition:
				err = track.AppendChild(b.transition(item))
			default:
				err = track.AppendChild(b.clip(item))
			}
			if err != nil {
				return nil, err
			}
		}

		if err := timeline.Tracks().AppendChild(track); err != nil {
			return nil, err
		}
	}

	return timeline, nil
}

func (b *builder) transition(item *plannedItem) *gotio.Transition {
	plan := item.transition
	cmx := map[string]interface{}{
		"transition":          plan.code,
		"transition_duration": plan.duration,
		"events":              []string{item.event.EventNumber},
	}
	if plan.fromReel != "" {
		cmx["from_reel"] = plan.fromReel
		cmx["from_source_in"] = plan.fromSourceIn
	}
	if plan.fromClipName != "" {
		cmx["from_clip_name"] = plan.fromClipName
	}
	if plan.fade != "" {
		cmx["fade"] = plan.fade
	}

	transitionType := gotio.TransitionTypeSMPTEDissolve
	name := ""
	if plan.wipe {
		// Wipes are custom transitions named by their wipe code.
		transitionType = gotio.TransitionTypeCustom
		name = plan.code
	}

	return gotio.NewTransition(
		name,
		transitionType,
		b.rt(0),
		b.rt(timecode.Frames(plan.duration)),
		map[string]interface{}{metadataNamespace: cmx},
	)
}

func (b *builder) clip(item *plannedItem) *gotio.Clip {
	ev := item.event
	edit := item.edit

	sourceRange := opentime.NewTimeRange(b.rt(item.sourceIn), b.rt(item.duration))

	cmx := map[string]interface{}{
		"events": []string{ev.EventNumber},
		"original_timecode": map[string]interface{}{
			"source_tc_in":  edit.Timecodes[0],
			"source_tc_out": edit.Timecodes[1],
			"record_tc_in":  edit.Timecodes[2],
			"record_tc_out": edit.Timecodes[3],
		},
	}
	if !strings.EqualFold(edit.ReelName, "AX") {
		cmx["reel"] = edit.ReelName
	}
	if item.dest && ev.DestClipName != "" {
		cmx["dest_clip_name"] = ev.DestClipName
	} else if !item.dest && ev.ClipName != "" {
		cmx["clip_name"] = ev.ClipName
	}
	if edit.Adjusted {
		cmx["timecode_was_adjusted"] = true
	}
	metadata := map[string]interface{}{metadataNamespace: cmx}

	if item.annotated {
		if len(ev.Comments) > 0 {
			cmx["comments"] = ev.Comments
		}
		if ev.ASCCDL != nil {
			metadata["cdl"] = map[string]interface{}{
				"asc_sop": ev.ASCCDL.SOP,
				"asc_sat": ev.ASCCDL.SAT,
			}
		}
	}

	var effects []gotio.Effect
	for _, scalar := range item.speeds {
		effects = append(effects, gotio.NewLinearTimeWarp("", "LinearTimeWarp", scalar, nil))
	}
	if item.freeze {
		effects = append(effects, gotio.NewFreezeFrame("", nil))
	}

	var markers []*gotio.Marker
	for _, pm := range item.markers {
		markers = append(markers, b.marker(pm))
	}

	return gotio.NewClip(
		item.name,
		b.mediaReference(item, sourceRange),
		&sourceRange,
		metadata,
		effects,
		markers,
		"",
		nil,
	)
}

func (b *builder) mediaReference(item *plannedItem, sourceRange opentime.TimeRange) gotio.MediaReference {
	reel := item.edit.ReelName

	switch {
	case isBarsReel(reel):
		return gotio.NewGeneratorReference("SMPTEBars", "SMPTEBars", nil, &sourceRange, nil)
	case item.filePath != "":
		var metadata map[string]interface{}
		if m := imageSequenceRegex.FindStringSubmatch(item.filePath); m != nil {
			start, _ := strconv.Atoi(m[2])
			end, _ := strconv.Atoi(m[3])
			metadata = map[string]interface{}{
				metadataNamespace: map[string]interface{}{
					"image_sequence": true,
					"start_frame":    start,
					"end_frame":      end,
					"frame_padding":  len(m[2]),
				},
			}
		}
		return gotio.NewExternalReference(reel, item.filePath, &sourceRange, metadata)
	case strings.EqualFold(reel, "AX"):
		return gotio.NewMissingReference(reel, &sourceRange, nil)
	default:
		return gotio.NewExternalReference(reel, reel, &sourceRange, nil)
	}
}

func (b *builder) marker(pm plannedMarker) *gotio.Marker {
	color := strings.ToUpper(pm.marker.Color)
	if !lo.Contains(markerColors, color) {
		color = "RED"
	}

	cmx := map[string]interface{}{
		"timecode": pm.marker.Timecode,
		"color":    pm.marker.Color,
	}
	if pm.sourceSide {
		cmx["source_side"] = true
	}

	return gotio.NewMarker(
		pm.marker.Comment,
		opentime.NewTimeRange(b.rt(pm.at), b.rt(0)),
		gotio.MarkerColor(color),
		pm.marker.Comment,
		map[string]interface{}{metadataNamespace: cmx},
	)
}
