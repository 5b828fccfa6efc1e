// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// markerRegex matches the payload of a locator comment.
// Format: TIMECODE COLOR COMMENT
var markerRegex = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}[:;.,]\d{2})\s+(\w*)(\s+|$)(.*)`)

// speedEffectRegex matches the payload of an M2 motion memory line.
// Format: REEL SPEED TIMECODE
var speedEffectRegex = regexp.MustCompile(`^(.*?)\s*(-?\d+(?:\.\d*)?)\s+(\d{2}:\d{2}:\d{2}[:;.,]\d{2})\s*$`)

// document is one timeline's worth of an EDL grouped into events, before
// reconciliation.
type document struct {
	Title    string
	FCM      string // "DROP FRAME" or "NON-DROP FRAME"
	Comments []string
	Events   []*EDLEvent
}

// assembler groups classified statements into events.
type assembler struct {
	rate      float64
	dropFrame bool
	logger    *slog.Logger
	docs      []*document
	doc       *document
	current   *EDLEvent
	split     bool
	pending   []string
}

// assemble consumes statements and returns the events they describe. Each
// distinct TITLE starts a new document; an EDL with no TITLE is one document.
func assemble(statements iter.Seq2[Statement, error], rate float64, dropFrame bool, logger *slog.Logger) ([]*document, error) {
	a := &assembler{
		rate:      rate,
		dropFrame: dropFrame,
		logger:    logger,
	}
	a.startDocument()

	for st, err := range statements {
		if err != nil {
			return nil, err
		}
		if err := a.add(st); err != nil {
			return nil, err
		}
	}
	a.dropPending()

	return a.docs, nil
}

func (a *assembler) startDocument() {
	a.doc = &document{}
	a.docs = append(a.docs, a.doc)
	a.current = nil
	a.split = false
}

// dropPending logs SPLIT notes that no event followed.
func (a *assembler) dropPending() {
	for _, note := range a.pending {
		a.logger.Warn("dropping split note with no following event",
			slog.String("title", a.doc.Title),
			slog.String("text", note),
		)
	}
	a.pending = nil
	a.split = false
}

func (a *assembler) add(st Statement) error {
	switch st.Kind {
	case StatementTitle:
		if a.doc.Title != "" && a.doc.Title != st.Data {
			a.dropPending()
			a.startDocument()
		}
		a.doc.Title = st.Data
		return nil
	case StatementFCM:
		a.doc.FCM = strings.ToUpper(st.Data)
		return nil
	case StatementSplit:
		// The split applies to the event that follows it.
		a.split = true
		a.pending = append(a.pending, noteText(st))
		return nil
	case StatementEvent:
		a.addEdit(st)
		return nil
	}

	if a.current == nil {
		return a.addLeading(st)
	}
	return a.addNote(st)
}

func (a *assembler) addEdit(st Statement) {
	if a.current == nil || a.split || st.EditNumber != a.current.EventNumber {
		a.current = &EDLEvent{
			EventNumber: st.EditNumber,
			Line:        st.Line,
		}
		a.doc.Events = append(a.doc.Events, a.current)
		a.split = false
	}

	a.current.Edits = append(a.current.Edits, *st.Edit)
	if len(a.pending) > 0 {
		a.current.Comments = append(a.current.Comments, a.pending...)
		a.pending = nil
	}
}

// addLeading handles notes that appear before the first event.
func (a *assembler) addLeading(st Statement) error {
	if st.Kind == StatementComment {
		a.doc.Comments = append(a.doc.Comments, st.Data)
		return nil
	}

	a.logger.Warn("dropping note with no event",
		slog.Int("line", st.Line),
		slog.String("kind", st.Kind.String()),
		slog.String("text", st.Raw),
	)
	return nil
}

func (a *assembler) addNote(st Statement) error {
	ev := a.current

	switch st.Kind {
	case StatementClipName:
		if ev.ClipName != "" {
			ev.Comments = append(ev.Comments, noteText(st))
			return nil
		}
		ev.ClipName = st.Data
	case StatementToClipName:
		if ev.DestClipName != "" {
			ev.Comments = append(ev.Comments, noteText(st))
			return nil
		}
		ev.DestClipName = st.Data
	case StatementSourceFile:
		if ev.FilePath != "" {
			ev.Comments = append(ev.Comments, noteText(st))
			return nil
		}
		ev.FilePath = st.Data
	case StatementLocator:
		marker, ok := a.parseMarker(st)
		if !ok {
			ev.Comments = append(ev.Comments, noteText(st))
			return nil
		}
		ev.Markers = append(ev.Markers, marker)
	case StatementMotion:
		effect, err := a.parseSpeedEffect(st)
		if err != nil {
			return err
		}
		ev.SpeedEffects = append(ev.SpeedEffects, effect)
	case StatementFreezeFrame:
		ev.FreezeFrame = true
	case StatementASCSOP:
		if ev.ASCCDL == nil {
			ev.ASCCDL = &ASCCDL{}
		}
		ev.ASCCDL.SOP = st.Data
	case StatementASCSAT:
		if ev.ASCCDL == nil {
			ev.ASCCDL = &ASCCDL{}
		}
		ev.ASCCDL.SAT = st.Data
	default:
		a.logger.Debug("keeping unrecognised comment",
			slog.Int("line", st.Line),
			slog.String("event", ev.EventNumber),
			slog.String("text", st.Data),
		)
		ev.Comments = append(ev.Comments, st.Data)
	}

	return nil
}

func (a *assembler) parseMarker(st Statement) (Marker, bool) {
	matches := markerRegex.FindStringSubmatch(st.Data)
	if matches == nil {
		a.logger.Warn("unreadable locator kept as comment",
			slog.Int("line", st.Line),
			slog.String("text", st.Raw),
		)
		return Marker{}, false
	}

	frames, err := timecode.Parse(matches[1], a.rate, a.dropFrame)
	if err != nil {
		a.logger.Warn("locator timecode kept as comment",
			slog.Int("line", st.Line),
			slog.String("error", err.Error()),
		)
		return Marker{}, false
	}

	return Marker{
		Timecode: matches[1],
		Frames:   frames,
		Color:    matches[2],
		Comment:  strings.TrimSpace(matches[4]),
		Line:     st.Line,
	}, true
}

func (a *assembler) parseSpeedEffect(st Statement) (SpeedEffect, error) {
	matches := speedEffectRegex.FindStringSubmatch(st.Data)
	if matches == nil {
		return SpeedEffect{}, &ParseError{
			Line:    st.Line,
			Event:   a.current.EventNumber,
			Text:    st.Raw,
			Kind:    ErrMalformedEvent,
			Message: fmt.Sprintf("unsupported M2 effect format %q", st.Data),
		}
	}

	speed, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return SpeedEffect{}, &ParseError{
			Line:    st.Line,
			Event:   a.current.EventNumber,
			Text:    st.Raw,
			Kind:    ErrMalformedEvent,
			Message: fmt.Sprintf("invalid M2 speed %q", matches[2]),
		}
	}

	return SpeedEffect{
		Name:     strings.TrimSpace(matches[1]),
		Speed:    speed,
		Timecode: matches[3],
	}, nil
}

// noteText is a note line without its comment marker.
func noteText(st Statement) string {
	return strings.TrimSpace(strings.TrimLeft(st.Raw, "* \t"))
}
