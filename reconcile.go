// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// Repair records one record timecode correction made while decoding with
// timecode mismatches ignored.
type Repair struct {
	Event       string    `csv:"event"`
	Line        int       `csv:"line"`
	Track       TrackType `csv:"track"`
	RecordIn    string    `csv:"record_in"`
	RecordOut   string    `csv:"record_out"`
	RepairedIn  string    `csv:"repaired_in"`
	RepairedOut string    `csv:"repaired_out"`
}

// reconciler checks that each edit starts where the previous edit on the same
// track ended.
type reconciler struct {
	rate      float64
	dropFrame bool
	lenient   bool
	logger    *slog.Logger
	lastOut   map[TrackType]timecode.Frames
	start     timecode.Frames
	started   bool
	repairs   []Repair
}

func newReconciler(rate float64, dropFrame, lenient bool, logger *slog.Logger) *reconciler {
	return &reconciler{
		rate:      rate,
		dropFrame: dropFrame,
		lenient:   lenient,
		logger:    logger,
		lastOut:   make(map[TrackType]timecode.Frames),
	}
}

// reconcile walks the events left to right. Repairs are made in place, so a
// corrected edit is the reference for the one after it.
func (r *reconciler) reconcile(events []*EDLEvent) error {
	for _, ev := range events {
		motion := ev.HasMotion()
		for i := range ev.Edits {
			if err := r.check(ev, &ev.Edits[i], motion); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *reconciler) check(ev *EDLEvent, edit *Edit, motion bool) error {
	if _, err := timecode.Sub(edit.SourceOut, edit.SourceIn); err != nil {
		return &ParseError{
			Line:    edit.Line,
			Event:   ev.EventNumber,
			Text:    edit.Timecodes[0] + " " + edit.Timecodes[1],
			Kind:    ErrNegativeDuration,
			Message: fmt.Sprintf("source out %s is before source in %s", edit.Timecodes[1], edit.Timecodes[0]),
		}
	}

	if !r.started {
		r.start = edit.RecordIn
		r.started = true
	}

	// A track's first edit may not start before the sequence does.
	tracks := edit.Channels.Tracks()
	seen := lo.Filter(tracks, func(t TrackType, _ int) bool {
		_, ok := r.lastOut[t]
		return ok
	})
	expected := r.start
	if len(seen) > 0 {
		expected = lo.Max(lo.Map(seen, func(t TrackType, _ int) timecode.Frames {
			return r.lastOut[t]
		}))
	}

	reason := r.mismatch(edit, expected, len(seen) > 0, motion)
	if reason != "" {
		if !r.lenient {
			return &ParseError{
				Line:  edit.Line,
				Event: ev.EventNumber,
				Text:  fmt.Sprintf("%s %s", edit.Timecodes[2], edit.Timecodes[3]),
				Kind:  ErrTimecodeMismatch,
				Message: fmt.Sprintf("%s: expected record in %s, got %s",
					reason, r.format(expected), edit.Timecodes[2]),
			}
		}
		r.repair(ev, edit, expected, len(seen) > 0, motion, tracks[0], reason)
	}

	for _, t := range tracks {
		r.lastOut[t] = edit.RecordOut
	}
	return nil
}

// mismatch describes why edit disagrees with its neighbours, or returns "".
// Once a track has an edit, the next one must start exactly where it ended;
// black events are how an EDL leaves a hole. A track's first edit may start
// after the sequence does.
func (r *reconciler) mismatch(edit *Edit, expected timecode.Frames, seen, motion bool) string {
	switch {
	case edit.RecordOut < edit.RecordIn:
		return "record out is before record in"
	case edit.RecordIn < expected:
		return "record in overlaps the previous edit"
	case seen && edit.RecordIn > expected:
		return "record in leaves a hole after the previous edit"
	case !motion && edit.RecordDuration() != 0 && edit.RecordDuration() != edit.SourceDuration():
		return fmt.Sprintf("record duration %d does not match source duration %d",
			edit.RecordDuration(), edit.SourceDuration())
	}
	return ""
}

func (r *reconciler) repair(ev *EDLEvent, edit *Edit, expected timecode.Frames, seen, motion bool, track TrackType, reason string) {
	in := edit.RecordIn
	if seen || in < expected {
		in = expected
	}

	span := edit.SourceDuration()
	if motion && edit.RecordDuration() >= 0 {
		span = edit.RecordDuration()
	}
	out, _ := timecode.Add(in, span)

	repair := Repair{
		Event:       ev.EventNumber,
		Line:        edit.Line,
		Track:       track,
		RecordIn:    r.format(edit.RecordIn),
		RecordOut:   r.format(edit.RecordOut),
		RepairedIn:  r.format(in),
		RepairedOut: r.format(out),
	}
	r.repairs = append(r.repairs, repair)

	r.logger.Warn("repaired record timecode",
		slog.String("event", ev.EventNumber),
		slog.Int("line", edit.Line),
		slog.String("reason", reason),
		slog.String("record_in", repair.RecordIn),
		slog.String("record_out", repair.RecordOut),
		slog.String("repaired_in", repair.RepairedIn),
		slog.String("repaired_out", repair.RepairedOut),
	)

	edit.RecordIn = in
	edit.RecordOut = out
	edit.Adjusted = true
}

func (r *reconciler) format(frames timecode.Frames) string {
	return timecode.Format(frames, r.rate, r.dropFrame)
}
