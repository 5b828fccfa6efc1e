// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"io"
	"log/slog"
	"strings"

	"github.com/Avalanche-io/gotio"
	"github.com/ansel1/merry/v2"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// Decoder reads CMX 3600 EDL format and produces an OpenTimelineIO Timeline.
type Decoder struct {
	r                      io.Reader
	rate                   float64
	ignoreTimecodeMismatch bool
	fcmMode                string // "DROP FRAME" or "NON-DROP FRAME"
	logger                 *slog.Logger
	repairs                []Repair
}

// NewDecoder creates a new EDL decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:      r,
		rate:   DefaultRate,
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetRate sets the frame rate for timecode interpretation.
func (d *Decoder) SetRate(rate float64) {
	d.rate = rate
}

// SetIgnoreTimecodeMismatch sets whether to ignore timecode mismatches.
// When true, the decoder will infer correct record timecode from source timecode
// and adjacent cuts, which helps handle common EDL errors.
func (d *Decoder) SetIgnoreTimecodeMismatch(ignore bool) {
	d.ignoreTimecodeMismatch = ignore
}

// SetLogger sets the logger that receives parse diagnostics, including every
// record timecode repair.
func (d *Decoder) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d.logger = logger
}

// FrameCountMode returns the FCM header of the last decoded EDL.
func (d *Decoder) FrameCountMode() string {
	return d.fcmMode
}

// Repairs returns the record timecode repairs made by the last Decode.
func (d *Decoder) Repairs() []Repair {
	return d.repairs
}

// Decode reads the EDL and returns an OpenTimelineIO Timeline. An EDL that
// holds more than one TITLE fails with ErrUnsupportedFeature; use DecodeAll
// for those.
func (d *Decoder) Decode() (*gotio.Timeline, error) {
	timelines, err := d.DecodeAll()
	if err != nil {
		return nil, err
	}
	if len(timelines) > 1 {
		return nil, merry.Wrap(ErrUnsupportedFeature,
			merry.WithMessagef("EDL holds %d timelines, one per TITLE; use DecodeAll", len(timelines)))
	}
	return timelines[0], nil
}

// DecodeAll reads the EDL and returns one Timeline per distinct TITLE, in
// the order they appear. Record timecodes are reconciled per timeline.
func (d *Decoder) DecodeAll() ([]*gotio.Timeline, error) {
	if !timecode.ValidRate(d.rate) {
		return nil, merry.Wrap(ErrInvalidConfiguration, merry.WithMessagef("invalid frame rate %v", d.rate))
	}

	data, err := io.ReadAll(d.r)
	if err != nil {
		return nil, merry.Prepend(err, "reading EDL")
	}
	text := string(data)

	// One counting mode for every timecode, so labels survive a round trip.
	dropFrame := DropFrameMode(text, d.rate)

	docs, err := assemble(Statements(text, d.rate), d.rate, dropFrame, d.logger)
	if err != nil {
		return nil, err
	}

	d.repairs = nil
	d.fcmMode = ""
	timelines := make([]*gotio.Timeline, 0, len(docs))
	for _, doc := range docs {
		if d.fcmMode == "" {
			d.fcmMode = doc.FCM
		}

		rec := newReconciler(d.rate, dropFrame, d.ignoreTimecodeMismatch, d.logger)
		if err := rec.reconcile(doc.Events); err != nil {
			return nil, err
		}
		d.repairs = append(d.repairs, rec.repairs...)

		if len(rec.repairs) > 0 {
			d.logger.Info("record timecodes repaired",
				slog.String("title", doc.Title),
				slog.Int("repairs", len(rec.repairs)),
				slog.Int("events", len(doc.Events)),
			)
		}

		timeline, err := newBuilder(d.rate, dropFrame, d.logger).build(doc)
		if err != nil {
			return nil, err
		}
		timelines = append(timelines, timeline)
	}

	return timelines, nil
}

// ReadFromString decodes EDL text at rate. With ignoreTimecodeMismatch set,
// inconsistent record timecodes are repaired instead of rejected.
func ReadFromString(text string, rate float64, ignoreTimecodeMismatch bool) (*gotio.Timeline, error) {
	decoder := NewDecoder(strings.NewReader(text))
	decoder.SetRate(rate)
	decoder.SetIgnoreTimecodeMismatch(ignoreTimecodeMismatch)
	return decoder.Decode()
}
