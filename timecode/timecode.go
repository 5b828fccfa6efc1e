// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Package timecode converts between SMPTE timecode strings and frame counts.
//
// All values are frame counts at a working rate supplied by the caller. EDL
// text never states its rate, so the rate is always an explicit argument.
// Drop-frame counting is supported for 29.97 and 59.94 fps. The counting
// mode is decided by the caller for a whole document, not per string.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Avalanche-io/gotio/opentime"
	"github.com/ansel1/merry/v2"
)

// DefaultRate is the working rate used when none is supplied.
const DefaultRate = 24.0

var (
	// ErrMalformedTimecode is returned for timecode text that cannot be read at
	// the requested rate.
	ErrMalformedTimecode = merry.Sentinel("malformed timecode")
	// ErrNegativeDuration is returned when arithmetic would produce a negative
	// frame count.
	ErrNegativeDuration = merry.Sentinel("negative duration")
)

// Frames is a frame count at an implicit working rate.
type Frames int64

// timecodeRegex matches HH:MM:SS:FF with any of the separators seen in the
// wild before the frame field. ';' and ',' denote drop-frame.
var timecodeRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})([:;.,])(\d{2,3})$`)

// frameNumberRegex matches a bare frame number used instead of a timecode.
var frameNumberRegex = regexp.MustCompile(`^\d+$`)

// ValidRate reports whether rate can be used as a working rate.
func ValidRate(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

// IsDropFrameRate reports whether rate uses drop-frame timecode.
func IsDropFrameRate(rate float64) bool {
	// 29.97 and 59.94 use drop frame
	return (rate > 29.96 && rate < 29.98) || (rate > 59.93 && rate < 59.95)
}

// NominalRate returns the integer frame base a rate counts timecode in.
func NominalRate(rate float64) int64 {
	n := int64(math.Round(rate))
	if n < 1 {
		return 1
	}
	return n
}

// IsDropFrame reports whether text is written with a drop-frame separator.
func IsDropFrame(text string) bool {
	return strings.ContainsAny(text, ";,")
}

// dropPerMinute is the number of frame labels skipped at each dropping minute.
func dropPerMinute(nominal int64) int64 {
	return nominal / 15
}

// Parse reads a timecode (or a bare frame number) at rate. With dropFrame set
// at a drop-frame rate the text is counted as drop-frame whatever its
// separator; otherwise it is counted as non-drop.
func Parse(text string, rate float64, dropFrame bool) (Frames, error) {
	text = strings.TrimSpace(text)
	if !ValidRate(rate) {
		return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q: invalid rate %v", text, rate))
	}

	if frameNumberRegex.MatchString(text) {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q: %v", text, err))
		}
		return Frames(n), nil
	}

	m := timecodeRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q is not HH:MM:SS:FF", text))
	}

	hh, _ := strconv.ParseInt(m[1], 10, 64)
	mm, _ := strconv.ParseInt(m[2], 10, 64)
	ss, _ := strconv.ParseInt(m[3], 10, 64)
	ff, _ := strconv.ParseInt(m[5], 10, 64)

	nominal := NominalRate(rate)
	if hh > 23 || mm > 59 || ss > 59 || ff >= nominal {
		return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q out of range at %v fps", text, rate))
	}

	countRate := float64(nominal)
	sep := ":"
	if dropFrame && IsDropFrameRate(rate) {
		if per := dropPerMinute(nominal); ss == 0 && mm%10 != 0 && ff < per {
			if IsDropFrame(m[4]) {
				return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q is a dropped frame label", text))
			}
			// A non-drop label that drop-frame counting skips reads as the
			// next label that exists.
			ff = per
		}
		countRate = rate
		sep = ";"
	}

	rt, err := opentime.FromTimecode(fmt.Sprintf("%02d:%02d:%02d%s%02d", hh, mm, ss, sep, ff), countRate)
	if err != nil {
		return 0, merry.Wrap(ErrMalformedTimecode, merry.WithMessagef("timecode %q: %v", text, err))
	}
	return Frames(math.Round(rt.Value())), nil
}

// Format renders frames at rate. dropFrame is ignored at non drop-frame rates.
// Frames the timecode library cannot render come back as a bare frame
// number, which Parse accepts.
func Format(frames Frames, rate float64, dropFrame bool) string {
	if frames < 0 {
		return "-" + Format(-frames, rate, dropFrame)
	}

	if dropFrame && IsDropFrameRate(rate) {
		text, err := opentime.NewRationalTime(float64(frames), rate).ToTimecode(rate, opentime.InferFromRate)
		if err == nil {
			return text
		}
		return strconv.FormatInt(int64(frames), 10)
	}

	nominal := float64(NominalRate(rate))
	text, err := opentime.NewRationalTime(float64(frames), nominal).ToTimecode(nominal, opentime.InferFromRate)
	if err != nil {
		return strconv.FormatInt(int64(frames), 10)
	}
	// EDL uses colon separator for non-drop frame
	return strings.ReplaceAll(text, ";", ":")
}

// Add returns a+b.
func Add(a, b Frames) (Frames, error) {
	if a < 0 || b < 0 || a+b < 0 {
		return 0, merry.Wrap(ErrNegativeDuration, merry.WithMessagef("%d + %d", a, b))
	}
	return a + b, nil
}

// Sub returns a-b.
func Sub(a, b Frames) (Frames, error) {
	if a < 0 || b < 0 || b > a {
		return 0, merry.Wrap(ErrNegativeDuration, merry.WithMessagef("%d - %d", a, b))
	}
	return a - b, nil
}
