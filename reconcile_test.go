// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avalanche-io/otio-edl/timecode"
)

const overlappingEDL = `TITLE: Overlap
FCM: NON-DROP FRAME

001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  B001     V     C        00:00:10:00 00:00:12:00 01:00:04:00 01:00:06:00
`

func reconcileString(t *testing.T, text string, lenient bool) (*document, *reconciler, error) {
	t.Helper()
	doc := assembleString(t, text)
	rec := newReconciler(24, false, lenient, slog.New(slog.DiscardHandler))
	return doc, rec, rec.reconcile(doc.Events)
}

func mustFrames(t *testing.T, s string) timecode.Frames {
	t.Helper()
	frames, err := timecode.Parse(s, 24, false)
	require.NoError(t, err)
	return frames
}

func TestReconcile_StrictRejectsOverlap(t *testing.T) {
	_, _, err := reconcileString(t, overlappingEDL, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimecodeMismatch))

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 5, parseErr.Line)
	assert.Equal(t, "2", parseErr.Event)
	assert.Contains(t, parseErr.Error(), "01:00:05:00")
}

func TestReconcile_LenientRepairsOverlap(t *testing.T) {
	doc, rec, err := reconcileString(t, overlappingEDL, true)
	require.NoError(t, err)

	first := doc.Events[0].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:00:00"), first.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:05:00"), first.RecordOut)
	assert.False(t, first.Adjusted)

	second := doc.Events[1].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:05:00"), second.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:07:00"), second.RecordOut)
	assert.Equal(t, second.SourceDuration(), second.RecordDuration())
	assert.True(t, second.Adjusted)

	require.Len(t, rec.repairs, 1)
	assert.Equal(t, Repair{
		Event:       "2",
		Line:        5,
		Track:       TrackTypeVideo,
		RecordIn:    "01:00:04:00",
		RecordOut:   "01:00:06:00",
		RepairedIn:  "01:00:05:00",
		RepairedOut: "01:00:07:00",
	}, rec.repairs[0])
}

func TestReconcile_Cascade(t *testing.T) {
	doc, rec, err := reconcileString(t, `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  B001     V     C        00:00:00:00 00:00:02:00 01:00:04:00 01:00:06:00
003  C001     V     C        00:00:00:00 00:00:01:00 01:00:06:00 01:00:07:00
`, true)
	require.NoError(t, err)

	require.Len(t, rec.repairs, 2)
	third := doc.Events[2].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:07:00"), third.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:08:00"), third.RecordOut)
}

const forwardJumpEDL = `TITLE: Jump
FCM: NON-DROP FRAME

001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  B        V     C        02:00:00:00 02:00:05:00 01:00:06:00 01:00:11:00
003  C001     V     C        00:00:00:00 00:00:01:00 01:00:11:00 01:00:12:00
`

func TestReconcile_StrictRejectsForwardJump(t *testing.T) {
	_, _, err := reconcileString(t, forwardJumpEDL, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimecodeMismatch))

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 5, parseErr.Line)
	assert.Equal(t, "2", parseErr.Event)
	assert.Contains(t, parseErr.Error(), "01:00:05:00")
}

func TestReconcile_LenientPullsForwardJumpBack(t *testing.T) {
	doc, rec, err := reconcileString(t, forwardJumpEDL, true)
	require.NoError(t, err)

	second := doc.Events[1].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:05:00"), second.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:10:00"), second.RecordOut)
	assert.True(t, second.Adjusted)

	// The third edit followed the bad one and moves with it.
	third := doc.Events[2].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:10:00"), third.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:11:00"), third.RecordOut)

	require.Len(t, rec.repairs, 2)
	assert.Equal(t, Repair{
		Event:       "2",
		Line:        5,
		Track:       TrackTypeVideo,
		RecordIn:    "01:00:06:00",
		RecordOut:   "01:00:11:00",
		RepairedIn:  "01:00:05:00",
		RepairedOut: "01:00:10:00",
	}, rec.repairs[0])
}

func TestReconcile_DurationMismatch(t *testing.T) {
	text := "001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:06:00\n"

	_, _, err := reconcileString(t, text, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimecodeMismatch))

	doc, rec, err := reconcileString(t, text, true)
	require.NoError(t, err)
	require.Len(t, rec.repairs, 1)

	edit := doc.Events[0].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:00:00"), edit.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:05:00"), edit.RecordOut)
}

func TestReconcile_RecordOutBeforeIn(t *testing.T) {
	doc, rec, err := reconcileString(t,
		"001  A001     V     C        00:00:00:00 00:00:05:00 01:00:05:00 01:00:00:00\n", true)
	require.NoError(t, err)
	require.Len(t, rec.repairs, 1)

	edit := doc.Events[0].Edits[0]
	assert.Equal(t, mustFrames(t, "01:00:05:00"), edit.RecordIn)
	assert.Equal(t, mustFrames(t, "01:00:10:00"), edit.RecordOut)
}

func TestReconcile_Consistent(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "motion changes record duration",
			text: `001  A001     V     C        00:00:00:00 00:00:01:00 01:00:00:00 01:00:02:00
M2   A001       012.0                00:00:00:00
002  B001     V     C        00:00:00:00 00:00:01:00 01:00:02:00 01:00:03:00
`,
		},
		{
			name: "black event fills a hole",
			text: `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  BL       V     C        00:00:00:00 00:00:05:00 01:00:05:00 01:00:10:00
003  B001     V     C        00:00:00:00 00:00:05:00 01:00:10:00 01:00:15:00
`,
		},
		{
			name: "first audio edit starts after the sequence",
			text: `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  A002     A     C        00:00:00:00 00:00:02:00 01:00:03:00 01:00:05:00
`,
		},
		{
			name: "dissolve with zero length outgoing line",
			text: `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  A001     V     C        00:00:05:00 00:00:05:00 01:00:05:00 01:00:05:00
002  B001     V     D    024 00:00:10:00 00:00:15:00 01:00:05:00 01:00:10:00
`,
		},
		{
			name: "audio and video tracks run independently",
			text: `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  A002     A     C        00:00:00:00 00:00:02:00 01:00:00:00 01:00:02:00
003  B001     V     C        00:00:00:00 00:00:02:00 01:00:05:00 01:00:07:00
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, err := reconcileString(t, tt.text, false)
			require.NoError(t, err)
			assert.Empty(t, rec.repairs)
		})
	}
}

func TestReconcile_TrackStartsBeforeSequence(t *testing.T) {
	text := `001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00
002  A002     A     C        00:00:00:00 00:00:02:00 00:59:59:00 01:00:01:00
`

	_, _, err := reconcileString(t, text, false)
	assert.True(t, errors.Is(err, ErrTimecodeMismatch))

	doc, _, err := reconcileString(t, text, true)
	require.NoError(t, err)
	assert.Equal(t, mustFrames(t, "01:00:00:00"), doc.Events[1].Edits[0].RecordIn)
}

func TestReconcile_NegativeSourceDuration(t *testing.T) {
	text := "001  A001     V     C        00:00:05:00 00:00:00:00 01:00:00:00 01:00:05:00\n"

	for _, lenient := range []bool{false, true} {
		_, _, err := reconcileString(t, text, lenient)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNegativeDuration))
	}
}
