// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avalanche-io/otio-edl/timecode"
)

func collectStatements(t *testing.T, text string) []Statement {
	t.Helper()
	var out []Statement
	for st, err := range Statements(text, 24) {
		require.NoError(t, err)
		out = append(out, st)
	}
	return out
}

func TestClassifyNote(t *testing.T) {
	tests := []struct {
		line string
		kind StatementKind
		data string
	}{
		{"* FROM CLIP NAME:  Shot1", StatementClipName, "Shot1"},
		{"*FROM CLIP NAME: Shot 2", StatementClipName, "Shot 2"},
		{"* TO CLIP NAME: Incoming", StatementToClipName, "Incoming"},
		{"*FROM CLIP: /media/a001.mov", StatementSourceFile, "/media/a001.mov"},
		{"* FROM FILE: /media/b.exr", StatementSourceFile, "/media/b.exr"},
		{"* SOURCE FILE: /media/c.dpx", StatementSourceFile, "/media/c.dpx"},
		{"* OTIO REFERENCE: file:///x.mov", StatementSourceFile, "file:///x.mov"},
		{"* LOC: 01:00:00:12 RED     note here", StatementLocator, "01:00:00:12 RED     note here"},
		{"M2   A001       048.0                01:00:00:00", StatementMotion, "A001       048.0                01:00:00:00"},
		{"* FREEZE FRAME", StatementFreezeFrame, ""},
		{"* ASC_SOP (1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)", StatementASCSOP, "(1.0 1.0 1.0)(0.0 0.0 0.0)(1.0 1.0 1.0)"},
		{"*ASC_SAT 0.9", StatementASCSAT, "0.9"},
		{"TITLE: My Timeline", StatementTitle, "My Timeline"},
		{"FCM: DROP FRAME", StatementFCM, "DROP FRAME"},
		{"SPLIT:   AUDIO DELAY=  00:00:00:05", StatementSplit, "AUDIO DELAY=  00:00:00:05"},
		{"* LOCATION SCOUT", StatementComment, "LOCATION SCOUT"},
		{"* M2 only as a comment", StatementComment, "M2 only as a comment"},
		{"* TITLE: not a header", StatementComment, "TITLE: not a header"},
		{"AUD  3  4", StatementComment, "AUD  3  4"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			statements := collectStatements(t, tt.line)
			require.Len(t, statements, 1)
			assert.Equal(t, tt.kind, statements[0].Kind, "kind %s", statements[0].Kind)
			assert.Equal(t, tt.data, statements[0].Data)
			assert.Equal(t, 1, statements[0].Line)
		})
	}
}

func TestStatements_EventLine(t *testing.T) {
	statements := collectStatements(t,
		"001  A001     V     C        00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00\n")
	require.Len(t, statements, 1)

	st := statements[0]
	assert.Equal(t, StatementEvent, st.Kind)
	assert.Equal(t, "1", st.EditNumber)
	assert.False(t, st.EditNumberInferred)
	require.NotNil(t, st.Edit)

	edit := st.Edit
	assert.Equal(t, "A001", edit.ReelName)
	assert.Equal(t, Channels("V"), edit.Channels)
	assert.Equal(t, EditTypeCut, edit.EditType)
	assert.Equal(t, timecode.Frames(0), edit.SourceIn)
	assert.Equal(t, timecode.Frames(120), edit.SourceOut)
	assert.Equal(t, timecode.Frames(86400), edit.RecordIn)
	assert.Equal(t, timecode.Frames(86520), edit.RecordOut)
	assert.Equal(t, "01:00:00:00", edit.Timecodes[2])
	assert.Equal(t, timecode.Frames(120), edit.RecordDuration())
}

func TestStatements_TwoLineLayout(t *testing.T) {
	text := "003  AX       V     D    030\n" +
		"     00:00:20:00 00:00:25:00 00:00:10:00 00:00:15:00\n" +
		"* FROM CLIP NAME: Shot3\n"

	statements := collectStatements(t, text)
	require.Len(t, statements, 2)

	edit := statements[0].Edit
	require.NotNil(t, edit)
	assert.Equal(t, EditTypeDissolve, edit.EditType)
	assert.Equal(t, 30, edit.TransitionDuration)
	assert.Equal(t, timecode.Frames(480), edit.SourceIn)
	assert.Equal(t, timecode.Frames(360), edit.RecordOut)

	assert.Equal(t, StatementClipName, statements[1].Kind)
	assert.Equal(t, 3, statements[1].Line)
	assert.Equal(t, "3", statements[1].EditNumber)
	assert.True(t, statements[1].EditNumberInferred)
}

func TestStatements_Wipe(t *testing.T) {
	statements := collectStatements(t,
		"002  B001     V     W001 012 00:00:00:00 00:00:02:00 01:00:00:00 01:00:02:00")
	require.Len(t, statements, 1)

	edit := statements[0].Edit
	assert.Equal(t, EditTypeWipe, edit.EditType)
	assert.Equal(t, "W001", edit.WipeCode)
	assert.Equal(t, 12, edit.TransitionDuration)
	assert.True(t, edit.EditType.IsTransition())
}

func TestStatements_ReelChannelRunTogether(t *testing.T) {
	statements := collectStatements(t,
		"001  A0010001V C        00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00")
	require.Len(t, statements, 1)

	edit := statements[0].Edit
	assert.Equal(t, "A0010001", edit.ReelName)
	assert.Equal(t, Channels("V"), edit.Channels)
}

func TestStatements_EditNumbers(t *testing.T) {
	text := "0001  A V C 00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00\n" +
		"* a comment\n" +
		"12A> B V C 00:00:00:00 00:00:01:00 00:00:01:00 00:00:02:00\n" +
		"000 C V C 00:00:00:00 00:00:01:00 00:00:02:00 00:00:03:00\n"

	statements := collectStatements(t, text)
	require.Len(t, statements, 4)

	assert.Equal(t, "1", statements[0].EditNumber)
	assert.Equal(t, "1", statements[1].EditNumber)
	assert.True(t, statements[1].EditNumberInferred)
	assert.Equal(t, "12A", statements[2].EditNumber)
	assert.Equal(t, "0", statements[3].EditNumber)
}

func TestStatements_BlankLinesAndCRLF(t *testing.T) {
	text := "TITLE: x\r\n\r\n\r\n001  A V C 00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00\r\n"

	statements := collectStatements(t, text)
	require.Len(t, statements, 2)
	assert.Equal(t, "x", statements[0].Data)
	assert.Equal(t, 4, statements[1].Line)
}

func TestStatements_Restartable(t *testing.T) {
	seq := Statements("TITLE: a\n* one\n* two\n", 24)

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}

	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())
}

func TestStatements_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind error
	}{
		{"too few fields", "001  A001 V C 00:00:00:00 00:00:05:00 01:00:00:00", ErrMalformedEvent},
		{"too many fields", "001  A001 V C 030 040 00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00", ErrMalformedEvent},
		{"unknown edit type", "001  A001 V Z 00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00", ErrMalformedEvent},
		{"bad timecode", "001  A001 V C 00:00:00:00 00:00:99:00 01:00:00:00 01:00:05:00", ErrMalformedTimecode},
		{"bad transition duration", "001  A001 V D xx 00:00:00:00 00:00:05:00 01:00:00:00 01:00:05:00", ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "TITLE: broken\n\n" + tt.line + "\n* never reached\n"

			var (
				got  []Statement
				last error
			)
			for st, err := range Statements(text, 24) {
				if err != nil {
					last = err
					continue
				}
				got = append(got, st)
			}

			require.Error(t, last)
			assert.True(t, errors.Is(last, tt.kind), "got %v", last)
			assert.Len(t, got, 1, "iteration stops at the error")

			var parseErr *ParseError
			require.True(t, errors.As(last, &parseErr))
			assert.Equal(t, 3, parseErr.Line)
			assert.Equal(t, tt.line, parseErr.Text)
		})
	}
}
