// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Avalanche-io/otio-edl/timecode"
)

// StatementKind classifies one line of EDL text.
type StatementKind int

const (
	// StatementComment is any line no other kind claims.
	StatementComment StatementKind = iota
	// StatementEvent is an event line carrying timecodes.
	StatementEvent
	// StatementTitle is the TITLE: header.
	StatementTitle
	// StatementFCM is the FCM: frame count mode header.
	StatementFCM
	// StatementClipName is a FROM CLIP NAME comment.
	StatementClipName
	// StatementToClipName is a TO CLIP NAME comment.
	StatementToClipName
	// StatementSourceFile is a FROM CLIP, FROM FILE or SOURCE FILE comment.
	StatementSourceFile
	// StatementLocator is a LOC comment.
	StatementLocator
	// StatementMotion is an M2 motion memory line.
	StatementMotion
	// StatementFreezeFrame is a FREEZE FRAME comment.
	StatementFreezeFrame
	// StatementASCSOP is an ASC_SOP comment.
	StatementASCSOP
	// StatementASCSAT is an ASC_SAT comment.
	StatementASCSAT
	// StatementSplit is a SPLIT audio/video delay note.
	StatementSplit
)

var statementKindNames = map[StatementKind]string{
	StatementComment:     "comment",
	StatementEvent:       "event",
	StatementTitle:       "title",
	StatementFCM:         "fcm",
	StatementClipName:    "clip name",
	StatementToClipName:  "to clip name",
	StatementSourceFile:  "source file",
	StatementLocator:     "locator",
	StatementMotion:      "motion",
	StatementFreezeFrame: "freeze frame",
	StatementASCSOP:      "asc sop",
	StatementASCSAT:      "asc sat",
	StatementSplit:       "split",
}

func (k StatementKind) String() string {
	if name, ok := statementKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StatementKind(%d)", int(k))
}

// Statement is one classified line of EDL text.
type Statement struct {
	Kind               StatementKind
	Line               int    // 1-based source line
	Raw                string // the line, trimmed
	Data               string // payload after the identifier
	IsComment          bool   // line started with '*'
	EditNumber         string // normalized edit number in effect for this line
	EditNumberInferred bool   // EditNumber was carried over from an earlier line
	Edit               *Edit  // set for StatementEvent
}

// noteRule maps a note-form identifier to the kind of statement it starts.
type noteRule struct {
	prefix    string
	kind      StatementKind
	directive bool // only recognised outside '*' comments
}

// noteRules are the recognised note-form identifiers. They are matched
// longest first so FROM CLIP NAME wins over FROM CLIP.
var noteRules = []noteRule{
	{prefix: "FROM CLIP NAME", kind: StatementClipName},
	{prefix: "TO CLIP NAME", kind: StatementToClipName},
	{prefix: "FROM CLIP", kind: StatementSourceFile},
	{prefix: "FROM FILE", kind: StatementSourceFile},
	{prefix: "SOURCE FILE", kind: StatementSourceFile},
	{prefix: "OTIO REFERENCE", kind: StatementSourceFile},
	{prefix: "LOC", kind: StatementLocator},
	{prefix: "FREEZE FRAME", kind: StatementFreezeFrame},
	{prefix: "ASC_SOP", kind: StatementASCSOP},
	{prefix: "ASC_SAT", kind: StatementASCSAT},
	{prefix: "M2", kind: StatementMotion, directive: true},
	{prefix: "TITLE", kind: StatementTitle, directive: true},
	{prefix: "FCM", kind: StatementFCM, directive: true},
	{prefix: "SPLIT", kind: StatementSplit, directive: true},
}

func init() {
	sort.SliceStable(noteRules, func(i, j int) bool {
		return len(noteRules[i].prefix) > len(noteRules[j].prefix)
	})
}

// editNumberRegex matches the edit number field at the start of an event line.
// Format: EDIT#[suffix][> or >!]
var editNumberRegex = regexp.MustCompile(`^(\d+[a-zA-Z]?)(>!|>)?\s+`)

// timecodeLineRegex matches a timecode line.
// Format: SOURCE_IN SOURCE_OUT RECORD_IN RECORD_OUT
var timecodeLineRegex = regexp.MustCompile(`^\s*(\d{2}:\d{2}:\d{2}[;:.,]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:.,]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:.,]\d{2})\s+(\d{2}:\d{2}:\d{2}[;:.,]\d{2})\s*$`)

// eventTimecodeRegex finds the timecodes on an event line.
var eventTimecodeRegex = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[;:.,]\d{2}`)

// Statements tokenizes EDL text into classified lines. Timecodes are read at
// rate in the counting mode DropFrameMode picks for the whole text. The
// sequence is lazy and may be ranged over more than once. Iteration stops
// after the first error.
func Statements(text string, rate float64) iter.Seq2[Statement, error] {
	return func(yield func(Statement, error) bool) {
		lines := splitLines(text)
		t := &tokenizer{lines: lines, rate: rate, dropFrame: dropFrameLines(lines, rate)}
		for {
			st, ok, err := t.next()
			if err != nil {
				yield(Statement{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(st, nil) {
				return
			}
		}
	}
}

// DropFrameMode reports whether every timecode in text is counted as
// drop-frame at rate. The first FCM header decides; without one, any record
// timecode written with a drop-frame separator does. Only 29.97 and 59.94
// can count drop-frame.
func DropFrameMode(text string, rate float64) bool {
	return dropFrameLines(splitLines(text), rate)
}

func dropFrameLines(lines []string, rate float64) bool {
	if !timecode.IsDropFrameRate(rate) {
		return false
	}

	recordDrop := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if body, ok := cutIdentifier(line, "FCM"); ok {
			return isDropFCM(body)
		}
		if recordDrop || strings.HasPrefix(line, "*") {
			continue
		}
		// SOURCE_IN SOURCE_OUT RECORD_IN RECORD_OUT
		if tcs := eventTimecodeRegex.FindAllString(line, -1); len(tcs) == 4 && timecode.IsDropFrame(tcs[2]) {
			recordDrop = true
		}
	}
	return recordDrop
}

// isDropFCM reports whether an FCM header names drop-frame counting.
func isDropFCM(fcm string) bool {
	fcm = strings.ToUpper(fcm)
	return strings.Contains(fcm, "DROP") && !strings.Contains(fcm, "NON")
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

type tokenizer struct {
	lines      []string
	pos        int
	rate       float64
	dropFrame  bool
	editNumber string
}

func (t *tokenizer) next() (Statement, bool, error) {
	for t.pos < len(t.lines) {
		lineNum := t.pos + 1
		line := strings.TrimSpace(t.lines[t.pos])
		t.pos++

		// Skip blank lines
		if line == "" {
			continue
		}

		st, err := t.classify(line, lineNum)
		return st, err == nil, err
	}
	return Statement{}, false, nil
}

func (t *tokenizer) classify(line string, lineNum int) (Statement, error) {
	rest := line
	explicit := false
	if m := editNumberRegex.FindStringSubmatch(line); m != nil {
		t.editNumber = normalizeEditNumber(m[1])
		explicit = true
		rest = line[len(m[0]):]
	}

	if !explicit || strings.HasPrefix(rest, "*") {
		st := classifyNote(rest)
		st.Line = lineNum
		st.Raw = line
		st.EditNumber = t.editNumber
		st.EditNumberInferred = !explicit
		return st, nil
	}

	fields := strings.Fields(rest)

	// Some producers put the timecodes on their own line after the event line.
	if len(fields) == 3 || len(fields) == 4 {
		if tcLine, ok := t.peekTimecodeLine(); ok {
			fields = append(fields, tcLine...)
		}
	}

	edit, err := t.parseEdit(fields, line, lineNum)
	if err != nil {
		return Statement{}, err
	}

	return Statement{
		Kind:       StatementEvent,
		Line:       lineNum,
		Raw:        line,
		EditNumber: t.editNumber,
		Edit:       edit,
	}, nil
}

// peekTimecodeLine consumes the next non-blank line if it holds exactly four
// timecodes.
func (t *tokenizer) peekTimecodeLine() ([]string, bool) {
	for i := t.pos; i < len(t.lines); i++ {
		line := strings.TrimSpace(t.lines[i])
		if line == "" {
			continue
		}
		m := timecodeLineRegex.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		t.pos = i + 1
		return m[1:5], true
	}
	return nil, false
}

func (t *tokenizer) parseEdit(fields []string, line string, lineNum int) (*Edit, error) {
	if len(fields) < 6 || len(fields) > 8 {
		return nil, &ParseError{
			Line:    lineNum,
			Event:   t.editNumber,
			Text:    line,
			Kind:    ErrMalformedEvent,
			Message: fmt.Sprintf("incorrect number of fields [%d] in event line %q", len(fields)+1, line),
		}
	}

	reel := fields[0]
	rest := fields[1:]

	var channels string
	if isEditTypeCode(rest[0]) && len(fields) < 8 {
		// The channel field ran into the reel without a separator. This
		// happens when the reel fills its fixed-width column.
		width := 8
		if len(reel) > 32 {
			width = 32
		} else if len(reel) > 16 {
			width = 16
		}
		if len(reel) <= width {
			return nil, &ParseError{
				Line:    lineNum,
				Event:   t.editNumber,
				Text:    line,
				Kind:    ErrMalformedEvent,
				Message: fmt.Sprintf("missing channel field in event line %q", line),
			}
		}
		channels = reel[width:]
		reel = reel[:width]
	} else {
		channels = rest[0]
		rest = rest[1:]
	}

	editTypeCode := rest[0]
	rest = rest[1:]
	if !isEditTypeCode(editTypeCode) {
		return nil, &ParseError{
			Line:    lineNum,
			Event:   t.editNumber,
			Text:    line,
			Kind:    ErrMalformedEvent,
			Message: fmt.Sprintf("unknown edit type %q", editTypeCode),
		}
	}

	if len(rest) != 4 && len(rest) != 5 {
		return nil, &ParseError{
			Line:    lineNum,
			Event:   t.editNumber,
			Text:    line,
			Kind:    ErrMalformedEvent,
			Message: fmt.Sprintf("expected four timecodes in event line %q", line),
		}
	}

	edit := &Edit{
		Line:       lineNum,
		EditNumber: t.editNumber,
		ReelName:   reel,
		Channels:   Channels(channels),
		EditType:   EditType(editTypeCode),
	}

	if wipeCodeRegex.MatchString(editTypeCode) {
		edit.EditType = EditTypeWipe
		edit.WipeCode = editTypeCode
	}

	if len(rest) == 5 {
		param := rest[0]
		rest = rest[1:]
		duration, err := strconv.Atoi(param)
		if err != nil || duration < 0 {
			return nil, &ParseError{
				Line:    lineNum,
				Event:   t.editNumber,
				Text:    line,
				Kind:    ErrMalformedEvent,
				Message: fmt.Sprintf("invalid transition duration %q", param),
			}
		}
		edit.TransitionDuration = duration
	}

	targets := []*timecode.Frames{&edit.SourceIn, &edit.SourceOut, &edit.RecordIn, &edit.RecordOut}
	for i, text := range rest {
		frames, err := timecode.Parse(text, t.rate, t.dropFrame)
		if err != nil {
			return nil, &ParseError{
				Line:    lineNum,
				Event:   t.editNumber,
				Text:    line,
				Kind:    ErrMalformedTimecode,
				Message: err.Error(),
			}
		}
		*targets[i] = frames
		edit.Timecodes[i] = text
	}

	return edit, nil
}

func isEditTypeCode(code string) bool {
	return knownEditTypes[EditType(code)] || wipeCodeRegex.MatchString(code)
}

// normalizeEditNumber strips zero padding so 055 and 000055 compare equal.
func normalizeEditNumber(number string) string {
	trimmed := strings.TrimLeft(number, "0")
	if trimmed == "" || (trimmed[0] < '0' || trimmed[0] > '9') {
		return "0" + trimmed
	}
	return trimmed
}

// classifyNote matches a note-form line against noteRules.
func classifyNote(text string) Statement {
	isComment := strings.HasPrefix(text, "*")
	body := strings.TrimSpace(strings.TrimLeft(text, "* \t"))

	for _, rule := range noteRules {
		if rule.directive && isComment {
			continue
		}
		after, ok := cutIdentifier(body, rule.prefix)
		if !ok {
			continue
		}
		return Statement{
			Kind:      rule.kind,
			Data:      after,
			IsComment: isComment,
		}
	}

	return Statement{
		Kind:      StatementComment,
		Data:      body,
		IsComment: isComment,
	}
}

// cutIdentifier returns the payload after identifier when body starts with it
// as a whole word, with or without a trailing colon.
func cutIdentifier(body, identifier string) (string, bool) {
	if !strings.HasPrefix(strings.ToUpper(body), identifier) {
		return "", false
	}
	rest := body[len(identifier):]
	if rest != "" && rest[0] != ':' && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest), true
}
