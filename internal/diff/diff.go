// Package diff compares successive agent outputs line by line.
package diff

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	LineAdded   = "added"
	LineRemoved = "removed"
)

// Line is one changed line. Unchanged lines are not reported.
type Line struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Line int    `json:"line"`
}

// Summary describes how a re-run changed an agent's output.
type Summary struct {
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Lines     []Line `json:"lines,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Changed reports whether any line differs.
func (s Summary) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

// MaxLines caps the changed lines kept in a Summary.
const MaxLines = 200

// Text diffs two texts by line. Removed lines carry their old line number,
// added lines their new one.
func Text(before, after string) Summary {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var s Summary
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				s.Removed++
				s.add(Line{Type: LineRemoved, Text: text, Line: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				s.Added++
				s.add(Line{Type: LineAdded, Text: text, Line: newLine})
				newLine++
			}
		}
	}
	return s
}

func (s *Summary) add(l Line) {
	if len(s.Lines) >= MaxLines {
		s.Truncated = true
		return
	}
	s.Lines = append(s.Lines, l)
}

// JSON diffs two JSON documents after indenting them, so a change to one
// field shows up as one line. Invalid JSON is compared as raw text.
func JSON(before, after json.RawMessage) Summary {
	return Text(indent(before), indent(after))
}

func indent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw) + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}
