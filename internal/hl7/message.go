// Package hl7 implements the interchange protocol engine: parsing and
// addressing of pipe-and-caret delimited messages, structural validation
// against configurable rule documents, acknowledgment policies and the
// outbound message constructors.
package hl7

import (
	"fmt"
	"strings"
)

// Wire delimiters. The field separator and encoding characters are fixed;
// messages declaring different ones are out of scope.
const (
	segmentSep      = "\r"
	fieldSep        = "|"
	repetitionSep   = "~"
	componentSep    = "^"
	subcomponentSep = "&"
	encodingChars   = `^~\&`
)

// Segment is one named line of a message. Fields are stored raw; repetition,
// component and subcomponent splitting happens at extraction time.
type Segment struct {
	Name   string
	fields []string // fields[0] is the text right after the segment name
}

// Message is an ordered sequence of segments
type Message struct {
	segments []Segment
}

// Parse decodes a wire message. Segments may be terminated by CR, LF or
// CRLF; empty trailing lines are ignored. Parsing is lenient: structural
// correctness is the validator's job, not the parser's.
func Parse(raw string) (*Message, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\r")
	normalized = strings.ReplaceAll(normalized, "\n", "\r")
	lines := strings.Split(normalized, segmentSep)

	msg := &Message{}
	for _, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.Split(line, fieldSep)
		name := parts[0]
		if len(name) != 3 {
			return nil, fmt.Errorf("malformed segment name %q", name)
		}
		msg.segments = append(msg.segments, Segment{Name: name, fields: parts[1:]})
	}
	if len(msg.segments) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	return msg, nil
}

// Path addresses a value inside a message. Indices are 1-based; zero means
// the first occurrence. Segment and Field are mandatory for field access.
type Path struct {
	Segment      string
	SegmentNum   int
	Field        int
	Repetition   int
	Component    int
	Subcomponent int
}

func defaulted(i int) int {
	if i < 1 {
		return 1
	}
	return i
}

// Extract returns the value addressed by the path, or ok=false when any
// level of the structure is absent. It never fails on missing structure;
// absence is a first-class result.
func (m *Message) Extract(p Path) (string, bool) {
	seg, ok := m.segment(p.Segment, defaulted(p.SegmentNum))
	if !ok {
		return "", false
	}

	field := defaulted(p.Field)
	var value string
	if seg.Name == "MSH" {
		// MSH-1 is the field separator itself and MSH-2 the encoding
		// characters; both are returned whole, deeper addressing does not
		// apply to them.
		switch field {
		case 1:
			if deeperThanField(p) {
				return "", false
			}
			return fieldSep, true
		case 2:
			if len(seg.fields) < 1 {
				return "", false
			}
			if deeperThanField(p) {
				return "", false
			}
			return seg.fields[0], true
		default:
			if field-1 > len(seg.fields) {
				return "", false
			}
			value = seg.fields[field-2]
		}
	} else {
		if field > len(seg.fields) {
			return "", false
		}
		value = seg.fields[field-1]
	}

	value, ok = pick(value, repetitionSep, defaulted(p.Repetition))
	if !ok {
		return "", false
	}
	value, ok = pick(value, componentSep, defaulted(p.Component))
	if !ok {
		return "", false
	}
	return pick(value, subcomponentSep, defaulted(p.Subcomponent))
}

// HasSegment reports whether at least one segment with the name exists
func (m *Message) HasSegment(name string) bool {
	_, ok := m.segment(name, 1)
	return ok
}

// String renders the message back to its wire form
func (m *Message) String() string {
	var b strings.Builder
	for _, seg := range m.segments {
		b.WriteString(seg.Name)
		for _, f := range seg.fields {
			b.WriteString(fieldSep)
			b.WriteString(f)
		}
		b.WriteString(segmentSep)
	}
	return b.String()
}

// Type returns the message structure code from MSH-9 component 3
// (e.g. "ADT_A01"), or ok=false when the header does not carry one.
func (m *Message) Type() (string, bool) {
	return m.Extract(Path{Segment: "MSH", Field: 9, Component: 3})
}

// ControlID returns the message control identifier from MSH-10
func (m *Message) ControlID() (string, bool) {
	return m.Extract(Path{Segment: "MSH", Field: 10})
}

// ReceivingApplication returns MSH-5, the application the message is
// addressed to.
func (m *Message) ReceivingApplication() (string, bool) {
	return m.Extract(Path{Segment: "MSH", Field: 5})
}

// SendingApplication returns MSH-3
func (m *Message) SendingApplication() (string, bool) {
	return m.Extract(Path{Segment: "MSH", Field: 3})
}

// SendingFacility returns MSH-4
func (m *Message) SendingFacility() (string, bool) {
	return m.Extract(Path{Segment: "MSH", Field: 4})
}

func (m *Message) segment(name string, occurrence int) (*Segment, bool) {
	n := 0
	for i := range m.segments {
		if m.segments[i].Name != name {
			continue
		}
		n++
		if n == occurrence {
			return &m.segments[i], true
		}
	}
	return nil, false
}

func deeperThanField(p Path) bool {
	return defaulted(p.Repetition) > 1 || defaulted(p.Component) > 1 || defaulted(p.Subcomponent) > 1
}

// pick splits value by sep and returns the nth (1-based) part. Index 1 on
// an unseparated value returns the value itself; anything out of range is
// absent.
func pick(value, sep string, n int) (string, bool) {
	if n == 1 && !strings.Contains(value, sep) {
		return value, true
	}
	parts := strings.Split(value, sep)
	if n > len(parts) {
		return "", false
	}
	return parts[n-1], true
}
