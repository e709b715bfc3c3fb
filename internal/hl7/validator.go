package hl7

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rule document shapes. Both documents are deployment configuration, keyed
// by segment and message structure codes:
//
//	{"segments": {"PID": {"fields": {"PID-3": {"required": true, "pattern": "..."},
//	                                 "PID-5": {"components": {"PID-5.1": {...}}}}}}}
//	{"messages": {"ADT_A01": {"MSH": {"required": true}, "PID": {"required": true}}}}
type segmentRuleDoc struct {
	Segments map[string]struct {
		Fields map[string]fieldRule `json:"fields"`
	} `json:"segments"`
}

type fieldRule struct {
	Required   bool                     `json:"required"`
	Pattern    string                   `json:"pattern"`
	Components map[string]componentRule `json:"components"`
}

type componentRule struct {
	Required bool   `json:"required"`
	Pattern  string `json:"pattern"`
}

type messageRuleDoc struct {
	Messages map[string]map[string]struct {
		Required bool `json:"required"`
	} `json:"messages"`
}

type compiledComponent struct {
	index    int
	required bool
	pattern  *regexp.Regexp
}

type compiledField struct {
	index      int
	required   bool
	pattern    *regexp.Regexp // nil when component rules apply
	components []compiledComponent
}

type segmentRequirement struct {
	name     string
	required bool
}

// PatternValidator validates message structure against the two immutable
// rule documents. All rules are compiled at load time; a rule carrying
// neither a pattern nor component rules is a configuration error and fails
// the load, it is never reported as a validation result.
type PatternValidator struct {
	fields   map[string][]compiledField      // segment name -> field rules
	messages map[string][]segmentRequirement // message type -> segments
}

// LoadPatternValidator reads and compiles the rule documents from disk
func LoadPatternValidator(messageRulesPath, segmentRulesPath string) (*PatternValidator, error) {
	messageRaw, err := os.ReadFile(messageRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read message rules: %w", err)
	}
	segmentRaw, err := os.ReadFile(segmentRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment rules: %w", err)
	}
	return NewPatternValidator(messageRaw, segmentRaw)
}

// NewPatternValidator compiles rule documents given as raw JSON
func NewPatternValidator(messageRules, segmentRules []byte) (*PatternValidator, error) {
	var mDoc messageRuleDoc
	if err := json.Unmarshal(messageRules, &mDoc); err != nil {
		return nil, fmt.Errorf("failed to parse message rules: %w", err)
	}
	var sDoc segmentRuleDoc
	if err := json.Unmarshal(segmentRules, &sDoc); err != nil {
		return nil, fmt.Errorf("failed to parse segment rules: %w", err)
	}

	v := &PatternValidator{
		fields:   make(map[string][]compiledField),
		messages: make(map[string][]segmentRequirement),
	}

	for segName, seg := range sDoc.Segments {
		var fields []compiledField
		for key, rule := range seg.Fields {
			idx, err := fieldIndex(key)
			if err != nil {
				return nil, err
			}
			cf := compiledField{index: idx, required: rule.Required}
			switch {
			case len(rule.Components) > 0:
				for cKey, cRule := range rule.Components {
					cIdx, err := componentIndex(cKey)
					if err != nil {
						return nil, err
					}
					if cRule.Pattern == "" {
						return nil, fmt.Errorf("rule %s has neither pattern nor components", cKey)
					}
					re, err := compileAnchored(cRule.Pattern)
					if err != nil {
						return nil, fmt.Errorf("rule %s: %w", cKey, err)
					}
					cf.components = append(cf.components, compiledComponent{
						index:    cIdx,
						required: cRule.Required,
						pattern:  re,
					})
				}
				sort.Slice(cf.components, func(i, j int) bool { return cf.components[i].index < cf.components[j].index })
			case rule.Pattern != "":
				re, err := compileAnchored(rule.Pattern)
				if err != nil {
					return nil, fmt.Errorf("rule %s: %w", key, err)
				}
				cf.pattern = re
			default:
				return nil, fmt.Errorf("rule %s has neither pattern nor components", key)
			}
			fields = append(fields, cf)
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].index < fields[j].index })
		v.fields[segName] = fields
	}

	for msgType, segs := range mDoc.Messages {
		var reqs []segmentRequirement
		for name, r := range segs {
			reqs = append(reqs, segmentRequirement{name: name, required: r.Required})
		}
		sort.Slice(reqs, func(i, j int) bool { return reqs[i].name < reqs[j].name })
		v.messages[msgType] = reqs
	}

	return v, nil
}

// Validate checks the message structure end-to-end. The outcome is an
// and-composition of independent checks, short-circuiting on the first
// failure.
func (v *PatternValidator) Validate(m *Message) bool {
	msgType, ok := m.Type()
	if !ok {
		return false
	}
	reqs, configured := v.messages[msgType]
	if !configured {
		// Open-world policy: unconfigured message types pass
		return true
	}
	for _, req := range reqs {
		if !v.validateSegment(m, req.name, req.required) {
			return false
		}
	}
	return true
}

func (v *PatternValidator) validateSegment(m *Message, name string, required bool) bool {
	if !m.HasSegment(name) {
		return !required
	}
	for _, f := range v.fields[name] {
		if !v.validateField(m, name, f) {
			return false
		}
	}
	return true
}

func (v *PatternValidator) validateField(m *Message, segName string, f compiledField) bool {
	value, present := m.Extract(Path{Segment: segName, Field: f.index})
	if !present {
		return !f.required
	}
	if len(f.components) > 0 {
		for _, c := range f.components {
			cValue, cPresent := m.Extract(Path{Segment: segName, Field: f.index, Component: c.index})
			if !cPresent {
				if c.required {
					return false
				}
				continue
			}
			if !c.pattern.MatchString(cValue) {
				return false
			}
		}
		return true
	}
	return f.pattern.MatchString(value)
}

// compileAnchored compiles a full-string match; rule authors write bare
// patterns without anchors.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// fieldIndex parses rule keys of the form "PID-3"
func fieldIndex(key string) (int, error) {
	_, after, found := strings.Cut(key, "-")
	if !found {
		return 0, fmt.Errorf("malformed field rule key %q", key)
	}
	idx, err := strconv.Atoi(after)
	if err != nil || idx < 1 {
		return 0, fmt.Errorf("malformed field rule key %q", key)
	}
	return idx, nil
}

// componentIndex parses rule keys of the form "PID-3.1"
func componentIndex(key string) (int, error) {
	_, after, found := strings.Cut(key, ".")
	if !found {
		return 0, fmt.Errorf("malformed component rule key %q", key)
	}
	idx, err := strconv.Atoi(after)
	if err != nil || idx < 1 {
		return 0, fmt.Errorf("malformed component rule key %q", key)
	}
	return idx, nil
}
