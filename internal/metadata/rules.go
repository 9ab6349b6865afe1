// Package metadata implements the field-extraction rules applied to a
// package's raw metadata text.
//
// A rule set maps output field names to either a regular-expression pattern
// or a nested rule group. Patterns are matched case-insensitively against
// the raw text and assign their first capture group, trimmed, to the field.
// Nested groups are applied recursively to the same text and produce
// dot-joined field names (e.g. "author.name"). Extraction never parses the
// metadata as a structured format, so any text-based format can be scanned
// by configuring appropriate patterns.
package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FieldName is the metadata field holding the package display name.
const FieldName = "name"

// FieldIdentifier is the metadata field holding the package unique key.
const FieldIdentifier = "identifier"

// Rule is one compiled extraction rule: either a pattern or a nested group,
// never both.
type Rule struct {
	pattern *regexp.Regexp
	group   RuleSet
}

// RuleSet maps output field names to compiled rules.
type RuleSet map[string]Rule

// Compile builds a RuleSet from raw configuration values. Each value must
// be a pattern string or a nested map of rules (the shape produced by
// decoding YAML config). Patterns are compiled case-insensitively and must
// contain at least one capture group.
func Compile(raw map[string]any) (RuleSet, error) {
	rules := make(RuleSet, len(raw))
	for field, value := range raw {
		switch v := value.(type) {
		case string:
			re, err := regexp.Compile("(?i)" + v)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid pattern: %w", field, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("field %q: pattern must contain a capture group", field)
			}
			rules[field] = Rule{pattern: re}
		case map[string]any:
			group, err := Compile(v)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", field, err)
			}
			rules[field] = Rule{group: group}
		case map[any]any:
			// yaml.v2-style decoding produces interface keys
			converted := make(map[string]any, len(v))
			for k, val := range v {
				key, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("group %q: non-string rule name %v", field, k)
				}
				converted[key] = val
			}
			group, err := Compile(converted)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", field, err)
			}
			rules[field] = Rule{group: group}
		default:
			return nil, fmt.Errorf("field %q: rule must be a pattern string or a nested group, got %T", field, value)
		}
	}
	return rules, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// default rule sets known to be valid.
func MustCompile(raw map[string]any) RuleSet {
	rules, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return rules
}

// Default returns the rule set applied when a repository configures no
// extraction rules: name and identifier read from a package.json-style
// metadata file.
func Default() RuleSet {
	return MustCompile(map[string]any{
		FieldName:       `"name"\s*:\s*"(.*?)"`,
		FieldIdentifier: `"identifier"\s*:\s*"(.*?)"`,
	})
}

// Extract applies every rule to text and returns the extracted fields.
// Pattern rules that do not match contribute nothing. Nested groups
// contribute dot-joined field names. The returned map is never nil.
func (rs RuleSet) Extract(text []byte) map[string]string {
	fields := make(map[string]string)
	rs.extractInto(text, "", fields)
	return fields
}

func (rs RuleSet) extractInto(text []byte, prefix string, fields map[string]string) {
	for _, field := range rs.sortedNames() {
		rule := rs[field]
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		if rule.group != nil {
			rule.group.extractInto(text, name, fields)
			continue
		}
		match := rule.pattern.FindSubmatch(text)
		if match == nil || len(match) < 2 {
			continue
		}
		fields[name] = strings.TrimSpace(string(match[1]))
	}
}

// sortedNames returns rule names in a stable order so extraction and its
// logging are deterministic for a given rule set.
func (rs RuleSet) sortedNames() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
