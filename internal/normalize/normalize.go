// Package normalize turns loosely-shaped reasoning-service replies into
// canonical records. LLM-backed endpoints return JSON embedded in prose,
// fenced code blocks, or nothing parseable at all; everything downstream
// of this package sees one canonical CheckResult shape and never branches
// on ad hoc field presence.
package normalize

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// DefaultEntry is one suggested default value for a missing parameter.
// Any field may be empty; an entry is kept if at least one is non-empty.
type DefaultEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Note  string `json:"note"`
}

// CheckResult is the canonical outcome of the pre-validation call.
type CheckResult struct {
	Passed    bool           `json:"passed"`
	Missing   []string       `json:"missing"`
	Defaults  []DefaultEntry `json:"defaults"`
	Summary   string         `json:"summary"`
	ApplyText string         `json:"apply_text"`
	Draft     interface{}    `json:"draft,omitempty"`
	Raw       string         `json:"-"`
}

// Field name candidates, in priority order, for each canonical field.
// The reasoning service's own endpoints use missing_parameters and
// defaults_used, but the LLM behind them drifts.
var (
	missingKeys   = []string{"missing_parameters", "missing", "missing_items", "missing_fields"}
	defaultsKeys  = []string{"defaults", "defaults_used", "suggested_defaults", "default_values"}
	summaryKeys   = []string{"summary", "collection_summary"}
	applyTextKeys = []string{"apply_text", "applyText", "suggested_request", "revised_request"}
	draftKeys     = []string{"draft", "intent", "default_intent"}

	itemLabelKeys  = []string{"label", "name", "field", "key", "id"}
	itemDetailKeys = []string{"detail", "reason", "description", "note", "hint", "requirement"}

	defaultNameKeys  = []string{"name", "label", "field", "key", "id"}
	defaultValueKeys = []string{"value", "default", "suggested", "example", "recommended"}
	defaultNoteKeys  = []string{"note", "reason", "description", "comment", "unit"}
)

// ParseCheckResult extracts and coerces a pre-validation payload from raw
// model output. It never fails: an unparseable reply degrades to an empty
// result whose pass flag falls back to "no missing items".
func ParseCheckResult(raw string) CheckResult {
	obj, _ := ExtractObject(raw)

	result := CheckResult{Raw: raw}
	result.Missing = coerceMissing(firstPresent(obj, missingKeys))
	result.Defaults = coerceDefaults(firstPresent(obj, defaultsKeys))
	result.Summary = firstNonEmptyString(obj, summaryKeys)
	result.ApplyText = firstNonEmptyString(obj, applyTextKeys)
	result.Draft = firstPresent(obj, draftKeys)
	result.Passed = resolvePassed(obj, result.Missing)
	return result
}

// ExtractObject pulls a JSON object out of free-form model text.
// Candidates, in order: the first fenced json code block, the substring
// between the first '{' and the last '}', then the whole trimmed text.
// The first candidate that parses wins. Returns false when nothing parses.
func ExtractObject(text string) (map[string]interface{}, bool) {
	trimmed := strings.TrimSpace(text)

	var candidates []string
	if block, ok := fencedJSONBlock(trimmed); ok {
		candidates = append(candidates, block)
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			candidates = append(candidates, trimmed[start:end+1])
		}
	}
	candidates = append(candidates, trimmed)

	for _, c := range candidates {
		var v interface{}
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		if obj, ok := v.(map[string]interface{}); ok {
			return obj, true
		}
		// Parseable but not an object: nothing to coerce fields from.
		return map[string]interface{}{}, true
	}
	return map[string]interface{}{}, false
}

// fencedJSONBlock returns the content of the first ```json fence.
func fencedJSONBlock(text string) (string, bool) {
	lower := strings.ToLower(text)
	start := strings.Index(lower, "```json")
	if start < 0 {
		return "", false
	}
	rest := text[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// coerceMissing accepts a single string, a list of strings, a list of
// records, or nothing, and renders each entry to display text.
// Duplicates are dropped, first-seen order preserved.
func coerceMissing(v interface{}) []string {
	var items []interface{}
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		items = []interface{}{t}
	case []interface{}:
		items = t
	default:
		return []string{}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		text := renderMissingItem(item)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// renderMissingItem turns one missing-parameter entry into display text.
// Record entries render as label（detail）, either part alone when the
// other is absent, or a ·-joined dump of all string fields as a last
// resort.
func renderMissingItem(item interface{}) string {
	switch t := item.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		label := firstNonEmptyString(t, itemLabelKeys)
		detail := firstNonEmptyString(t, itemDetailKeys)
		switch {
		case label != "" && detail != "":
			return label + "（" + detail + "）"
		case label != "":
			return label
		case detail != "":
			return detail
		}
		var parts []string
		for _, k := range sortedKeys(t) {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "·")
	default:
		return ""
	}
}

// coerceDefaults accepts a list of records or a plain mapping and returns
// canonical entries. Mapping entries become {name: key, value: val} pairs.
// Entries with all three fields empty are dropped.
func coerceDefaults(v interface{}) []DefaultEntry {
	var out []DefaultEntry
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			entry := DefaultEntry{
				Name:  firstNonEmptyString(m, defaultNameKeys),
				Value: stringifyValue(firstPresent(m, defaultValueKeys)),
				Note:  firstNonEmptyString(m, defaultNoteKeys),
			}
			if entry.Name != "" || entry.Value != "" || entry.Note != "" {
				out = append(out, entry)
			}
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(t) {
			entry := DefaultEntry{Name: k, Value: stringifyValue(t[k])}
			if entry.Name != "" || entry.Value != "" {
				out = append(out, entry)
			}
		}
	}
	if out == nil {
		out = []DefaultEntry{}
	}
	return out
}

// stringifyValue renders a suggested default value as display text.
// Numbers and booleans format plainly, structured values JSON-encode,
// strings trim.
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// resolvePassed applies the pass-flag resolution order: explicit passed,
// then ok, then success, then a substring match on status, then the
// leniency fallback "no missing items means passed". The fallback trusts
// an absent or malformed reply as success on purpose; upstream response
// quality is outside this package's control.
func resolvePassed(obj map[string]interface{}, missing []string) bool {
	for _, key := range []string{"passed", "ok", "success"} {
		if v, present := obj[key]; present {
			if flag, ok := parseFlag(v); ok {
				return flag
			}
		}
	}
	if s, ok := obj["status"].(string); ok {
		lower := strings.ToLower(s)
		if strings.Contains(lower, "fail") {
			return false
		}
		if strings.Contains(lower, "pass") || strings.Contains(lower, "success") || strings.Contains(lower, "ok") {
			return true
		}
	}
	return len(missing) == 0
}

// parseFlag interprets a loosely-typed pass/fail value. Unrecognized
// string patterns report no decision so resolution can move on.
func parseFlag(v interface{}) (value, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "pass", "ok", "success":
			return true, true
		case "false", "fail", "error":
			return false, true
		}
	}
	return false, false
}

// SynthesizeApplyText builds a ready-to-resubmit request by appending a
// suggested-defaults bullet list to the original text. Entries use the
// reasoning service's full-width punctuation conventions. With no
// defaults to fold in, the original text is returned unchanged.
func SynthesizeApplyText(original string, defaults []DefaultEntry) string {
	if len(defaults) == 0 {
		return original
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(original, "\n"))
	sb.WriteString("\n\nSuggested defaults:")
	for _, d := range defaults {
		sb.WriteString("\n- ")
		switch {
		case d.Name != "" && d.Value != "":
			sb.WriteString(d.Name + "：" + d.Value)
		case d.Name != "":
			sb.WriteString(d.Name)
		default:
			sb.WriteString(d.Value)
		}
		if d.Note != "" {
			sb.WriteString("（" + d.Note + "）")
		}
	}
	return sb.String()
}

func firstPresent(m map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmptyString(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// sortedKeys gives deterministic iteration over JSON objects, whose Go
// map form has no insertion order to preserve.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
