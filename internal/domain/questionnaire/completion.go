package questionnaire

import "strings"

// Placeholder strings that look like answers but aren't.
var sentinelAnswers = map[string]bool{
	"N/A":                 true,
	"Unknown":             true,
	"Select an option...": true,
	"Select an option":    true,
}

// Filled reports whether an answer carries a real value. Booleans and
// numbers count as filled whenever present (false and 0 are legitimate
// answers); strings must be non-blank and not a placeholder; coded answers
// need a non-empty code and a non-placeholder display.
func (a Answer) Filled() bool {
	switch {
	case a.ValueBoolean != nil, a.ValueInteger != nil, a.ValueDecimal != nil:
		return true
	case a.ValueString != nil:
		s := strings.TrimSpace(*a.ValueString)
		return s != "" && !sentinelAnswers[s]
	case a.ValueDate != nil:
		return *a.ValueDate != ""
	case a.ValueDateTime != nil:
		return *a.ValueDateTime != ""
	case a.ValueTime != nil:
		return *a.ValueTime != ""
	case a.ValueCoding != nil:
		return a.ValueCoding.Code != "" && !sentinelAnswers[a.ValueCoding.Display]
	}
	return false
}

// CountFields walks a response tree and counts answerable leaves and how many
// of them are filled. Groups are recursed into; leaves whose linkId marks
// them as display-only or a section header are not fields.
func CountFields(items []ResponseItem) (total, filled int) {
	for _, item := range items {
		if len(item.Item) > 0 {
			t, f := CountFields(item.Item)
			total += t
			filled += f
			continue
		}
		if item.LinkID == "" ||
			strings.Contains(item.LinkID, "display") ||
			strings.Contains(item.LinkID, "section") {
			continue
		}
		total++
		if len(item.Answer) > 0 && item.Answer[0].Filled() {
			filled++
		}
	}
	return total, filled
}

// Completion returns the whole-percent completion of a response tree. A tree
// with no countable fields is 0, not 100: an empty form is not a finished
// form.
func Completion(items []ResponseItem) int {
	total, filled := CountFields(items)
	if total == 0 {
		return 0
	}
	return int(float64(filled)/float64(total)*100 + 0.5)
}
