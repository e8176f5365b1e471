package questionnaire

import (
	"fmt"
	"strconv"
	"strings"
)

// AnswerFor wraps a raw value in the answer shape the item's type expects.
// Choice values are resolved against the answer options so the stored answer
// carries the full coding, not just the code the form edits.
func AnswerFor(item Item, value any) Answer {
	switch item.Type {
	case "boolean":
		switch v := value.(type) {
		case bool:
			return BoolAnswer(v)
		case string:
			lower := strings.ToLower(v)
			return BoolAnswer(lower == "yes" || lower == "true")
		}
		return BoolAnswer(false)

	case "integer":
		switch v := value.(type) {
		case int:
			return IntAnswer(v)
		case float64:
			return IntAnswer(int(v))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return IntAnswer(n)
			}
		}
		return IntAnswer(0)

	case "decimal":
		switch v := value.(type) {
		case float64:
			return DecimalAnswer(v)
		case int:
			return DecimalAnswer(float64(v))
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return DecimalAnswer(f)
			}
		}
		return DecimalAnswer(0)

	case "date":
		return DateAnswer(toString(value))
	case "dateTime":
		return DateTimeAnswer(toString(value))
	case "time":
		return TimeAnswer(toString(value))

	case "choice":
		s := toString(value)
		for _, opt := range item.AnswerOption {
			if opt.Code() == s || strings.EqualFold(opt.Display(), s) {
				if opt.ValueCoding != nil {
					return CodingAnswer(*opt.ValueCoding)
				}
				return StringAnswer(opt.ValueString)
			}
		}
		return StringAnswer(s)
	}

	return StringAnswer(toString(value))
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// FillMissing walks the questionnaire definition and adds an answer for every
// question the response left blank, using the gap filler. Group structure is
// mirrored into the response; display items are skipped. The input response
// is not mutated.
func FillMissing(resp *Response, q *Questionnaire, ctx FillContext) *Response {
	filled := *resp
	filled.Item = cloneItems(resp.Item)
	if q == nil {
		return &filled
	}
	filled.Item = fillItems(q.Item, filled.Item, ctx, responseAnswerIndex(filled.Item))
	return &filled
}

func cloneItems(items []ResponseItem) []ResponseItem {
	out := make([]ResponseItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Answer = append([]Answer(nil), it.Answer...)
		out[i].Item = cloneItems(it.Item)
	}
	return out
}

// responseAnswerIndex collects every linkId that already has an answer,
// anywhere in the tree.
func responseAnswerIndex(items []ResponseItem) map[string]bool {
	answered := map[string]bool{}
	var walk func([]ResponseItem)
	walk = func(items []ResponseItem) {
		for _, it := range items {
			if len(it.Answer) > 0 {
				answered[it.LinkID] = true
			}
			walk(it.Item)
		}
	}
	walk(items)
	return answered
}

func fillItems(qItems []Item, respItems []ResponseItem, ctx FillContext, answered map[string]bool) []ResponseItem {
	for _, qItem := range qItems {
		if qItem.Type == "display" {
			continue
		}

		if qItem.Type == "group" {
			idx := findItem(respItems, qItem.LinkID)
			if idx < 0 {
				respItems = append(respItems, ResponseItem{LinkID: qItem.LinkID})
				idx = len(respItems) - 1
			}
			respItems[idx].Item = fillItems(qItem.Item, respItems[idx].Item, ctx, answered)
			continue
		}

		if answered[qItem.LinkID] {
			continue
		}
		answer := AnswerFor(qItem, DummyValue(qItem, ctx))
		respItems = append(respItems, ResponseItem{
			LinkID: qItem.LinkID,
			Answer: []Answer{answer},
		})
		answered[qItem.LinkID] = true
	}
	return respItems
}

func findItem(items []ResponseItem, linkID string) int {
	for i, it := range items {
		if it.LinkID == linkID {
			return i
		}
	}
	return -1
}
