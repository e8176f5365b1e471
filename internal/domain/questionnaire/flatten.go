package questionnaire

// Flatten reduces a response tree to linkId→value for the form editor.
// Coded answers flatten to their code, which is what select inputs hold as
// the option value; groups contribute their children, not themselves.
func Flatten(items []ResponseItem) map[string]any {
	flat := map[string]any{}
	var walk func([]ResponseItem)
	walk = func(items []ResponseItem) {
		for _, item := range items {
			if len(item.Item) > 0 {
				walk(item.Item)
			}
			if len(item.Answer) == 0 {
				continue
			}
			if v := item.Answer[0].Value(); v != nil {
				flat[item.LinkID] = v
			}
		}
	}
	walk(items)
	return flat
}

// Nest rebuilds a response tree from edited flat values, using the
// questionnaire definition for group structure and answer typing. linkIds
// absent from the flat map produce no response item; flatten(nest(flat)) is
// flat again.
func Nest(q *Questionnaire, flat map[string]any) []ResponseItem {
	if q == nil {
		return nil
	}
	return nestItems(q.Item, flat)
}

func nestItems(qItems []Item, flat map[string]any) []ResponseItem {
	var out []ResponseItem
	for _, qItem := range qItems {
		switch qItem.Type {
		case "display":
			continue
		case "group":
			children := nestItems(qItem.Item, flat)
			if len(children) > 0 {
				out = append(out, ResponseItem{LinkID: qItem.LinkID, Text: qItem.Text, Item: children})
			}
		default:
			v, ok := flat[qItem.LinkID]
			if !ok || v == nil {
				continue
			}
			out = append(out, ResponseItem{
				LinkID: qItem.LinkID,
				Text:   qItem.Text,
				Answer: []Answer{AnswerFor(qItem, v)},
			})
		}
	}
	return out
}
