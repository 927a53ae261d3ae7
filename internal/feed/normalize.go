package feed

import "encoding/json"

// shapeMatcher inspects a decoded notification payload and, when it
// recognizes the envelope, returns the contained row list. Matchers are
// pure functions; they never modify the input.
type shapeMatcher func(raw any) ([]any, bool)

// rowShapes is the ordered list of envelopes the notification endpoint has
// been observed to produce. The first match wins.
//
// The backend wraps its JSON in an ASP.NET-style "d" envelope, sometimes
// with a DataTables "data" key inside, sometimes not; older responses put
// "data" at the top level or return the bare list.
var rowShapes = []shapeMatcher{
	matchEnvelopeData, // {"d": {"data": [...]}}
	matchEnvelopeList, // {"d": [...]}
	matchData,         // {"data": [...]}
	matchList,         // [...]
}

func matchEnvelopeData(raw any) ([]any, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := obj["d"].(map[string]any)
	if !ok {
		return nil, false
	}
	rows, ok := inner["data"].([]any)
	return rows, ok
}

func matchEnvelopeList(raw any) ([]any, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	rows, ok := obj["d"].([]any)
	return rows, ok
}

func matchData(raw any) ([]any, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	rows, ok := obj["data"].([]any)
	return rows, ok
}

func matchList(raw any) ([]any, bool) {
	rows, ok := raw.([]any)
	return rows, ok
}

// ExtractRows flattens a raw notification payload into a list of row
// mappings, trying each known envelope shape in order.
//
// Absence of structure is not an error: a nil, null, malformed, or
// unrecognized payload yields an empty list. Rows that are not mappings
// are dropped here so downstream projection only sees mappings.
func ExtractRows(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	for _, match := range rowShapes {
		items, ok := match(decoded)
		if !ok {
			continue
		}
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return rows
	}
	return nil
}
