package rules

import "encoding/json"

// ReasonsJSON serializes hits into the structured rule_reasons payload
// persisted with an anomaly: [{"rule": …, "message": …, "details": {…}}].
func ReasonsJSON(hits []Hit) json.RawMessage {
	type reason struct {
		Rule    string         `json:"rule"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	}

	reasons := make([]reason, 0, len(hits))
	for _, h := range hits {
		reasons = append(reasons, reason{Rule: h.Code, Message: h.Message, Details: h.Details})
	}

	raw, err := json.Marshal(reasons)
	if err != nil {
		// Detail payloads only hold JSON-safe scalars; keep a valid
		// document even if that assumption breaks.
		return json.RawMessage(`[]`)
	}
	return raw
}
