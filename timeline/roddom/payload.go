package roddom

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/tootwatch/timeline"
)

// payload is one MutationObserver callback as sent through the binding.
type payload struct {
	Handle  timeline.Handle `json:"h"`
	Records []record        `json:"records"`
}

type record struct {
	Kind    string  `json:"kind"`
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

func decodePayload(raw string) (payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return payload{}, fmt.Errorf("decode: %w", err)
	}
	if p.Handle == "" {
		return payload{}, fmt.Errorf("decode: missing handle")
	}
	for _, r := range p.Records {
		switch timeline.ChangeKind(r.Kind) {
		case timeline.ChildList, timeline.Attributes, timeline.CharacterData:
		default:
			return payload{}, fmt.Errorf("decode: unknown change kind %q", r.Kind)
		}
	}
	return p, nil
}

// ids lists every parked node id the payload refers to, in record order.
func (p payload) ids() []int64 {
	var out []int64
	for _, r := range p.Records {
		out = append(out, r.Added...)
		out = append(out, r.Removed...)
	}
	return out
}
