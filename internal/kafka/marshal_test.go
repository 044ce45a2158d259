package kafka

import (
	"encoding/json"
	"testing"
)

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
		Reason  string `json:"reason"`
	}
	raw := json.RawMessage(MustMarshal(payload{OrderID: "o1", Reason: "timeout"}))

	got, err := UnwrapPayload[payload](raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.OrderID != "o1" || got.Reason != "timeout" {
		t.Errorf("payload = %+v", got)
	}

	if _, err := UnwrapPayload[payload](json.RawMessage(`{broken`)); err == nil {
		t.Error("malformed payload decoded without error")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := map[string]any{"k": "v"}
	var out map[string]any
	if err := Unmarshal(MustMarshal(in), &out); err != nil {
		t.Fatal(err)
	}
	if out["k"] != "v" {
		t.Errorf("out = %v", out)
	}
}
