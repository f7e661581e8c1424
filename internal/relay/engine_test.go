package relay

import "testing"

func TestEnsureReqID_GeneratesWhenAbsent(t *testing.T) {
	payload := map[string]interface{}{"sim": float64(1)}
	reqID := ensureReqID(payload)

	if reqID == "" {
		t.Fatal("expected a non-empty generated req_id")
	}
	if payload["req_id"] != reqID {
		t.Fatalf("payload[req_id] = %v, want %q", payload["req_id"], reqID)
	}
}

func TestEnsureReqID_PreservesExisting(t *testing.T) {
	payload := map[string]interface{}{"req_id": "caller-supplied-id"}
	reqID := ensureReqID(payload)

	if reqID != "caller-supplied-id" {
		t.Fatalf("reqID = %q, want %q", reqID, "caller-supplied-id")
	}
}

func TestEnsureReqID_TreatsEmptyStringAsAbsent(t *testing.T) {
	payload := map[string]interface{}{"req_id": ""}
	reqID := ensureReqID(payload)

	if reqID == "" {
		t.Fatal("expected a generated req_id to replace the empty one")
	}
	if payload["req_id"] == "" {
		t.Fatal("expected payload to be updated with the generated req_id")
	}
}
