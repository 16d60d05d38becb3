package redaction

import "testing"

func TestWalkRedactsNestedSecrets(t *testing.T) {
	in := map[string]any{
		"username": "alice",
		"Password": "hunter2",
		"nested": map[string]any{
			"API_KEY": "abc123",
			"ok":      "kept",
		},
		"list": []any{
			map[string]any{"token": "zzz"},
		},
	}
	out := Payload(in)
	if out["Password"] != Sentinel {
		t.Fatalf("expected Password redacted, got %v", out["Password"])
	}
	if out["username"] != "alice" {
		t.Fatal("expected username preserved")
	}
	nested := out["nested"].(map[string]any)
	if nested["API_KEY"] != Sentinel {
		t.Fatal("expected nested API_KEY redacted case-insensitively")
	}
	if nested["ok"] != "kept" {
		t.Fatal("expected unrelated nested key preserved")
	}
	list := out["list"].([]any)
	item := list[0].(map[string]any)
	if item["token"] != Sentinel {
		t.Fatal("expected token inside list element redacted")
	}
}
