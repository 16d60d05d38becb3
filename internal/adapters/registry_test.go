package adapters

import "testing"

func TestResolveDefaultVersion(t *testing.T) {
	r := NewRegistry()
	r.Register("acme", NewPassthrough("1.0"))

	a, err := r.Resolve("acme", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Version() != "1.0" {
		t.Fatalf("expected default version 1.0, got %s", a.Version())
	}
}

func TestResolveForbiddenOverride(t *testing.T) {
	r := NewRegistry()
	r.Register("acme", NewPassthrough("1.0"))
	r.Register("acme", NewPassthrough("2.0"))

	if _, err := r.Resolve("acme", "2.0", false); err == nil {
		t.Fatal("expected forbidden override error for non-admin caller")
	}
	if _, err := r.Resolve("acme", "2.0", true); err != nil {
		t.Fatalf("expected partner-admin override to succeed, got %v", err)
	}
}

func TestResolveUnknownAdapter(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("nobody", "", false); err == nil {
		t.Fatal("expected adapter_not_found error")
	}
}
