package testfixtures

import "testing"

func TestIDGeneratorProducesPaddedSequence(t *testing.T) {
	gen := NewIDGenerator("slot")

	first := gen.Next()
	second := gen.NextFunc()()

	if first != "slot-001" || second != "slot-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued, got %d", gen.Issued())
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	if got := NewIDGenerator("").Next(); got != "id-001" {
		t.Fatalf("expected id-001, got %q", got)
	}
}
