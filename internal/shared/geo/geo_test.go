package geo

import "testing"

func TestValid(t *testing.T) {
	if !Valid(-6.2, 106.816) {
		t.Fatalf("expected valid coordinate")
	}
	if Valid(91, 0) || Valid(-91, 0) || Valid(0, 181) || Valid(0, -181) {
		t.Fatalf("expected out-of-range coordinates to be invalid")
	}
}
