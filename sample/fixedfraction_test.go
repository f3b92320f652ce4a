package sample

import (
	"io"
	"testing"
)

func TestFixedFractionKeepsAndDrops(t *testing.T) {
	capture := &captureFormat{}
	f := NewFixedFraction(capture, 0.5)

	f.rand = func() float64 { return 0.4 }
	if err := f.Format(groupedEntry{}, io.Discard); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if capture.entries != 1 || capture.rates[0] != 0.5 {
		t.Fatalf("kept entry not forwarded with its rate: %+v", capture)
	}

	f.rand = func() float64 { return 0.9 }
	if err := f.Format(groupedEntry{}, io.Discard); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if capture.entries != 1 {
		t.Fatalf("dropped entry reached the format: %+v", capture)
	}
}

func TestFixedFractionAlwaysKeepsAtRateOne(t *testing.T) {
	capture := &captureFormat{}
	f := NewFixedFraction(capture, 1)
	for i := 0; i < 100; i++ {
		if err := f.Format(groupedEntry{}, io.Discard); err != nil {
			t.Fatalf("Format: %v", err)
		}
	}
	if capture.entries != 100 {
		t.Fatalf("entries forwarded = %d, want 100", capture.entries)
	}
}

func TestFixedFractionRejectsBadRates(t *testing.T) {
	for _, rate := range []float32{0, -0.5, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("rate %v: expected panic", rate)
				}
			}()
			NewFixedFraction(&captureFormat{}, rate)
		}()
	}
}
