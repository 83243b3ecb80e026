package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubNumberSource struct {
	latest string
	err    error
}

func (s *stubNumberSource) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	return s.latest, s.err
}

type stubFallbackCounter struct {
	count int
}

func (s *stubFallbackCounter) IncNumberFallback() { s.count++ }

var sequencerNow = time.Date(2026, 8, 29, 15, 4, 5, 0, time.UTC)

func TestSequencerFirstOrderOfDay(t *testing.T) {
	seq, err := NewSequencer(&stubNumberSource{}, nil, nil)
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}

	number, err := seq.Next(context.Background(), sequencerNow)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if number != "ORD-260829-0001" {
		t.Fatalf("unexpected number %s", number)
	}
}

func TestSequencerContinuesSequence(t *testing.T) {
	seq, _ := NewSequencer(&stubNumberSource{latest: "ORD-260829-0041"}, nil, nil)

	number, err := seq.Next(context.Background(), sequencerNow)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if number != "ORD-260829-0042" {
		t.Fatalf("unexpected number %s", number)
	}
}

func TestSequencerFallbackOnSourceError(t *testing.T) {
	counter := &stubFallbackCounter{}
	seq, _ := NewSequencer(&stubNumberSource{err: errors.New("db down")}, counter, nil)

	number, err := seq.Next(context.Background(), sequencerNow)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !strings.HasPrefix(number, "ORD-260829-") {
		t.Fatalf("fallback number lost prefix: %s", number)
	}
	if len(number) != len("ORD-260829-0000") {
		t.Fatalf("fallback suffix not four digits: %s", number)
	}
	if counter.count != 1 {
		t.Fatalf("fallback not observed, count=%d", counter.count)
	}
}

func TestSequencerFallbackOnMalformedLatest(t *testing.T) {
	counter := &stubFallbackCounter{}
	seq, _ := NewSequencer(&stubNumberSource{latest: "ORD-260829-XYZ"}, counter, nil)

	number, err := seq.Next(context.Background(), sequencerNow)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !strings.HasPrefix(number, "ORD-260829-") {
		t.Fatalf("fallback number lost prefix: %s", number)
	}
	if counter.count != 1 {
		t.Fatalf("fallback not observed, count=%d", counter.count)
	}
}

func TestRandomSuffixNeverZero(t *testing.T) {
	for i := 0; i < 10000; i++ {
		n, err := randomSuffix()
		if err != nil {
			t.Fatalf("random suffix: %v", err)
		}
		if n < 1 || n > maxDailySuffix {
			t.Fatalf("suffix %d outside 1..%d", n, maxDailySuffix)
		}
	}

	seq, _ := NewSequencer(&stubNumberSource{}, nil, nil)
	for i := 0; i < 100; i++ {
		number, err := seq.Random(context.Background(), sequencerNow)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		if strings.HasSuffix(number, "-0000") {
			t.Fatalf("random number minted zero suffix: %s", number)
		}
	}
}

func TestSequencerFallbackOnExhaustedDay(t *testing.T) {
	counter := &stubFallbackCounter{}
	seq, _ := NewSequencer(&stubNumberSource{latest: "ORD-260829-9999"}, counter, nil)

	if _, err := seq.Next(context.Background(), sequencerNow); err != nil {
		t.Fatalf("next: %v", err)
	}
	if counter.count != 1 {
		t.Fatalf("fallback not observed, count=%d", counter.count)
	}
}
