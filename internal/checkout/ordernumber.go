package checkout

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "ORD"
	orderNumberDate   = "060102"
	maxDailySuffix    = 9999
)

// numberSource is the read surface the sequencer needs from the orders repo.
type numberSource interface {
	LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error)
}

type fallbackObserver interface {
	IncNumberFallback()
}

type fallbackLogger interface {
	WithField(ctx context.Context, key string, value any) context.Context
	Warn(ctx context.Context, msg string)
}

// Sequencer mints human-facing order numbers of the form ORD-YYMMDD-NNNN.
// The suffix continues from the highest number already issued for the day.
// When the sequence cannot be derived the sequencer falls back to a random
// four-digit suffix and reports it, so a duplicate is still caught by the
// unique index rather than silently overwriting the day's sequence.
type Sequencer struct {
	source  numberSource
	metrics fallbackObserver
	logg    fallbackLogger
}

// NewSequencer builds a sequencer over the given number source.
func NewSequencer(source numberSource, metrics fallbackObserver, logg fallbackLogger) (*Sequencer, error) {
	if source == nil {
		return nil, fmt.Errorf("number source required")
	}
	return &Sequencer{source: source, metrics: metrics, logg: logg}, nil
}

// WithSource returns a sequencer reading from a different source, used to
// point an existing sequencer at a transaction-bound repository.
func (s *Sequencer) WithSource(source numberSource) *Sequencer {
	if source == nil {
		return s
	}
	return &Sequencer{source: source, metrics: s.metrics, logg: s.logg}
}

// Next returns the next order number for the day containing now.
func (s *Sequencer) Next(ctx context.Context, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", orderNumberPrefix, now.UTC().Format(orderNumberDate))

	latest, err := s.source.LatestNumberWithPrefix(ctx, prefix)
	if err != nil {
		return s.fallback(ctx, prefix, fmt.Errorf("load latest order number: %w", err))
	}
	if latest == "" {
		return prefix + "0001", nil
	}

	suffix, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil {
		return s.fallback(ctx, prefix, fmt.Errorf("parse order number %q: %w", latest, err))
	}
	if suffix >= maxDailySuffix {
		return s.fallback(ctx, prefix, fmt.Errorf("daily sequence exhausted at %d", suffix))
	}
	return fmt.Sprintf("%s%04d", prefix, suffix+1), nil
}

// Random returns an order number with a random suffix, used directly when a
// sequential number collided and one retry was already spent.
func (s *Sequencer) Random(ctx context.Context, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", orderNumberPrefix, now.UTC().Format(orderNumberDate))
	return s.fallback(ctx, prefix, nil)
}

func (s *Sequencer) fallback(ctx context.Context, prefix string, cause error) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", fmt.Errorf("random order suffix: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncNumberFallback()
	}
	if s.logg != nil {
		lctx := ctx
		if cause != nil {
			lctx = s.logg.WithField(ctx, "cause", cause.Error())
		}
		s.logg.Warn(lctx, "order number sequence unavailable, using random suffix")
	}
	return fmt.Sprintf("%s%04d", prefix, suffix), nil
}

func randomSuffix() (int, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	// 1..9999, matching the sequential range. A 0000 suffix is never minted.
	return 1 + int(binary.BigEndian.Uint64(buf[:])%maxDailySuffix), nil
}
