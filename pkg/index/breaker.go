package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/recall/pkg/types"
)

// BreakerSettings tunes the circuit breakers wrapped around providers.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerSettings trips after 3+ requests with a 60% failure ratio
// and half-opens after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

func newBreaker(name string, cfg BreakerSettings, log *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("search provider circuit state changed",
					"provider", name, "from", from.String(), "to", to.String())
			}
		},
	})
}

func breakerErr(provider string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &types.ProviderUnavailableError{Provider: provider, Err: err}
	}
	return err
}

// LexicalBreaker wraps a Lexical provider's search path in a circuit
// breaker. Indexing bypasses the breaker: a failed index write must surface
// to the caller, not be absorbed by degradation.
type LexicalBreaker struct {
	inner Lexical
	cb    *gobreaker.CircuitBreaker
}

// WrapLexical wraps the provider with the given breaker settings.
func WrapLexical(inner Lexical, cfg BreakerSettings, log *slog.Logger) *LexicalBreaker {
	return &LexicalBreaker{inner: inner, cb: newBreaker("lexical", cfg, log)}
}

func (b *LexicalBreaker) Index(ctx context.Context, rec *types.Record) error {
	return b.inner.Index(ctx, rec)
}

func (b *LexicalBreaker) Remove(ctx context.Context, id string) error {
	return b.inner.Remove(ctx, id)
}

func (b *LexicalBreaker) Search(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, breakerErr("lexical", err)
	}
	hits, _ := res.([]LexicalHit)
	return hits, nil
}

func (b *LexicalBreaker) Close() error { return b.inner.Close() }

// SemanticBreaker is the semantic-side counterpart of LexicalBreaker.
type SemanticBreaker struct {
	inner Semantic
	cb    *gobreaker.CircuitBreaker
}

// WrapSemantic wraps the provider with the given breaker settings.
func WrapSemantic(inner Semantic, cfg BreakerSettings, log *slog.Logger) *SemanticBreaker {
	return &SemanticBreaker{inner: inner, cb: newBreaker("semantic", cfg, log)}
}

func (b *SemanticBreaker) Index(ctx context.Context, rec *types.Record) error {
	return b.inner.Index(ctx, rec)
}

func (b *SemanticBreaker) Remove(ctx context.Context, id string) error {
	return b.inner.Remove(ctx, id)
}

func (b *SemanticBreaker) Search(ctx context.Context, query string, threshold float64, limit int) ([]SemanticHit, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Search(ctx, query, threshold, limit)
	})
	if err != nil {
		return nil, breakerErr("semantic", err)
	}
	hits, _ := res.([]SemanticHit)
	return hits, nil
}

func (b *SemanticBreaker) Close() error { return b.inner.Close() }
