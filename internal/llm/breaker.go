package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerClient wraps a Client with circuit breaking so that a dead LLM
// server costs one failed probe per interval instead of a full timeout on
// every expansion and rerank call.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// BreakerConfig tunes the circuit breaker
type BreakerConfig struct {
	MaxRequests uint32        // Probes allowed while half-open
	Interval    time.Duration // Counter reset interval while closed
	Timeout     time.Duration // Open -> half-open delay
}

// DefaultBreakerConfig returns conservative defaults for a local server
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// NewBreakerClient wraps client with a circuit breaker
func NewBreakerClient(client Client, cfg BreakerConfig, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	st := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
	}
}

// Complete implements Client
func (b *BreakerClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.Complete(ctx, prompt, opts)
	})
	if err != nil {
		return "", translateBreakerError(err)
	}
	return result.(string), nil
}

// Chat implements Client
func (b *BreakerClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.Chat(ctx, messages, opts)
	})
	if err != nil {
		return "", translateBreakerError(err)
	}
	return result.(string), nil
}

func (b *BreakerClient) Model() string {
	return b.client.Model()
}

func (b *BreakerClient) Close() error {
	return b.client.Close()
}

// translateBreakerError maps an open breaker onto the unavailable error set
// so callers take the normal degradation path.
func translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker open", ErrConnectionRefused)
	}
	return err
}
