package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/resilience"
	"github.com/anthrasite/leadfactory-cli/internal/similarity"
	"github.com/anthrasite/leadfactory-cli/internal/store"
	"github.com/anthrasite/leadfactory-cli/internal/verify"
	"github.com/anthrasite/leadfactory-cli/pkg/anthropic"
	"github.com/anthrasite/leadfactory-cli/pkg/ollama"
)

// initStore opens the configured backend. Postgres connects are retried
// because a pool that races the database at startup is the most common
// transient failure in batch runs.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadfactory.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		retryCfg := resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier, cfg.Retry.JitterFraction)
		retryCfg.ShouldRetry = func(error) bool { return true }
		retryCfg.OnRetry = resilience.RetryLogger("postgres", "connect")
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initVerifier builds the configured LLM backend wrapped in a circuit
// breaker, plus the cost sink that prices its calls.
func initVerifier(ctx context.Context, st store.Store) (verify.Verifier, error) {
	calc := cost.NewCalculator(cfg.Pricing.Rates())
	ledger := cost.NewLedger(st)

	var inner verify.Verifier
	switch cfg.Verifier.Backend {
	case "ollama":
		client := ollama.NewClient(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
			ollama.WithTimeout(time.Duration(cfg.Ollama.TimeoutSecs)*time.Second),
			ollama.WithRateLimit(cfg.Ollama.RequestsPerSec),
		)
		// Warm up the backend so the first pair doesn't pay model load time.
		retryCfg := resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier, cfg.Retry.JitterFraction)
		retryCfg.OnRetry = resilience.RetryLogger("ollama", "ping")
		if err := resilience.Do(ctx, retryCfg, client.Ping); err != nil {
			return nil, eris.Wrap(err, "ollama is not reachable")
		}
		inner = verify.NewOllamaVerifier(client, cfg.Ollama.Model, calc, ledger)
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic API key is required (LEADFACTORY_ANTHROPIC_KEY)")
		}
		inner = verify.NewAnthropicVerifier(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, calc, ledger)
	default:
		return nil, eris.Errorf("unsupported verifier backend: %s", cfg.Verifier.Backend)
	}

	return verify.NewCircuitVerifier(inner, resilience.FromCircuitConfig(
		cfg.Verifier.FailureThreshold, cfg.Verifier.ResetTimeoutSecs)), nil
}

func newMatcher(threshold float64) *similarity.Matcher {
	if threshold <= 0 {
		threshold = cfg.Dedupe.Threshold
	}
	return similarity.NewMatcher(
		similarity.WithThreshold(threshold),
		similarity.WithExactAddressOverride(cfg.Dedupe.ExactAddressOverride),
	)
}
