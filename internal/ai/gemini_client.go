package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"agentic-rag-platform/internal/telemetry"
)

// ErrRateLimited is returned when the client-side token window is exhausted.
var ErrRateLimited = errors.New("rate limit exceeded: wait before retry")

type GeminiClient struct {
	apiKey       string
	model        string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	tier         string
	metrics      *telemetry.Metrics
}

// SetMetrics enables token-usage metrics on the client. Safe to skip when
// telemetry is disabled.
func (gc *GeminiClient) SetMetrics(m *telemetry.Metrics) {
	gc.metrics = m
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(apiKey, tier, model string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	// Configure rate limits based on tier
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		apiKey:       apiKey,
		model:        model,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		client:       client,
		tier:         tier,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GenerateOptions tune a single generation call.
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int32
	// JSONOutput forces application/json response MIME type so the model
	// returns a parseable object (planner/verifier contracts).
	JSONOutput bool
}

// Result carries the generated text and the actual token usage reported by
// the API.
type Result struct {
	Text       string
	TokensUsed int
}

// Generate runs one chat completion through the rate limiter and circuit
// breaker.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Result, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	// Estimate tokens BEFORE making request
	estimatedTokens := estimateTokens(prompt, opts.SystemPrompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
		attribute.Bool("gemini.json_output", opts.JSONOutput),
	)

	// Check token limits
	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, ErrRateLimited
	}

	// Rate limiter wait
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	// Circuit breaker execution
	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		if opts.Temperature > 0 {
			model.SetTemperature(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			model.SetMaxOutputTokens(opts.MaxTokens)
		} else {
			model.SetMaxOutputTokens(2048)
		}
		if opts.JSONOutput {
			model.ResponseMIMEType = "application/json"
		}
		if opts.SystemPrompt != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(opts.SystemPrompt)},
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}

		// Get ACTUAL token usage from response
		actualTokens := extractTokenUsage(resp)
		gc.tokenCounter.RecordUsage(actualTokens, 1)
		if gc.metrics != nil {
			gc.metrics.RecordTokensUsed(int64(actualTokens), gc.model)
		}

		span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))

		return &Result{Text: collectText(resp), TokensUsed: actualTokens}, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return nil, fmt.Errorf("llm temporarily unavailable: %w", err)
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(*Result), nil
}

func (gc *GeminiClient) Close() error {
	return gc.client.Close()
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimation: 1 token ≈ 4 characters
func estimateTokens(parts ...string) int {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return total / 4
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	// Fallback: estimate from response text, ~4 characters per token
	return len(collectText(resp)) / 4
}

func collectText(resp *genai.GenerateContentResponse) string {
	totalText := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					totalText += string(text)
				}
			}
		}
	}
	return totalText
}
