package llm

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RequestLogEntry captures one provider call for the request log.
type RequestLogEntry struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// RequestLog persists provider call records. The store package provides
// the production implementation.
type RequestLog interface {
	AppendLLMRequest(ctx context.Context, entry RequestLogEntry) error
}

// LoggingProvider is a decorator that records every provider call.
type LoggingProvider struct {
	inner Provider
	log   RequestLog
}

// WithLogging wraps a Provider with request logging.
func WithLogging(p Provider, log RequestLog) Provider {
	return &LoggingProvider{inner: p, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	entry := RequestLogEntry{
		Provider:  l.inner.ModelID(),
		Model:     l.inner.ModelID(),
		Purpose:   purpose,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}

	if resp != nil {
		entry.InputTokens = resp.Usage.InputTokens
		entry.OutputTokens = resp.Usage.OutputTokens
		entry.Model = resp.Model
	}

	if err != nil {
		entry.ErrorMessage = err.Error()
	}

	// Log the call but never fail the request because logging failed.
	if logErr := l.log.AppendLLMRequest(ctx, entry); logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to log LLM request: %v\n", logErr)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
