package store

import (
	"context"
	"fmt"

	"github.com/brainspark/engine/internal/llm"
)

// AppendLLMRequest records one provider call in the request log.
func (s *Store) AppendLLMRequest(ctx context.Context, entry llm.RequestLogEntry) error {
	success := 0
	if entry.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_requests
			(provider, model, purpose, input_tokens, output_tokens, latency_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Provider, entry.Model, entry.Purpose, entry.InputTokens,
		entry.OutputTokens, entry.LatencyMs, success, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("append llm request: %w", err)
	}
	return nil
}
