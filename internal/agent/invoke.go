package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatbridge/internal/metrics"
)

const (
	maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload
	maxMessageSize = 512 * 1024      // 512KB per message content
)

// Wire shape sent to the agent service.
type providerInvokeRequest struct {
	Input   string    `json:"input"`
	History []Message `json:"history"`
}

// Wire shape returned by the agent service.
type providerInvokeResponse struct {
	Output            string `json:"output"`
	IntermediateSteps []Step `json:"intermediate_steps"`
}

type providerErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// Invoke runs one generator call against the agent service.
// Failures and timeouts are returned as *GenerationError.
func (g *httpGenerator) Invoke(parentCtx context.Context, in Input) (*Result, error) {
	start := time.Now()

	result, err := g.invoke(parentCtx, in)
	metrics.ObserveGenerator(g.path, time.Since(start), err)

	if err != nil {
		g.logger.Error("generator invocation failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, &GenerationError{
			Path:    g.path,
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}

	g.logger.Info("generator invocation completed",
		zap.Int("output_length", len(result.Output)),
		zap.Int("step_count", len(result.IntermediateSteps)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (g *httpGenerator) invoke(parentCtx context.Context, in Input) (*Result, error) {
	if in.Query == "" {
		return nil, fmt.Errorf("agentclient: query is empty")
	}

	// Per-message size guard
	for i, m := range in.History {
		if len(m.Content) > maxMessageSize {
			return nil, fmt.Errorf(
				"agentclient: history[%d] content too large (%d bytes, max %d)",
				i, len(m.Content), maxMessageSize,
			)
		}
	}

	g.logger.Debug("generator invocation starting",
		zap.Int("query_length", len(in.Query)),
		zap.Int("history_length", len(in.History)),
	)

	// Per-invocation timeout (0 = only use parentCtx)
	var ctx context.Context
	var cancel context.CancelFunc
	if g.cfg.InvokeTimeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, g.cfg.InvokeTimeout)
	} else {
		ctx, cancel = context.WithCancel(parentCtx)
	}
	defer cancel()

	pReq := providerInvokeRequest{
		Input:   in.Query,
		History: in.History,
	}

	bodyBytes, err := json.Marshal(pReq)
	if err != nil {
		return nil, fmt.Errorf("agentclient: marshal request: %w", err)
	}

	if len(bodyBytes) > maxRequestSize {
		return nil, fmt.Errorf(
			"agentclient: request too large (%d bytes, max %d)",
			len(bodyBytes), maxRequestSize,
		)
	}

	url := g.cfg.BaseURL + "/v1/agents/" + g.path + "/invoke"

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("agentclient: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		return g.httpClient.Do(httpReq)
	}

	resp, err := g.doWithRetry(ctx, bodyBytes, doOnce)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)

		// Try to parse a structured error first.
		var perr providerErrorResponse
		if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
			g.logger.Error("agent provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("error_type", perr.Error.Type),
				zap.String("error_message", perr.Error.Message),
			)
			return nil, fmt.Errorf("agentclient: upstream %d: %s (%s)",
				resp.StatusCode, perr.Error.Message, perr.Error.Type)
		}

		g.logger.Error("agent upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return nil, fmt.Errorf("agentclient: upstream %d: %s",
			resp.StatusCode, truncate(string(body), 200))
	}

	var pResp providerInvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return nil, fmt.Errorf("agentclient: decode upstream response: %w", err)
	}

	if pResp.Output == "" {
		return nil, fmt.Errorf("agentclient: provider returned empty output")
	}

	return &Result{
		Output:            pResp.Output,
		IntermediateSteps: pResp.IntermediateSteps,
	}, nil
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
