// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/musealliance/installation-controller/internal/catalog"
	"github.com/musealliance/installation-controller/internal/errs"
)

const (
	backoffBase   = 1 * time.Second
	backoffFactor = 2
	backoffJitter = 0.2
	maxAttempts   = 3
)

// Profile aggregates the six resolved answers and their titles, the request
// payload for Generate.
type Profile struct {
	Answers [6]catalog.Answer
	Titles  [6]string
}

// Client is the remote text-generation oracle with a persistent rate
// limiter, retries, and a deterministic offline fallback. Every Generate
// call therefore always returns a valid paragraph pair.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string
	Limiter    *RateLimiter
	Fallback   *FallbackTable
	Sleep      func(time.Duration)
	Rand       *rand.Rand
}

// NewClient returns a ready-to-use Client. httpClient, limiter and fallback
// must be non-nil; the others take spec defaults.
func NewClient(httpClient *http.Client, endpoint, apiKey, model string, limiter *RateLimiter, fallback *FallbackTable) *Client {
	return &Client{
		HTTPClient: httpClient,
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		Limiter:    limiter,
		Fallback:   fallback,
		Sleep:      time.Sleep,
		Rand:       rand.New(rand.NewSource(1)),
	}
}

// Result is the outcome of one Generate call.
type Result struct {
	Paragraphs   Paragraphs
	UsedFallback bool
}

// Generate produces the two personalized paragraphs for profile. It first
// reserves a rate-limit slot (blocking up to the limiter's MaxWait); on
// ErrQuotaExceeded, or after three failed remote attempts, or on an
// authoritative non-retryable remote error, it falls back to the
// deterministic CSV table so the call always succeeds (spec §4.8).
func (c *Client) Generate(ctx context.Context, profile Profile) (Result, error) {
	if err := c.Limiter.CheckAndReserve(); err != nil {
		return c.fallbackResult(profile), nil
	}

	paras, err := c.generateRemote(ctx, profile)
	if err != nil {
		return c.fallbackResult(profile), nil
	}
	return Result{Paragraphs: paras, UsedFallback: false}, nil
}

func (c *Client) fallbackResult(profile Profile) Result {
	key := FallbackKey{
		F01: profile.Answers[catalog.F01].Index,
		F05: profile.Answers[catalog.F05].Index,
		F06: profile.Answers[catalog.F06].Index,
	}
	return Result{Paragraphs: c.Fallback.Lookup(key), UsedFallback: true}
}

func (c *Client) generateRemote(ctx context.Context, profile Profile) (Paragraphs, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.sleepBackoff(attempt)
		}
		paras, retryable, err := c.attempt(ctx, profile)
		if err == nil {
			return paras, nil
		}
		lastErr = err
		if !retryable {
			return Paragraphs{}, err
		}
	}
	return Paragraphs{}, fmt.Errorf("content: exhausted retries: %w", lastErr)
}

func (c *Client) sleepBackoff(attempt int) {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= backoffFactor
	}
	jitter := 1 + (c.Rand.Float64()*2-1)*backoffJitter
	c.Sleep(time.Duration(float64(d) * jitter))
}

type remoteRequest struct {
	Model           string  `json:"model"`
	Prompt          string  `json:"prompt"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type remoteResponse struct {
	Text string `json:"text"`
}

// attempt performs one HTTP round trip. It returns retryable=true for
// network errors, HTTP 5xx, an empty body, or HTTP 429; retryable=false for
// any other 4xx, which surfaces as ErrAuthError/ErrRequestError.
func (c *Client) attempt(ctx context.Context, profile Profile) (Paragraphs, bool, error) {
	body, err := json.Marshal(remoteRequest{
		Model:           c.Model,
		Prompt:          buildPrompt(profile),
		Temperature:     0.8,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return Paragraphs{}, false, fmt.Errorf("content: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Paragraphs{}, false, fmt.Errorf("content: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Paragraphs{}, true, fmt.Errorf("content: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Paragraphs{}, true, fmt.Errorf("content: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Paragraphs{}, true, fmt.Errorf("content: %w: 429", errs.ErrRequestError)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Paragraphs{}, false, fmt.Errorf("content: %w: %d", errs.ErrAuthError, resp.StatusCode)
	case resp.StatusCode >= 500:
		return Paragraphs{}, true, fmt.Errorf("content: %w: %d", errs.ErrRequestError, resp.StatusCode)
	case resp.StatusCode >= 400:
		return Paragraphs{}, false, fmt.Errorf("content: %w: %d", errs.ErrRequestError, resp.StatusCode)
	case len(raw) == 0:
		return Paragraphs{}, true, fmt.Errorf("content: %w: empty body", errs.ErrRequestError)
	}

	var rr remoteResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Paragraphs{}, true, fmt.Errorf("content: decode response: %w", err)
	}
	return extractParagraphs(rr.Text)
}

// extractParagraphs applies the prompt contract's delimiter rule: the model
// is instructed to emit "PARAGRAPH_1: ..." then "PARAGRAPH_2: ..." on
// separate lines.
func extractParagraphs(text string) (Paragraphs, bool, error) {
	const tag1, tag2 = "PARAGRAPH_1:", "PARAGRAPH_2:"
	i1 := strings.Index(text, tag1)
	i2 := strings.Index(text, tag2)
	if i1 < 0 || i2 < 0 || i2 <= i1 {
		return Paragraphs{}, true, fmt.Errorf("content: %w: missing paragraph delimiters", errs.ErrRequestError)
	}
	p1 := strings.TrimSpace(text[i1+len(tag1) : i2])
	p2 := strings.TrimSpace(text[i2+len(tag2):])
	if p1 == "" || p2 == "" {
		return Paragraphs{}, true, fmt.Errorf("content: %w: empty paragraph", errs.ErrRequestError)
	}
	return Paragraphs{Paragraph1: p1, Paragraph2: p2}, false, nil
}

func buildPrompt(profile Profile) string {
	var b strings.Builder
	b.WriteString("Write two short personalized paragraphs for a museum visitor based on their answers:\n")
	for i, title := range profile.Titles {
		fmt.Fprintf(&b, "- F%02d: %s\n", i+1, title)
	}
	b.WriteString("Respond with exactly:\nPARAGRAPH_1: <text>\nPARAGRAPH_2: <text>\n")
	return b.String()
}
