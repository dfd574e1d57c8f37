// Package llm talks to the Google generative-language API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gemini-chat-relay/internal/models"
)

// streamBuffer bounds how many fragments the producer may run ahead of
// the HTTP writer before blocking.
const streamBuffer = 8

// Client is the conversational model contract. Stream returns a
// fragment channel that is closed when the reply is complete, and an
// error channel that carries at most one terminal error.
type Client interface {
	Send(ctx context.Context, history []models.Turn, message string) (string, error)
	Stream(ctx context.Context, history []models.Turn, message string) (<-chan string, <-chan error)
}

type GeminiClient struct {
	baseURL           string
	apiKey            string
	model             string
	systemInstruction string

	// httpClient carries a request timeout for buffered calls. The
	// stream client must not: a client timeout covers the whole body
	// read and would cut long streams short. Cancellation of streams
	// comes from the request context instead.
	httpClient   *http.Client
	streamClient *http.Client
}

func NewGeminiClient(baseURL, apiKey, model, systemInstruction string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		baseURL:           strings.TrimRight(baseURL, "/"),
		apiKey:            apiKey,
		model:             model,
		systemInstruction: systemInstruction,
		httpClient:        &http.Client{Timeout: timeout},
		streamClient:      &http.Client{},
	}
}

// Wire types for the generativelanguage v1beta API.

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// text concatenates all candidate parts of one response payload.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (g *GeminiClient) buildRequest(history []models.Turn, message string) generateRequest {
	contents := make([]content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, content{
			Role:  string(turn.Role),
			Parts: []part{{Text: turn.Text}},
		})
	}
	contents = append(contents, content{
		Role:  string(models.RoleUser),
		Parts: []part{{Text: message}},
	})

	req := generateRequest{Contents: contents}
	if g.systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: g.systemInstruction}}}
	}
	return req
}

func (g *GeminiClient) post(ctx context.Context, client *http.Client, endpoint string, body generateRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s", g.baseURL, g.model, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	return client.Do(req)
}

// apiError reads a non-200 body and extracts the API error message.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var payload generateResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		return fmt.Errorf("model API error (%d): %s", resp.StatusCode, payload.Error.Message)
	}
	return fmt.Errorf("model API returned status %d", resp.StatusCode)
}

// Send submits the message plus history and waits for the complete
// reply.
func (g *GeminiClient) Send(ctx context.Context, history []models.Turn, message string) (string, error) {
	resp, err := g.post(ctx, g.httpClient, "generateContent", g.buildRequest(history, message))
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	return result.text(), nil
}

// Stream submits the message in streaming mode. Fragments are sent to
// the returned channel in arrival order; the producer blocks once
// streamBuffer fragments are unconsumed and abandons the upstream
// response when ctx is cancelled.
func (g *GeminiClient) Stream(ctx context.Context, history []models.Turn, message string) (<-chan string, <-chan error) {
	chunks := make(chan string, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := g.post(ctx, g.streamClient, "streamGenerateContent?alt=sse", g.buildRequest(history, message))
		if err != nil {
			errs <- fmt.Errorf("calling model: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- apiError(resp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}

			var chunk generateResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				errs <- fmt.Errorf("decoding stream chunk: %w", err)
				return
			}
			text := chunk.text()
			if text == "" {
				continue
			}

			select {
			case chunks <- text:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("reading model stream: %w", err)
		}
	}()

	return chunks, errs
}
