// Package completion implements the chat.Completer interface against the
// external agent service, which streams newline-delimited JSON frames.
package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/domain"
)

// maxFrameSize bounds one NDJSON line from the upstream service.
const maxFrameSize = 1 << 20

// Client streams completions from the agent service. One request per turn,
// POSTed to the agent's routable path.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// No client timeout: per-call deadlines come from ctx, and LLM+tool
		// turns legitimately run for minutes.
		http: &http.Client{},
	}
}

type requestBody struct {
	Message      string           `json:"message"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	History      []historyMessage `json:"history,omitempty"`
	Tools        []string         `json:"tools,omitempty"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// frame mirrors the upstream wire format: {delta|replace|tool_call|tool_result|final}.
type frame struct {
	Type   string      `json:"type"`
	Delta  string      `json:"delta,omitempty"`
	Text   string      `json:"text,omitempty"`
	Name   string      `json:"name,omitempty"`
	Server string      `json:"server,omitempty"`
	Status string      `json:"status,omitempty"`
	Output string      `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
	Final  *finalFrame `json:"final,omitempty"`
}

type finalFrame struct {
	Text             string                   `json:"text"`
	SuggestedActions []domain.SuggestedAction `json:"suggested_actions,omitempty"`
	ToolCalls        []domain.ToolCallInfo    `json:"tool_calls,omitempty"`
	Usage            chat.Usage               `json:"usage"`
	ModelID          string                   `json:"model_id,omitempty"`
}

// Complete opens the upstream stream and relays decoded events. The returned
// channel closes when the stream ends; cancelling ctx aborts the request.
func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (<-chan chat.CompletionEvent, error) {
	body := requestBody{
		Message:      req.Text,
		SystemPrompt: req.SystemPrompt,
		Tools:        req.Tools,
	}
	for _, m := range req.History {
		body.History = append(body.History, historyMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("completion.Client.Complete: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Agent.Path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("completion.Client.Complete: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion.Client.Complete: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion.Client.Complete: upstream status %d: %s", resp.StatusCode, snippet)
	}

	out := make(chan chat.CompletionEvent, 16)
	go c.consume(ctx, resp.Body, out)

	return out, nil
}

func (c *Client) consume(ctx context.Context, body io.ReadCloser, out chan<- chat.CompletionEvent) {
	defer close(out)
	defer body.Close()

	emit := func(ev chat.CompletionEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			// The transport may fragment or corrupt frames; skip, never abort
			// the whole stream for one bad line.
			log.Debug().Err(err).Msg("completion: skipping malformed frame")
			continue
		}

		ev, ok := decodeFrame(f)
		if !ok {
			log.Debug().Str("frame_type", f.Type).Msg("completion: skipping unknown frame type")
			continue
		}
		if !emit(ev) {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		emit(chat.CompletionEvent{Err: fmt.Errorf("completion: stream read: %w", err)})
	}
}

func decodeFrame(f frame) (chat.CompletionEvent, bool) {
	switch f.Type {
	case "delta":
		return chat.CompletionEvent{Kind: chat.CompletionDelta, Delta: f.Delta}, true
	case "replace":
		return chat.CompletionEvent{Kind: chat.CompletionReplace, Text: f.Text}, true
	case "tool_call":
		return chat.CompletionEvent{
			Kind:       chat.CompletionToolCall,
			ToolName:   f.Name,
			ToolServer: f.Server,
		}, true
	case "tool_result":
		status := domain.ToolCallStatus(f.Status)
		if status != domain.ToolCallError {
			status = domain.ToolCallOK
		}
		return chat.CompletionEvent{
			Kind:       chat.CompletionToolResult,
			ToolName:   f.Name,
			ToolStatus: status,
			ToolOutput: f.Output,
			ToolError:  f.Error,
		}, true
	case "final":
		if f.Final == nil {
			return chat.CompletionEvent{}, false
		}
		return chat.CompletionEvent{
			Kind: chat.CompletionFinal,
			Final: &chat.CompletionResult{
				Text:             f.Final.Text,
				SuggestedActions: f.Final.SuggestedActions,
				ToolCalls:        f.Final.ToolCalls,
				Usage:            f.Final.Usage,
				ModelID:          f.Final.ModelID,
			},
		}, true
	case "error":
		return chat.CompletionEvent{Err: fmt.Errorf("completion: upstream error: %s", f.Error)}, true
	default:
		return chat.CompletionEvent{}, false
	}
}

// Ping checks upstream availability. Used at startup only; failures are
// logged, not fatal, since the service may come up later.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("completion.Client.Ping: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("completion.Client.Ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("completion.Client.Ping: status %d", resp.StatusCode)
	}
	return nil
}
