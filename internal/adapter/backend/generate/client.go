// Package generate talks to an inference server exposing a single POST /generate
// endpoint that takes the prompt parts and returns {"response": ...} or
// {"error": ..., "raw": ...}.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"npcgateway/internal/app/ports"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const maxErrorBody = 512

type Config struct {
	URL         string
	DialTimeout time.Duration
}

type Client struct {
	url string
	hc  *client.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("generate backend: url is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	hc, err := client.NewClient(client.WithDialTimeout(cfg.DialTimeout))
	if err != nil {
		return nil, fmt.Errorf("generate backend: %w", err)
	}
	return &Client{url: cfg.URL, hc: hc}, nil
}

type generateRequest struct {
	SystemPrompt string `json:"system_prompt"`
	SceneReport  string `json:"scene_report"`
	Prompt       string `json:"prompt"`
	ports.Sampling
}

type generateResponse struct {
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
	Raw      string          `json:"raw"`
}

func (c *Client) Generate(ctx context.Context, in ports.BackendRequest) (ports.BackendReply, error) {
	body, err := json.Marshal(generateRequest{
		SystemPrompt: in.SystemPrompt,
		SceneReport:  in.SceneReport,
		Prompt:       in.Prompt,
		Sampling:     in.Sampling,
	})
	if err != nil {
		return ports.BackendReply{}, fmt.Errorf("%w: encode request: %v", ports.ErrBackend, err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(consts.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.hc.DoDeadline(ctx, req, resp, deadline)
	} else {
		err = c.hc.Do(ctx, req, resp)
	}
	if err != nil {
		return ports.BackendReply{}, fmt.Errorf("%w: %v", ports.ErrBackend, err)
	}

	status := resp.StatusCode()
	payload := bytes.TrimSpace(resp.Body())
	if status < 200 || status >= 300 {
		return ports.BackendReply{}, fmt.Errorf("%w: status %d: %s", ports.ErrBackend, status, truncate(payload))
	}
	return decodeReply(payload)
}

func decodeReply(payload []byte) (ports.BackendReply, error) {
	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return ports.BackendReply{}, fmt.Errorf("%w: malformed body: %v", ports.ErrBackend, err)
	}

	if r := bytes.TrimSpace(out.Response); len(r) > 0 && !bytes.Equal(r, []byte("null")) {
		if r[0] == '"' {
			var text string
			if err := json.Unmarshal(r, &text); err != nil {
				return ports.BackendReply{}, fmt.Errorf("%w: malformed response field: %v", ports.ErrBackend, err)
			}
			return ports.BackendReply{Text: text}, nil
		}
		return ports.BackendReply{Text: string(r)}, nil
	}
	// the server gave up on its own parse; the raw text may still be recoverable here
	if out.Raw != "" {
		return ports.BackendReply{Text: out.Raw}, nil
	}
	if out.Error != "" {
		return ports.BackendReply{}, fmt.Errorf("%w: %s", ports.ErrBackend, out.Error)
	}
	return ports.BackendReply{}, fmt.Errorf("%w: empty response", ports.ErrBackend)
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
