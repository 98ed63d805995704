package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm"
)

// Client talks to a local Ollama server through /api/generate.
type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
}

func New(baseURL, genModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		reqBody["system"] = req.System
	}
	if req.JSON {
		reqBody["format"] = "json"
	}
	if req.Image != nil {
		reqBody["images"] = []string{base64.StdEncoding.EncodeToString(req.Image.Data)}
	}
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		reqBody["options"] = options
	}

	operation := req.Operation
	if operation == "" {
		operation = "generate"
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
