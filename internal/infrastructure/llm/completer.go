package llm

import "context"

type Image struct {
	MediaType string
	Data      []byte
}

// Request is one prompt/response exchange with a generation model.
type Request struct {
	Operation   string
	System      string
	Prompt      string
	Image       *Image
	JSON        bool
	MaxTokens   int
	Temperature float64
}

// Completer is implemented by each model provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
