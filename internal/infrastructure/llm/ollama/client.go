package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/resilience"
)

type Options struct {
	Temperature float64
	TopP        float64
	NumCtx      int
}

type Client struct {
	baseURL    string
	model      string
	opts       Options
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, opts Options) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		opts:       opts,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   newOllamaExecutor(),
	}
}

// Generator produces the final user-facing answer grounded in retrieved
// chunks.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, chunks))
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.opts.Temperature,
			"top_p":       c.opts.TopP,
			"num_ctx":     c.opts.NumCtx,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	var refs strings.Builder
	for _, chunk := range chunks {
		refs.WriteString("---\nContent: ")
		refs.WriteString(chunk.Text)
		if chunk.Source != "" {
			refs.WriteString("\nSource: ")
			refs.WriteString(chunk.Source)
		}
		refs.WriteString("\n")
	}

	return fmt.Sprintf(`You are an articulate AI assistant that provides:
1. Contextually precise answers using ONLY the provided references
2. Well-structured responses
If context is insufficient, respond: "The provided references don't contain relevant information."

References:
%s
Question: %s`, refs.String(), question)
}
