// Package generation produces grounded chat answers with GPT-4o. Answers are
// always generated against retrieved document context; the generator never
// swallows upstream failures, the caller decides how to surface them.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/docuchat/docuchat/internal/domain"
)

// Mode selects the agent behaviour for a chat turn.
type Mode string

const (
	// ModeDocumentSearch answers questions strictly from retrieved context.
	ModeDocumentSearch Mode = "document-search"
	// ModeDocumentCreate drafts new document text in the style of the
	// retrieved context.
	ModeDocumentCreate Mode = "document-create"
)

// Valid reports whether the mode is a known agent mode.
func (m Mode) Valid() bool {
	return m == ModeDocumentSearch || m == ModeDocumentCreate
}

// DefaultMaxContextTokens bounds the retrieved context passed to the model,
// estimated at 4 characters per token.
const DefaultMaxContextTokens = 16000

const searchSystemPrompt = `You are a documentation assistant. Answer the user's question using only the provided document context. If the context does not contain the answer, say so plainly instead of guessing. Cite the document title when it supports your answer.`

const createSystemPrompt = `You are a documentation author. Draft the document the user asks for, matching the tone and conventions of the provided document context. Produce only the document text, no commentary.`

// chatAPI is the transport seam the generator calls through.
type chatAPI interface {
	createChatCompletion(ctx context.Context, system, user string) (string, error)
}

// Generator turns a question plus retrieved context into an answer.
type Generator struct {
	api       chatAPI
	maxTokens int
}

// NewGenerator creates a generator backed by the given OpenAI client.
// Optional maxTokens sets the context truncation limit.
func NewGenerator(client *openai.Client, maxTokens ...int) *Generator {
	max := DefaultMaxContextTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	return &Generator{api: &openaiChat{client: client}, maxTokens: max}
}

func newGenerator(api chatAPI, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return &Generator{api: api, maxTokens: maxTokens}
}

// Generate answers the question against the retrieved document context. An
// empty context is allowed; the model is told nothing relevant was found.
func (g *Generator) Generate(ctx context.Context, question, docContext string, mode Mode) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.Validationf("question is empty")
	}
	if !mode.Valid() {
		return "", domain.Validationf("unknown agent mode %q", mode)
	}

	system := searchSystemPrompt
	if mode == ModeDocumentCreate {
		system = createSystemPrompt
	}

	answer, err := g.api.createChatCompletion(ctx, system, g.buildPrompt(question, docContext))
	if err != nil {
		return "", err
	}
	return answer, nil
}

// buildPrompt assembles the user message, truncating oversized context.
func (g *Generator) buildPrompt(question, docContext string) string {
	docContext = g.truncateContext(docContext)
	if strings.TrimSpace(docContext) == "" {
		docContext = "(no relevant documents found)"
	}
	return fmt.Sprintf("Document context:\n%s\n\nQuestion: %s", docContext, question)
}

// truncateContext caps context at maxTokens, estimated at 4 chars per token.
func (g *Generator) truncateContext(docContext string) string {
	maxChars := g.maxTokens * 4
	if len(docContext) <= maxChars {
		return docContext
	}
	return docContext[:maxChars]
}

// openaiChat is the real transport behind chatAPI.
type openaiChat struct {
	client *openai.Client
}

func (c *openaiChat) createChatCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: openai.ChatModelGPT4o,
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewError(domain.KindTransient, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps API failures into the retry taxonomy so callers can tell
// an outage from a rejected request.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return domain.WrapError(domain.KindTransient, "chat service unavailable", err)
		}
		return domain.WrapError(domain.KindPermanent, "chat request rejected", err)
	}
	return domain.WrapError(domain.KindTransient, "chat completion failed", err)
}
