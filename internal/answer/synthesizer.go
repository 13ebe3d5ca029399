package answer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/session"
)

// Decoding parameters tuned for deterministic, moderately long factual
// output. Applied per request so backend-level defaults cannot drift the
// answer style.
const (
	genTemperature float32 = 0.2
	genMaxTokens           = 1024
)

// Synthesizer turns a question plus retrieved context into an answer via the
// generation backend.
type Synthesizer struct {
	model     model.BaseChatModel
	mode      Mode
	maxTokens int
}

// NewSynthesizer constructs a Synthesizer. maxContextTokens bounds the total
// prompt size; non-positive values use the budget default.
func NewSynthesizer(m model.BaseChatModel, mode Mode, maxContextTokens int) (*Synthesizer, error) {
	if m == nil {
		return nil, fmt.Errorf("answer: model must not be nil")
	}
	return &Synthesizer{model: m, mode: mode, maxTokens: maxContextTokens}, nil
}

// Mode returns the synthesizer's answer policy.
func (s *Synthesizer) Mode() Mode { return s.mode }

// Synthesize generates an answer for the question given the assembled context
// block and recent history. In strict mode with no retrieved chunks it
// short-circuits to Sentinel without calling the model. Generation failures
// surface as rag.UpstreamError; there is no fallback answer.
func (s *Synthesizer) Synthesize(ctx context.Context, question, contextBlock string, chunkCount int, recent []session.Entry) (string, error) {
	if s.mode == ModeStrict && chunkCount == 0 {
		return Sentinel, nil
	}

	system, user := BuildPrompts(s.mode, contextBlock, recent, question, s.maxTokens)
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	resp, err := s.model.Generate(ctx, messages,
		model.WithTemperature(genTemperature),
		model.WithMaxTokens(genMaxTokens),
	)
	if err != nil {
		return "", &rag.UpstreamError{Collaborator: "generate", Err: err}
	}
	return resp.Content, nil
}
