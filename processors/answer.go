package processors

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"videoReason/config"
	"videoReason/core"
	"videoReason/utils"
)

// AnswerSynthesizer folds the per-clip analyses into one answer to the
// user's question. With a chat API configured it asks the model to
// cite time points; otherwise it degrades to simple concatenation.
type AnswerSynthesizer struct {
	cli   *openai.Client
	model string
}

func NewAnswerSynthesizer(cfg *config.Settings) *AnswerSynthesizer {
	if !cfg.HasChatAPI() {
		return &AnswerSynthesizer{}
	}
	clientConfig := openai.DefaultConfig(cfg.ChatAPIKey)
	if cfg.ChatBaseURL != "" {
		clientConfig.BaseURL = cfg.ChatBaseURL
	}
	return &AnswerSynthesizer{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.ChatModel,
	}
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, analyses []core.AnalysisResult) string {
	if len(analyses) == 0 {
		return "No relevant clips found."
	}
	if s.cli == nil {
		return s.synthesizeSimple(analyses)
	}

	contextParts := make([]string, 0, len(analyses))
	for i, a := range analyses {
		contextParts = append(contextParts, fmt.Sprintf(
			"Clip %d [%s - %s]: %s",
			i+1, utils.FormatTime(a.ClipStart), utils.FormatTime(a.ClipEnd), a.Summary,
		))
	}

	prompt := fmt.Sprintf(`You are a video content analysis assistant. Based on the analyzed clips below, answer the user's question.

Analyzed clips:
%s

User question: %s

Answer precisely, and cite the relevant time points. If the clips are insufficient to fully answer, say which parts need more information.`,
		strings.Join(contextParts, "\n\n"), question)

	resp, err := s.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("Warning: chat completion failed (%v), falling back to simple synthesis", err)
		return s.synthesizeSimple(analyses)
	}
	if len(resp.Choices) == 0 {
		return s.synthesizeSimple(analyses)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func (s *AnswerSynthesizer) synthesizeSimple(analyses []core.AnalysisResult) string {
	times := make([]string, 0, len(analyses))
	snips := make([]string, 0, len(analyses))
	for _, a := range analyses {
		times = append(times, utils.FormatTime(a.ClipStart))
		snips = append(snips, utils.TruncateWords(a.Summary, 40))
	}
	return "Relevant clips start at: " + strings.Join(times, ", ") + ". Combined notes: " + strings.Join(snips, " ")
}
