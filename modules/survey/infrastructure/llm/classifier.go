// Package llm adapts the OpenAI chat API into the narrow collaborator
// interfaces the survey services consume.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/orgpulse/orgpulse/pkg/configuration"
)

const classifierSystemPrompt = `Here are worked examples so you follow the exact output pattern.

Given the question: Is your home office workspace adequate for the work you are doing
and the comment: The laptop the company provided is not good and I end up using my own, also they could offer a better home office stipend
The output was: Resources and Tooling - Criticism - The laptop the company provided is not good and I end up using my own.| Resources and Tooling - Suggestion - they could offer a better home office stipend.

Given the question: Justify your answer
and the comment: I feel valued and I see a future here
The output was: Recognition and Appreciation - Recognition - I feel valued.| Growth and Career - Recognition - I see a future here.

Given the question: Is your home office workspace adequate for the work you are doing
and the comment: I like my manager
The output was: No theme - Neutral - I like my manager.`

func buildClassifierPrompt(items []ClassificationItem, themes []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "question: %s\ncomment: %s\n\n", strings.TrimSpace(item.Question), strings.TrimSpace(item.Comment))
	}
	themeList := "No theme"
	if len(themes) > 0 {
		themeList = strings.Join(themes, ", ")
	}
	return fmt.Sprintf(`You are a senior organizational-climate analyst, specialized in interpreting qualitative engagement survey data.
Classify the comments on the questions or statements below by theme and intent, using the following list of themes:
%s,

and the following list of intents: Recognition, Criticism, Suggestion and Neutral.

Your goal is to identify one or more themes and intents related to each comment and quote the clipping of the comment the classification refers to:

%sInstructions:
- Never classify a comment with the same theme and intent more than once, even when similar comments appear under different questions.

Answer strictly in the format:

Question1: <question>
Comment1: <comment>
Theme1: <theme> - <intent> - <clipping>.| <theme> - <intent> - <clipping>,...

Question2: <question>
Comment2: <comment>
Theme2: <theme> - <intent> - <clipping>.| <theme> - <intent> - <clipping>,...
`, themeList, b.String())
}

// ClassificationItem is one (question, comment) pair sent for classification.
type ClassificationItem struct {
	CommentID int64
	Question  string
	Comment   string
}

// Finding is one raw (theme, intent, clipping) triple as emitted by the
// model. Intent normalization happens in the consuming service.
type Finding struct {
	Theme    string
	Intent   string
	Clipping string
}

// Block is one parsed answer block, echoing the question and comment the
// model classified so the caller can match it back to a comment id.
type Block struct {
	Question string
	Comment  string
	Findings []Finding
}

// OpenAIClassifier classifies one employee's comments per request.
type OpenAIClassifier struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewOpenAIClassifier(opts *configuration.OpenAIOptions) *OpenAIClassifier {
	var client openai.Client
	if opts.BaseURL != "" {
		client = openai.NewClient(
			option.WithAPIKey(opts.Key),
			option.WithBaseURL(opts.BaseURL),
		)
	} else {
		client = openai.NewClient(
			option.WithAPIKey(opts.Key),
		)
	}
	return &OpenAIClassifier{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   int64(opts.MaxTokens),
	}
}

// Classify sends all of one employee's comments in a single prompt and parses
// the model output into blocks. Output the parser cannot recognize is simply
// absent from the result.
func (c *OpenAIClassifier) Classify(ctx context.Context, items []ClassificationItem, themes []string) ([]Block, error) {
	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierSystemPrompt),
			openai.UserMessage(buildClassifierPrompt(items, themes)),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("classification request: empty response")
	}
	return ParseBlocks(response.Choices[0].Message.Content), nil
}
