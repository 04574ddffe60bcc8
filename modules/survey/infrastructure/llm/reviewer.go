package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/orgpulse/orgpulse/pkg/configuration"
)

const reviewExample = `<div id="show_review">
<div><p>The themes showing the most dissatisfaction are Leadership and Management, Workload and Organizational Culture, with recurring reports of distant leadership, pressure for results and cultural misalignment.</p></div>
<div id="review_item">Opportunities:</div>
<div><ul>
<li>Negative perceptions about leadership, including lack of preparation, contradictions and absence of support.</li>
<li>Workload considered excessive and goals disconnected from the area's context.</li>
</ul></div>
<div id="review_item">Highlights:</div>
<div><ul>
<li>Pride in the company culture and identification with the product and the people.</li>
<li>Collaboration between colleagues and a cohesive team environment.</li>
</ul></div>
</div>`

var reviewBlockRE = regexp.MustCompile(`(?s)<div id="show_review">.*</div>\s*$`)

func buildReviewPrompt(areaName, payload string) string {
	return fmt.Sprintf(`You are an expert in quantitative engagement-survey analysis. Your task is to analyze structured JSON data representing the classified comments of the "%s" area of an organizational climate survey.

Your goal is to write an executive summary of this area based on the data provided.

The summary must:
- Analyze the employees' comments and list *improvement opportunities* (criticism and suggestion comments) and *highlights* (recognition comments).
- Present each list as bullet points, one opportunity or highlight per line, at most 3 bullet points per list; merge related points into one when it makes sense.
- Reuse the wording found most often in the clippings.
- Be technical and written for an executive audience.
- Use objective, non-alarming language. Avoid words like 'very', 'strongly', 'extremely', 'severe' and 'urgent'.
- Avoid repeating raw numbers; focus on interpretation and practical implications.
- Describe problems, not solutions.

The output must be HTML with the following shape:
<div id="show_review">
<div><p><concise analysis of the data></p></div>
<div id="review_item">Opportunities:</div> <div><ul><improvement opportunities></ul></div>
<div id="review_item">Highlights:</div> <div><ul><recognition points></ul></div>
</div>

Do not wrap the output in Markdown fences.

Input data, structured as JSON, representing the perceptions found in the area's survey comments:
%s

Example response:
%s
`, areaName, payload, reviewExample)
}

// OpenAIReviewer turns one area's classified-perception payload into a short
// HTML narrative.
type OpenAIReviewer struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAIReviewer(opts *configuration.OpenAIOptions) *OpenAIReviewer {
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
	return &OpenAIReviewer{
		client:      client,
		model:       opts.ReviewModel,
		temperature: opts.Temperature,
	}
}

func (r *OpenAIReviewer) Review(ctx context.Context, areaName, payload string) (string, error) {
	response, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildReviewPrompt(areaName, payload)),
		},
		Temperature: openai.Float(r.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("review request: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("review request: empty response")
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	// Models occasionally prepend commentary; keep only the HTML block.
	if m := reviewBlockRE.FindString(content); m != "" {
		content = m
	}
	return content, nil
}
