package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/orgpulse/orgpulse/pkg/configuration"
)

const planExample = `<div id="show_review">
<div><p>The proposed actions target the themes with the most dissatisfaction: Leadership and Management, Workload and Organizational Culture, with recurring reports of distant leadership and pressure for results.</p></div>
<div id="review_item">Action plan:</div>
<div><ul>
<li>Schedule recurring one-on-ones between managers and their direct reports.</li>
<li>Run a workload diagnosis before the next goal-setting cycle.</li>
</ul></div>
</div>`

func buildAreaPlanPrompt(areaName, payload, review string) string {
	return fmt.Sprintf(`You are an expert in organizational culture, engagement and workplace climate.
Your task is to draft an action plan for the "%s" area based on its engagement-survey data.

Instructions:
- Read the clippings, indicators and the area summary carefully. The suggested actions must respond directly to the improvement opportunities and the situations reported.
- Present the plan as bullet points, one action per line, at most 5 actions; merge related actions into one when it makes sense.
- Actions must be concrete and assignable, not aspirations.
- Use objective, non-alarming language.

The output must be HTML with the following shape:
<div id="show_review">
<div><p><concise rationale for the plan></p></div>
<div id="review_item">Action plan:</div> <div><ul><actions></ul></div>
</div>

Do not wrap the output in Markdown fences.

Survey data for the area, structured as JSON:
%s

Area summary:
%s

Example response:
%s
`, areaName, payload, review, planExample)
}

func buildGeneralPlanPrompt(payload, areaReviews string) string {
	return fmt.Sprintf(`You are an expert in organizational culture, engagement and workplace climate.
Your task is to draft a company-wide action plan based on the consolidated engagement-survey data and the per-area summaries below.

Instructions:
- The plan must address the improvement opportunities that recur across areas, not individual incidents.
- Present the plan as bullet points, one action per line, at most 5 actions; merge related actions into one when it makes sense.
- Actions must be concrete and assignable, not aspirations.
- Use objective, non-alarming language.

The output must be HTML with the following shape:
<div id="show_review">
<div><p><concise rationale for the plan></p></div>
<div id="review_item">Action plan:</div> <div><ul><actions></ul></div>
</div>

Do not wrap the output in Markdown fences.

Consolidated survey data, structured as JSON:
%s

Per-area summaries:
%s

Example response:
%s
`, payload, areaReviews, planExample)
}

// OpenAIPlanner turns an area's classified-perception payload and its
// narrative review into an HTML action plan.
type OpenAIPlanner struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAIPlanner(opts *configuration.OpenAIOptions) *OpenAIPlanner {
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
	return &OpenAIPlanner{
		client:      client,
		model:       opts.ReviewModel,
		temperature: opts.Temperature,
	}
}

func (p *OpenAIPlanner) PlanArea(ctx context.Context, areaName, payload, review string) (string, error) {
	return p.complete(ctx, buildAreaPlanPrompt(areaName, payload, review))
}

func (p *OpenAIPlanner) PlanGeneral(ctx context.Context, payload, areaReviews string) (string, error) {
	return p.complete(ctx, buildGeneralPlanPrompt(payload, areaReviews))
}

func (p *OpenAIPlanner) complete(ctx context.Context, prompt string) (string, error) {
	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("plan request: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("plan request: empty response")
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if m := reviewBlockRE.FindString(content); m != "" {
		content = m
	}
	return content, nil
}
