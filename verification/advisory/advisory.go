// Package advisory wraps the AI collaborator that pre-screens submissions.
// Its verdicts are advisory only: any transport failure or malformed response
// must degrade to manual review, never block a submission.
package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Verdict is the advisor's assessment of a single submission.
type Verdict struct {
	RequirementsMet bool     `json:"requirements_met"`
	VehicleMatch    bool     `json:"vehicle_match"`
	Confidence      int      `json:"confidence"`
	Issues          []string `json:"issues"`
}

var ErrMalformedVerdict = errors.New("advisory service returned a malformed verdict")

type Advisor interface {
	Review(ctx context.Context, vehicleName, imageUrl string) (Verdict, error)
}

type OpenAIAdvisor struct {
	client *openai.Client
	model  string
}

func NewOpenAIAdvisor(apiKey string) *OpenAIAdvisor {
	return &OpenAIAdvisor{client: openai.NewClient(apiKey), model: openai.GPT4oMini}
}

const systemPrompt = "You review vehicle verification submissions for an automotive community. " +
	"The user provides a claimed vehicle name and a photo. Judge whether the photo shows a real, " +
	"clearly visible vehicle matching the claimed name, and whether it satisfies the submission " +
	"requirements (full exterior visible, not a stock/press photo, not a screenshot of another image). " +
	`Respond with only a JSON object: {"requirements_met": bool, "vehicle_match": bool, ` +
	`"confidence": 0-100, "issues": [string]}.`

func (a *OpenAIAdvisor) Review(ctx context.Context, vehicleName, imageUrl string) (Verdict, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: fmt.Sprintf("Claimed vehicle: %v", vehicleName),
						},
						{
							Type:     openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{URL: imageUrl},
						},
					},
				},
			},
		},
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("advisory request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Verdict{}, ErrMalformedVerdict
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

func parseVerdict(content string) (Verdict, error) {
	// Models occasionally wrap the JSON in a markdown fence despite the prompt.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var verdict Verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	if verdict.Confidence < 0 || verdict.Confidence > 100 {
		return Verdict{}, fmt.Errorf("%w: confidence %d out of range", ErrMalformedVerdict, verdict.Confidence)
	}

	return verdict, nil
}
