package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/znz-systems/mailsift/internal/models"
)

// MaxPromptEmails bounds how many records are sent in a single request.
const MaxPromptEmails = 10

const systemPrompt = `You triage a user's inbox. For each email decide whether the user most likely wants to keep it, delete it, or is neutral.
Reply with a JSON array only, one object per email, in the form:
[{"emailId": "<id>", "score": <0-100, higher means more worth keeping>, "reason": "<short reason>", "category": "keep" | "neutral" | "delete"}]`

// OpenAIClassifier calls an OpenAI-compatible chat completions endpoint.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClassifier{client: &client, model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error) {
	prompt, err := BuildPrompt(batch)
	if err != nil {
		return nil, err
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       c.model,
		Temperature: param.Opt[float64]{Value: 0.2},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices", ErrTierUnavailable)
	}
	return ParseVerdicts(completion.Choices[0].Message.Content)
}

type promptEmail struct {
	EmailID        string `json:"emailId"`
	From           string `json:"from"`
	Subject        string `json:"subject"`
	HasUnsubscribe bool   `json:"hasUnsubscribe"`
}

// BuildPrompt serialises at most MaxPromptEmails records for the classifier.
func BuildPrompt(batch []models.EmailRecord) (string, error) {
	if len(batch) > MaxPromptEmails {
		batch = batch[:MaxPromptEmails]
	}
	items := make([]promptEmail, 0, len(batch))
	for _, r := range batch {
		items = append(items, promptEmail{
			EmailID:        r.ID,
			From:           r.From,
			Subject:        r.Subject,
			HasUnsubscribe: r.HasUnsubscribe,
		})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	return "Emails:\n" + string(b), nil
}

// verdictArrayStart finds the opening of an array of objects, so bracketed
// prose before the payload is skipped.
var verdictArrayStart = regexp.MustCompile(`\[\s*\{`)

// rawVerdict accepts fractional numbers from the model.
type rawVerdict struct {
	EmailID    string          `json:"emailId"`
	Score      float64         `json:"score"`
	Reason     string          `json:"reason"`
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
}

// ParseVerdicts extracts the JSON verdict array from a model reply, tolerating
// markdown fences and surrounding prose.
func ParseVerdicts(content string) ([]Verdict, error) {
	loc := verdictArrayStart.FindStringIndex(content)
	end := strings.LastIndexByte(content, ']')
	if loc == nil || end <= loc[0] {
		return nil, fmt.Errorf("%w: reply has no JSON array", ErrTierUnavailable)
	}

	var raw []rawVerdict
	if err := json.Unmarshal([]byte(content[loc[0]:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode verdicts: %v", ErrTierUnavailable, err)
	}
	verdicts := make([]Verdict, 0, len(raw))
	for _, r := range raw {
		verdicts = append(verdicts, Verdict{
			EmailID:    r.EmailID,
			Score:      int(math.Round(r.Score)),
			Reason:     r.Reason,
			Category:   r.Category,
			Confidence: int(math.Round(r.Confidence)),
		})
	}
	return verdicts, nil
}
