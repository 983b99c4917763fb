package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/logging"
)

const systemPrompt = "You are a redteam coaching assistant for an isolated cyber range. " +
	"Return strict JSON only."

const maxActions = 4

var errEmptyResponse = errors.New("model returned no choices")

// promptPayload is the structured user message sent to the model.
type promptPayload struct {
	Objective        string         `json:"objective"`
	Phase            domain.Phase   `json:"phase"`
	EpisodeSummary   string         `json:"episode_summary"`
	MissingArtifacts []string       `json:"missing_artifacts"`
	TargetScope      []string       `json:"target_scope"`
	UserMessage      string         `json:"user_message,omitempty"`
	MemoryMode       string         `json:"memory_mode,omitempty"`
	Conversation     []string       `json:"conversation_context,omitempty"`
	RetrievedContext []promptChunk  `json:"retrieved_context"`
	Constraints      []string       `json:"constraints"`
	OutputFormat     map[string]any `json:"output_format"`
	MaxActions       int            `json:"max_actions"`
}

type promptChunk struct {
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// modelResponse is the JSON shape the model is instructed to produce.
type modelResponse struct {
	Reasoning string `json:"reasoning"`
	Actions   []struct {
		Title        string  `json:"title"`
		Rationale    string  `json:"rationale"`
		Command      *string `json:"command"`
		DoneCriteria string  `json:"done_criteria"`
	} `json:"actions"`
}

// OpenAIClient calls an OpenAI-compatible chat endpoint in JSON mode. Any
// model failure, parse failure, or empty action list degrades to the
// heuristic playbook so suggestions always arrive.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	fallback *Heuristic
	log      *logging.Logger
}

// NewOpenAIClient builds a model-backed generator. baseURL may be empty
// for the default endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, log *logging.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		fallback: NewHeuristic(),
		log:      log.Sub("advisor"),
	}
}

// GenerateActions asks the model for next actions and normalizes the reply.
func (o *OpenAIClient) GenerateActions(ctx context.Context, c Context) (string, []domain.ActionItem, error) {
	reasoning, actions, err := o.modelActions(ctx, c)
	if err != nil {
		o.log.Warn().Err(err).Msg("model generation failed, using playbook")
		return o.fallback.GenerateActions(ctx, c)
	}
	if len(actions) == 0 {
		o.log.Debug().Msg("model returned no actions, using playbook")
		return o.fallback.GenerateActions(ctx, c)
	}
	return reasoning, actions, nil
}

func (o *OpenAIClient) modelActions(ctx context.Context, c Context) (string, []domain.ActionItem, error) {
	chunks := make([]promptChunk, 0, len(c.Retrieved))
	for _, item := range c.Retrieved {
		content := item.Content
		if len(content) > 500 {
			content = content[:500]
		}
		chunks = append(chunks, promptChunk{Source: item.Source, Score: item.Score, Content: content})
	}

	payload := promptPayload{
		Objective:        c.Objective,
		Phase:            c.Phase,
		EpisodeSummary:   c.EpisodeSummary,
		MissingArtifacts: c.MissingArtifacts,
		TargetScope:      c.TargetScope,
		UserMessage:      c.UserMessage,
		MemoryMode:       c.MemoryMode,
		Conversation:     c.Conversation,
		RetrievedContext: chunks,
		Constraints: []string{
			"Lab-only coaching. Never provide real-world destructive instructions.",
			"Use only in-scope targets and allowed lab tools.",
			"Provide checklist-style next actions with completion criteria.",
			"No credential theft or persistence guidance.",
		},
		OutputFormat: map[string]any{
			"reasoning": "short string",
			"actions": []map[string]string{{
				"title":         "string",
				"rationale":     "string",
				"command":       "string or null",
				"done_criteria": "string",
			}},
		},
		MaxActions: maxActions,
	}
	prompt, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(prompt)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", nil, errEmptyResponse
	}

	var parsed modelResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return "", nil, err
	}

	reasoning := strings.TrimSpace(parsed.Reasoning)
	if reasoning == "" {
		reasoning = heuristicReasoning(c)
	}

	actions := make([]domain.ActionItem, 0, maxActions)
	for _, raw := range parsed.Actions {
		if len(actions) == maxActions {
			break
		}
		item := domain.ActionItem{
			Title:        strings.TrimSpace(raw.Title),
			Rationale:    strings.TrimSpace(raw.Rationale),
			DoneCriteria: strings.TrimSpace(raw.DoneCriteria),
		}
		if item.Title == "" {
			item.Title = "Next step"
		}
		if item.Rationale == "" {
			item.Rationale = "Follow lab methodology."
		}
		if item.DoneCriteria == "" {
			item.DoneCriteria = domain.DoneCriteria[c.Phase]
		}
		if raw.Command != nil {
			if cmd := strings.TrimSpace(*raw.Command); cmd != "" {
				item.Command = domain.Cmd(cmd)
			}
		}
		actions = append(actions, item)
	}
	return reasoning, actions, nil
}

// extractJSON pulls a JSON object out of a possibly fenced model reply.
func extractJSON(content string) string {
	stripped := strings.TrimSpace(content)
	if strings.HasPrefix(stripped, "{") && strings.HasSuffix(stripped, "}") {
		return stripped
	}
	if !strings.Contains(stripped, "```") {
		return stripped
	}
	for _, segment := range strings.Split(stripped, "```") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			return segment
		}
		if strings.HasPrefix(segment, "json") {
			candidate := strings.TrimSpace(strings.TrimPrefix(segment, "json"))
			if strings.HasPrefix(candidate, "{") && strings.HasSuffix(candidate, "}") {
				return candidate
			}
		}
	}
	return stripped
}
