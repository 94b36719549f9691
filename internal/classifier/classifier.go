package classifier

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"triagebot/internal/models"
	"triagebot/internal/providers"
)

// Classifier assigns a triage category to a message. Implementations must
// absorb backend failures: Classify always returns a usable result.
type Classifier interface {
	Classify(ctx context.Context, msg models.Message, prov providers.Provider) models.ClassificationResult
}

const systemPrompt = `You are a message classifier for a community support server.

Your job is to analyze messages and determine if they require attention from support staff.

Messages that require attention include:
- support_request: users asking for help with a product, service, or technical issue
- complaint: users expressing frustration or dissatisfaction
- bug_report: users reporting problems, errors, or unexpected behavior

Messages that do NOT require attention are general_chat: casual conversation,
greetings, jokes, off-topic discussion, or simple acknowledgments.

You may call the provided tools to look up the author's history or recent
channel messages before deciding. Be conservative - only flag messages that
genuinely need human attention.

Respond with a single JSON object and nothing else:
{"category": "support_request|complaint|bug_report|general_chat", "confidence": 0.0-1.0, "rationale": "brief explanation"}`

const (
	toolGetUserContext    = "get_user_context"
	toolGetChannelContext = "get_channel_context"
)

var classifierTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolGetUserContext,
			Description: "Look up facts about the message author: account age, whether they joined recently, and how active they have been in the channel.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"user_id": {
						Type:        jsonschema.String,
						Description: "ID of the user to look up",
					},
				},
				Required: []string{"user_id"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolGetChannelContext,
			Description: "Fetch the most recent messages in a channel, oldest first, to understand the conversation the message is part of.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"channel_id": {
						Type:        jsonschema.String,
						Description: "ID of the channel to read",
					},
					"limit": {
						Type:        jsonschema.Integer,
						Description: "Maximum number of messages to return",
					},
				},
				Required: []string{"channel_id"},
			},
		},
	},
}
