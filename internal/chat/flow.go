package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// HistoryMessage is one prior exchange message in the flow input.
type HistoryMessage struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// Input defines the request payload for the chat flow.
type Input struct {
	Query   string           `json:"query"`
	History []HistoryMessage `json:"history,omitempty"`
}

// Output defines the response payload from the chat flow.
type Output struct {
	Response    string   `json:"response"`
	ToolsCalled []string `json:"toolsCalled,omitempty"`
}

// StreamChunk carries one partial text piece of the streaming response.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat flow.
const FlowName = "skibot/chat"

// Flow is the Genkit streaming flow type for chat.
type Flow = core.Flow[Input, Output, StreamChunk]

// Flow registration is process-global in Genkit; registering twice panics.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, defining it on first call.
func NewFlow(g *genkit.Genkit, o *Orchestrator) *Flow {
	flowOnce.Do(func() {
		flow = o.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting clears the flow singleton. Test use only.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow registers the streaming chat flow. Use NewFlow instead of
// calling this directly.
func (o *Orchestrator) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			history, err := historyMessages(input.History)
			if err != nil {
				return Output{}, err
			}

			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if err := streamCb(ctx, StreamChunk{Text: part.Text}); err != nil {
							return err
						}
					}
					return nil
				}
			}

			resp, err := o.ExecuteStream(ctx, history, input.Query, callback)
			if err != nil {
				return Output{}, err
			}
			return Output{Response: resp.FinalText, ToolsCalled: resp.ToolsCalled}, nil
		},
	)
}

// historyMessages converts flow history into model messages.
func historyMessages(history []HistoryMessage) ([]*ai.Message, error) {
	if len(history) == 0 {
		return nil, nil
	}
	msgs := make([]*ai.Message, len(history))
	for i, h := range history {
		switch h.Role {
		case "user":
			msgs[i] = ai.NewUserMessage(ai.NewTextPart(h.Text))
		case "model":
			msgs[i] = ai.NewModelMessage(ai.NewTextPart(h.Text))
		default:
			return nil, fmt.Errorf("invalid history role %q at index %d", h.Role, i)
		}
	}
	return msgs, nil
}
