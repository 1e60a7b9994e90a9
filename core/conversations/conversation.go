package conversations

import (
	"context"
	"strings"
	"time"
)

// Conversation is one chat session with the remote agent. A conversation is
// owned by a single turn loop and is not safe for concurrent use.
type Conversation interface {
	ID() string
	// Converse sends text as the user and returns the agent's reply.
	Converse(ctx context.Context, text string) (string, error)
}

// Starter opens new conversations.
type Starter interface {
	StartConversation(ctx context.Context) (Conversation, error)
}

const ActivityTypeMessage = "message"

// Activity is a single entry in a conversation, sent by either side.
type Activity struct {
	ID        string
	Type      string
	FromID    string
	Text      string
	Timestamp time.Time
}

func (a Activity) IsMessage() bool { return a.Type == ActivityTypeMessage }

// JoinMessages concatenates the text of every message activity, in order.
// Other activity types are skipped.
func JoinMessages(activities []Activity) string {
	var reply strings.Builder
	for _, activity := range activities {
		if activity.IsMessage() {
			reply.WriteString(activity.Text)
		}
	}
	return reply.String()
}
