package directline

import "time"

type channelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type startConversationResponse struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token,omitempty"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
}

type messageActivity struct {
	Type string         `json:"type"`
	From channelAccount `json:"from"`
	Text string         `json:"text"`
}

type resourceResponse struct {
	ID string `json:"id"`
}

type activity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	From      channelAccount `json:"from"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// FromID flattens the sender for conversion into the domain activity.
func (a activity) FromID() string { return a.From.ID }

type activitySet struct {
	Activities []activity `json:"activities"`
	Watermark  string     `json:"watermark,omitempty"`
}
