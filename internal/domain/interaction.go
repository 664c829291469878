package domain

import (
	"fmt"
	"strings"
	"time"
)

// Interaction is one question/answer exchange in a user's conversation log.
// Timestamp is serialized as RFC 3339 so the on-disk log stays human-readable
// and round-trips exactly.
type Interaction struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext is the formatted view of a user's recent history handed
// to prompt assembly. HistoryText is empty for a user with no prior record.
type ConversationContext struct {
	UserID      string
	HistoryText string
	Exchanges   []Interaction
}

// FormatHistory renders exchanges as alternating "User:"/"Assistant:" lines,
// oldest first.
func FormatHistory(exchanges []Interaction) string {
	if len(exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ex := range exchanges {
		fmt.Fprintf(&b, "User: %s\n", ex.Question)
		fmt.Fprintf(&b, "Assistant: %s\n\n", ex.Answer)
	}
	return b.String()
}
