package domain

import "fmt"

type ConversationID int64

type Conversation struct {
	ID        ConversationID `json:"id"`
	GroupName string         `json:"groupName,omitempty"`
}

// DisplayNameFor derives the name a given viewer sees for a conversation.
// An explicit group name always wins. A 1:1 conversation shows the peer's
// name; anything else falls back to a generated default.
func DisplayNameFor(c *Conversation, viewer UserID, participants []User) string {
	if c.GroupName != "" {
		return c.GroupName
	}
	if len(participants) == 2 {
		for _, p := range participants {
			if p.ID != viewer {
				return p.Name
			}
		}
	}
	return fmt.Sprintf("Group %d", c.ID)
}
