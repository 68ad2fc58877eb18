package chat

import "time"

// Session is the local record of one durable conversation. The remote agent
// runtime owns the conversation state; we keep the mapping from the
// runtime-issued session id to the owning user plus display metadata.
type Session struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:uniq_user_agent_session,unique,priority:1" json:"user_id"`

	// AgentSessionID is the opaque id issued by the agent runtime. All
	// session-targeted lookups filter by (user_id, agent_session_id) so one
	// user can never reach another user's session.
	AgentSessionID string `gorm:"type:varchar(64);not null;index:uniq_user_agent_session,unique,priority:2" json:"agent_session_id"`

	Title    *string `gorm:"type:varchar(255)" json:"title,omitempty"`
	Metadata *string `gorm:"column:session_metadata;type:text" json:"metadata,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActivity time.Time `gorm:"index;not null" json:"last_activity"`
}

func (Session) TableName() string { return "sessions" }
