package catalog

import "time"

// Item is a user's saved reference to a structured agent result. Only the
// reference is stored; item data is fetched live from the catalog store on
// read, never snapshotted.
type Item struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:uniq_user_catalog_item,unique,priority:1" json:"user_id"`

	// CatalogItemID is the property_id or job_id out of the agent's
	// structured_data response.
	CatalogItemID string `gorm:"type:varchar(50);not null;index:uniq_user_catalog_item,unique,priority:2" json:"catalog_item_id"`
	CatalogName   string `gorm:"type:varchar(50);not null;index:uniq_user_catalog_item,unique,priority:3" json:"catalog_name"`

	AgentName       *string `gorm:"type:varchar(255)" json:"agent_name,omitempty"`
	SourceMessageID *string `gorm:"type:text" json:"source_message_id,omitempty"`
	SessionID       *uint64 `json:"session_id,omitempty"`

	SavedAt   time.Time `gorm:"column:saved_at;autoCreateTime" json:"saved_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string { return "catalog_items" }

// ItemWithData pairs a saved reference with its live catalog-store payload.
type ItemWithData struct {
	Item
	ItemData map[string]any `json:"item_data,omitempty"`
}
