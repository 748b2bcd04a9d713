package models

import "time"

// Message is one entry of a conversation's log. Deleted messages keep their
// row with the content replaced by a tombstone.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID uint          `gorm:"not null;index:idx_message_conversation_created,priority:1" json:"conversationId"`
	SenderID       uint          `gorm:"not null" json:"senderId"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time     `gorm:"index:idx_message_conversation_created,priority:2" json:"createdAt"`
	Deleted        bool          `gorm:"not null;default:false" json:"deleted"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}
