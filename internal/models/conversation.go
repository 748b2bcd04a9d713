package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrSelfConversation = errors.New("conversation requires two distinct users")

// Conversation is the single 1:1 channel between two users. UserA and UserB
// keep their original roles; PairLow and PairHigh hold the canonical pair and
// carry the uniqueness constraint, so lookups never depend on column order.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserA     uint      `gorm:"not null;index" json:"userA"`
	UserB     uint      `gorm:"not null;index" json:"userB"`
	PairLow   uint      `gorm:"not null;uniqueIndex:uk_conversation_pair,priority:1" json:"-"`
	PairHigh  uint      `gorm:"not null;uniqueIndex:uk_conversation_pair,priority:2" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// CanonicalPair orders two user ids as (min, max).
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.UserA == c.UserB {
		return ErrSelfConversation
	}
	c.PairLow, c.PairHigh = CanonicalPair(c.UserA, c.UserB)
	return
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.UserA == userID || c.UserB == userID)
}

// OtherParticipant returns the peer of userID, or 0 if userID is not a member.
func (c *Conversation) OtherParticipant(userID uint) uint {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	default:
		return 0
	}
}
