package models

import "time"

type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ConversationSummary is a conversation as seen by one of its participants.
type ConversationSummary struct {
	ConversationID uint      `json:"conversationId"`
	OtherUserID    uint      `json:"otherUserId"`
	OtherUserName  string    `json:"otherUserName"`
	OtherUserEmail string    `json:"otherUserEmail"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FriendRequestView pairs a ledger row with the user on the other side.
type FriendRequestView struct {
	ID        uint                `json:"id"`
	Status    FriendRequestStatus `json:"status"`
	User      UserSummary         `json:"user"`
	CreatedAt time.Time           `json:"createdAt"`
}

// RequestLists groups a user's pending requests by direction.
type RequestLists struct {
	Incoming []FriendRequestView `json:"incoming"`
	Outgoing []FriendRequestView `json:"outgoing"`
}

// RespondResult is the outcome of accepting or rejecting a request.
type RespondResult struct {
	Status         FriendRequestStatus `json:"status"`
	ConversationID *uint               `json:"conversationId,omitempty"`
}
