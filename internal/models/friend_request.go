package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is one row of the relationship ledger. There is at most one
// row per ordered (requester, receiver) pair; re-requesting overwrites status.
type FriendRequest struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	RequesterID uint                `gorm:"not null;uniqueIndex:uk_friend_request_pair,priority:1" json:"requesterId"`
	ReceiverID  uint                `gorm:"not null;uniqueIndex:uk_friend_request_pair,priority:2;index" json:"receiverId"`
	Status      FriendRequestStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Action is the receiver's answer to a pending request.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

// Status returns the ledger status an action leads to.
func (a Action) Status() FriendRequestStatus {
	if a == ActionAccept {
		return FriendRequestAccepted
	}
	return FriendRequestRejected
}
