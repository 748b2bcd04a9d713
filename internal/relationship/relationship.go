// Package relationship implements the friend request ledger and the
// conversation lifecycle tied to it.
package relationship

import (
	"context"
	"errors"
	"strings"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"
)

// Notifier reaches the live sessions of affected users. Delivery is advisory.
type Notifier interface {
	FriendUpdate(ctx context.Context, userIDs ...uint)
	ConversationClosed(ctx context.Context, conversationID uint)
}

// Alerter reaches users outside the real-time channel.
type Alerter interface {
	FriendRequest(ctx context.Context, requesterID, receiverID uint)
}

type Service struct {
	store    storage.Storage
	notifier Notifier
	alerter  Alerter
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewService(store storage.Storage, notifier Notifier, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		log:      log.With("service", "RelationshipService"),
	}
}

// WithAlerter enables out-of-band alerts for incoming requests.
func (s *Service) WithAlerter(a Alerter) *Service {
	s.alerter = a
	return s
}

// CreateOrRenewRequest inserts a pending request from requester to the user
// owning receiverEmail, or resets an existing one to pending.
func (s *Service) CreateOrRenewRequest(ctx context.Context, requesterID uint, receiverEmail string) (*models.FriendRequest, error) {
	receiverEmail = strings.TrimSpace(receiverEmail)
	if receiverEmail == "" {
		return nil, apperr.InvalidArg("email is required")
	}

	receiver, err := s.store.GetUserByEmail(ctx, receiverEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("no user with that email")
	}
	if err != nil {
		return nil, apperr.Internal("lookup receiver", err)
	}
	if receiver.ID == requesterID {
		return nil, apperr.InvalidOperation("cannot send a friend request to yourself")
	}

	req, err := s.store.UpsertPendingRequest(ctx, requesterID, receiver.ID)
	if err != nil {
		return nil, apperr.Internal("upsert friend request", err)
	}

	s.metrics.FriendRequest("create")
	s.log.Info("friend request pending", "request_id", req.ID, "requester_id", requesterID, "receiver_id", receiver.ID)
	s.notifier.FriendUpdate(ctx, requesterID, receiver.ID)
	if s.alerter != nil {
		s.alerter.FriendRequest(ctx, requesterID, receiver.ID)
	}
	return req, nil
}

// Respond lets the receiver accept or reject a request. Accepting guarantees
// the pair's conversation exists. Repeating the action already applied
// succeeds with the same result.
func (s *Service) Respond(ctx context.Context, responderID, requestID uint, action models.Action) (*models.RespondResult, error) {
	if !action.Valid() {
		return nil, apperr.InvalidOperation("action must be accept or reject")
	}

	req, err := s.store.GetFriendRequest(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && req.ReceiverID != responderID) {
		return nil, apperr.NotFound("friend request not found")
	}
	if err != nil {
		return nil, apperr.Internal("load friend request", err)
	}
	if req.Status != models.FriendRequestPending && req.Status != action.Status() {
		return nil, apperr.InvalidOperation("friend request was already " + string(req.Status))
	}

	if action == models.ActionReject {
		if req.Status == models.FriendRequestRejected {
			return &models.RespondResult{Status: models.FriendRequestRejected}, nil
		}
		err := s.store.UpdateFriendRequestStatus(ctx, req.ID, models.FriendRequestRejected,
			models.FriendRequestPending, models.FriendRequestRejected)
		switch {
		case errors.Is(err, storage.ErrStatusChanged):
			return nil, apperr.InvalidOperation("friend request was already accepted")
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("friend request not found")
		case err != nil:
			return nil, apperr.Internal("reject friend request", err)
		}
		s.metrics.FriendRequest("reject")
		s.notifier.FriendUpdate(ctx, req.RequesterID, req.ReceiverID)
		return &models.RespondResult{Status: models.FriendRequestRejected}, nil
	}

	conv, err := s.accept(ctx, req)
	if err != nil && storage.IsRetryable(err) {
		s.log.Warn("accept conflicted, retrying", "request_id", req.ID, "error", err)
		conv, err = s.accept(ctx, req)
	}
	if err != nil {
		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("friend request not found")
		default:
			return nil, apperr.Internal("accept friend request", err)
		}
	}

	s.metrics.FriendRequest("accept")
	s.log.Info("friend request accepted", "request_id", req.ID, "conversation_id", conv.ID)
	s.notifier.FriendUpdate(ctx, req.RequesterID, req.ReceiverID)
	return &models.RespondResult{Status: models.FriendRequestAccepted, ConversationID: &conv.ID}, nil
}

// accept marks the request accepted and ensures the conversation in one
// transaction.
func (s *Service) accept(ctx context.Context, req *models.FriendRequest) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.store.InTx(ctx, func(tx storage.Storage) error {
		err := tx.UpdateFriendRequestStatus(ctx, req.ID, models.FriendRequestAccepted,
			models.FriendRequestPending, models.FriendRequestAccepted)
		if errors.Is(err, storage.ErrStatusChanged) {
			return apperr.InvalidOperation("friend request was already rejected")
		}
		if err != nil {
			return err
		}
		conv, _, err = tx.EnsureConversation(ctx, req.RequesterID, req.ReceiverID)
		return err
	})
	return conv, err
}

// Remove deletes the relationship between the two users in both directions
// together with their conversation and its messages. Removing a relationship
// that does not exist succeeds.
func (s *Service) Remove(ctx context.Context, userID, otherUserID uint) error {
	if otherUserID == 0 {
		return apperr.InvalidArg("user id is required")
	}

	convID, err := s.remove(ctx, userID, otherUserID)
	if err != nil && storage.IsRetryable(err) {
		convID, err = s.remove(ctx, userID, otherUserID)
	}
	if err != nil {
		return apperr.Internal("remove friendship", err)
	}

	if convID != 0 {
		s.notifier.ConversationClosed(ctx, convID)
	}
	s.metrics.FriendRequest("remove")
	s.log.Info("friendship removed", "user_id", userID, "other_user_id", otherUserID, "conversation_id", convID)
	s.notifier.FriendUpdate(ctx, userID, otherUserID)
	return nil
}

func (s *Service) remove(ctx context.Context, userID, otherUserID uint) (uint, error) {
	var convID uint
	err := s.store.InTx(ctx, func(tx storage.Storage) error {
		if _, err := tx.DeleteRequestsBetween(ctx, userID, otherUserID); err != nil {
			return err
		}
		conv, err := tx.FindConversation(ctx, userID, otherUserID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		convID = conv.ID
		return tx.DeleteConversation(ctx, conv.ID)
	})
	return convID, err
}

// ListRequests returns the user's pending requests in both directions.
func (s *Service) ListRequests(ctx context.Context, userID uint) (*models.RequestLists, error) {
	incoming, err := s.store.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list incoming requests", err)
	}
	outgoing, err := s.store.ListOutgoingRequests(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list outgoing requests", err)
	}

	ids := make([]uint, 0, len(incoming)+len(outgoing))
	for _, r := range incoming {
		ids = append(ids, r.RequesterID)
	}
	for _, r := range outgoing {
		ids = append(ids, r.ReceiverID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load users", err)
	}

	out := &models.RequestLists{
		Incoming: make([]models.FriendRequestView, 0, len(incoming)),
		Outgoing: make([]models.FriendRequestView, 0, len(outgoing)),
	}
	for _, r := range incoming {
		u := users[r.RequesterID]
		out.Incoming = append(out.Incoming, models.FriendRequestView{ID: r.ID, Status: r.Status, User: u.Summary(), CreatedAt: r.CreatedAt})
	}
	for _, r := range outgoing {
		u := users[r.ReceiverID]
		out.Outgoing = append(out.Outgoing, models.FriendRequestView{ID: r.ID, Status: r.Status, User: u.Summary(), CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Service) ListFriends(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	users, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list friends", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

func (s *Service) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	return convs, nil
}
