package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"pairchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	SetTelegramChatID(ctx context.Context, userID uint, chatID *int64) error

	UpsertPendingRequest(ctx context.Context, requesterID, receiverID uint) (*models.FriendRequest, error)
	GetFriendRequest(ctx context.Context, id uint) (*models.FriendRequest, error)
	UpdateFriendRequestStatus(ctx context.Context, id uint, status models.FriendRequestStatus, from ...models.FriendRequestStatus) error
	DeleteRequestsBetween(ctx context.Context, a, b uint) (int64, error)
	ListIncomingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListFriends(ctx context.Context, userID uint) ([]models.User, error)

	FindConversation(ctx context.Context, a, b uint) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	EnsureConversation(ctx context.Context, a, b uint) (*models.Conversation, bool, error)
	ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id uint) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	ListRecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error)
	TombstoneMessage(ctx context.Context, id uint, tombstone string) (*models.Message, error)

	// InTx runs fn against a Storage bound to a single transaction. Returning
	// an error from fn rolls the transaction back.
	InTx(ctx context.Context, fn func(tx Storage) error) error
}

type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Service) InTx(ctx context.Context, fn func(tx Storage) error) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx})
	})
}

// --- users ---

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	return s.db(ctx).Create(user).Error
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByEmail matches the address case-insensitively.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db(ctx).
		Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Service) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Service) SetTelegramChatID(ctx context.Context, userID uint, chatID *int64) error {
	res := s.db(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("telegram_chat_id", chatID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- relationship ledger ---

// UpsertPendingRequest inserts a pending request for the ordered pair or
// forces the existing row back to pending. It never fails on the pair's
// uniqueness constraint.
func (s *Service) UpsertPendingRequest(ctx context.Context, requesterID, receiverID uint) (*models.FriendRequest, error) {
	req := models.FriendRequest{
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Status:      models.FriendRequestPending,
	}
	err := s.db(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "requester_id"}, {Name: "receiver_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     models.FriendRequestPending,
			"updated_at": time.Now(),
		}),
	}).Create(&req).Error
	if err != nil {
		return nil, err
	}

	var stored models.FriendRequest
	err = s.db(ctx).
		Where("requester_id = ? AND receiver_id = ?", requesterID, receiverID).
		First(&stored).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &stored, nil
}

func (s *Service) GetFriendRequest(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := s.db(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// UpdateFriendRequestStatus sets the status of a request. When from is given
// the row only changes while its current status is one of them; otherwise
// ErrStatusChanged is returned.
func (s *Service) UpdateFriendRequestStatus(ctx context.Context, id uint, status models.FriendRequestStatus, from ...models.FriendRequestStatus) error {
	q := s.db(ctx).Model(&models.FriendRequest{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if len(from) == 0 {
		return ErrNotFound
	}
	if _, err := s.GetFriendRequest(ctx, id); err != nil {
		return err
	}
	return ErrStatusChanged
}

// DeleteRequestsBetween removes the rows of both directions of the pair.
func (s *Service) DeleteRequestsBetween(ctx context.Context, a, b uint) (int64, error) {
	res := s.db(ctx).
		Where("(requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?)", a, b, b, a).
		Delete(&models.FriendRequest{})
	return res.RowsAffected, res.Error
}

func (s *Service) ListIncomingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := s.db(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

func (s *Service) ListOutgoingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := s.db(ctx).
		Where("requester_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListFriends returns the users on the other side of an accepted request in
// either direction.
func (s *Service) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := s.db(ctx).
		Where(`id IN (
			SELECT receiver_id FROM friend_requests WHERE requester_id = ? AND status = ?
			UNION
			SELECT requester_id FROM friend_requests WHERE receiver_id = ? AND status = ?)`,
			userID, models.FriendRequestAccepted, userID, models.FriendRequestAccepted).
		Order("name ASC, id ASC").
		Find(&users).Error
	return users, err
}

// --- conversation directory ---

// FindConversation looks the pair up by its canonical (min, max) form.
func (s *Service) FindConversation(ctx context.Context, a, b uint) (*models.Conversation, error) {
	lo, hi := models.CanonicalPair(a, b)
	var conv models.Conversation
	err := s.db(ctx).
		Where("pair_low = ? AND pair_high = ?", lo, hi).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (s *Service) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db(ctx).First(&conv, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// EnsureConversation returns the pair's conversation, creating it if absent.
// A concurrent insert for the same pair is absorbed by ON CONFLICT DO NOTHING
// and the winner's row is returned instead. created reports whether this call
// inserted the row.
func (s *Service) EnsureConversation(ctx context.Context, a, b uint) (*models.Conversation, bool, error) {
	existing, err := s.FindConversation(ctx, a, b)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	conv := &models.Conversation{UserA: a, UserB: b}
	res := s.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := s.FindConversation(ctx, a, b)
		return existing, false, err
	}
	return conv, true, nil
}

func (s *Service) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	var out []models.ConversationSummary
	err := s.db(ctx).Raw(`
		SELECT c.id AS conversation_id,
		       u.id AS other_user_id,
		       u.name AS other_user_name,
		       u.email AS other_user_email,
		       c.created_at AS created_at
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user_a = ? THEN c.user_b ELSE c.user_a END
		WHERE c.user_a = ? OR c.user_b = ?
		ORDER BY c.created_at DESC, c.id DESC`,
		userID, userID, userID).
		Scan(&out).Error
	return out, err
}

// DeleteConversation removes the conversation's messages and then the
// conversation row. Deleting an absent conversation is not an error.
func (s *Service) DeleteConversation(ctx context.Context, id uint) error {
	if err := s.db(ctx).Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	return s.db(ctx).Delete(&models.Conversation{}, id).Error
}

// --- message log ---

func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db(ctx).Omit(clause.Associations).Create(msg).Error
}

func (s *Service) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db(ctx).First(&msg, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// ListRecentMessages returns up to limit messages, newest first.
func (s *Service) ListRecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// TombstoneMessage replaces the content with tombstone and marks the row
// deleted. Identity columns are left untouched.
func (s *Service) TombstoneMessage(ctx context.Context, id uint, tombstone string) (*models.Message, error) {
	res := s.db(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": tombstone, "deleted": true})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetMessage(ctx, id)
}
