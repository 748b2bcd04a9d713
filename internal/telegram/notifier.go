// Package telegram alerts offline users through a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	sendTimeout    = 10 * time.Second
	previewRunes   = 200
	previewEllipse = "…"
)

// Sender is the subset of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Presence reports whether a user has a live session.
type Presence interface {
	IsOnline(userID uint) bool
}

type Users interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// Notifier sends alerts to users who linked a Telegram chat and are not
// connected. Alerts are best effort and never block the caller.
type Notifier struct {
	sender   Sender
	presence Presence
	users    Users
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewBotAPI connects to the Bot API with token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewNotifier(sender Sender, presence Presence, users Users, log *logger.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		presence: presence,
		users:    users,
		log:      log.With("component", "TelegramNotifier"),
	}
}

func (n *Notifier) FriendRequest(ctx context.Context, requesterID, receiverID uint) {
	n.dispatch(ctx, receiverID, func(ctx context.Context) (string, error) {
		requester, err := n.users.GetUserByID(ctx, requesterID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s) sent you a friend request.", requester.Name, requester.Email), nil
	})
}

func (n *Notifier) NewMessage(ctx context.Context, recipientID uint, msg *models.Message) {
	senderID, content := msg.SenderID, msg.Content
	n.dispatch(ctx, recipientID, func(ctx context.Context) (string, error) {
		sender, err := n.users.GetUserByID(ctx, senderID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("New message from %s:\n%s", sender.Name, preview(content)), nil
	})
}

// Wait blocks until in-flight alerts are done.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, recipientID uint, text func(context.Context) (string, error)) {
	if recipientID == 0 || n.presence.IsOnline(recipientID) {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		recipient, err := n.users.GetUserByID(ctx, recipientID)
		if err != nil {
			n.log.Warn("telegram alert: recipient lookup failed", "user_id", recipientID, "error", err)
			return
		}
		if recipient.TelegramChatID == nil {
			return
		}

		body, err := text(ctx)
		if err != nil {
			n.log.Warn("telegram alert: build text failed", "user_id", recipientID, "error", err)
			return
		}
		if _, err := n.sender.Send(tgbotapi.NewMessage(*recipient.TelegramChatID, body)); err != nil {
			n.log.Warn("telegram alert failed", "user_id", recipientID, "error", err)
		}
	}()
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + previewEllipse
}
