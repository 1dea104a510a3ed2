package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xsamyy/evmwatch/internal/bond"
	"github.com/0xsamyy/evmwatch/internal/watcher"
	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// ErrNotBonded is returned when an event arrives before any chat bonded.
var ErrNotBonded = errors.New("no chat bonded")

// Sender is the slice of *bot.Bot the sink needs.
type Sender interface {
	SendMessage(ctx context.Context, params *tg.SendMessageParams) (*models.Message, error)
}

// Sink delivers formatted events to the bonded chat.
type Sink struct {
	sender  Sender
	bond    *bond.State
	limiter *rate.Limiter
}

// NewSink returns a Sink sending through s to whichever chat b is bonded to.
// Sends are paced by limiter, which may be nil for no pacing. Telegram
// rejects bursts above roughly one message per second to a single chat.
func NewSink(s Sender, b *bond.State, limiter *rate.Limiter) *Sink {
	return &Sink{sender: s, bond: b, limiter: limiter}
}

// Notify implements watcher.Sink.
func (s *Sink) Notify(ctx context.Context, e watcher.Event) error {
	chatID, ok := s.bond.ChatID()
	if !ok {
		return ErrNotBonded
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify %s %s: %w", e.Network, e.TxHash.Hex(), err)
		}
	}
	if err := SendHTML(ctx, s.sender, chatID, Format(e)); err != nil {
		return fmt.Errorf("notify %s %s: %w", e.Network, e.TxHash.Hex(), err)
	}
	return nil
}

// SendHTML sends html to chatID with link previews disabled.
func SendHTML(ctx context.Context, s Sender, chatID int64, html string) error {
	disable := true
	_, err := s.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:    chatID,
		Text:      html,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disable,
		},
	})
	return err
}
