package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"stockfinder/internal/trader"
)

// Notifier 사이클 결과 전송
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TelegramNotifier sends messages to a single chat
type TelegramNotifier struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewTelegramNotifier creates a send-only bot (no poller, no getMe on start).
// apiURL 이 비어 있으면 기본 Bot API 사용.
func NewTelegramNotifier(token string, chatID int64, apiURL string) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:  bot,
		chat: &tele.Chat{ID: chatID},
	}, nil
}

// Notify 메시지 전송
func (t *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(t.chat, message); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	log.Printf("[NOTIFY] Sent %d lines to chat %d", strings.Count(message, "\n")+1, t.chat.ID)
	return nil
}

// LogNotifier writes the message to the log instead of sending it
type LogNotifier struct{}

// Notify 로그 출력
func (LogNotifier) Notify(ctx context.Context, message string) error {
	log.Printf("[NOTIFY] (not sent)\n%s", message)
	return nil
}

// BuildMessage formats the cycle report: a date line, then sells and buys.
// ok is false when there is nothing to act on.
func BuildMessage(today time.Time, sells []trader.SellDecision, buys []trader.AllocationResult) (string, bool) {
	lines := []string{today.Format("2006-01-02")}

	for _, d := range sells {
		if !d.IsSell() {
			continue
		}
		lines = append(lines, fmt.Sprintf("Sell %s (%s)", d.Symbol, d.Reason))
	}
	for _, b := range buys {
		if b.SharesToBuy <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("Buy %s x%d", b.Symbol, b.SharesToBuy))
	}

	if len(lines) == 1 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
