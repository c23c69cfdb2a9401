package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers plain-text notifications to a chat.
type Sender interface {
	Send(ctx context.Context, msg string) error
}

type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg string) error { return nil }

// botAPI is the part of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotSender sends with retries, a rate ticker and a per-attempt timeout.
// Flood-control replies (429) are retried after the delay Telegram asks for;
// other client errors fail at once.
type BotSender struct {
	bot        botAPI
	chatID     int64
	retryTimes int
	rate       *time.Ticker
	timeout    time.Duration
	// maxWait caps any single backoff, including a server-requested one.
	maxWait    time.Duration
}

func NewBotSender(token string, chatID int64, retryTimes int, rateInterval time.Duration, timeout time.Duration) (*BotSender, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return newBotSender(bot, chatID, retryTimes, rateInterval, timeout), nil
}

func newBotSender(bot botAPI, chatID int64, retryTimes int, rateInterval time.Duration, timeout time.Duration) *BotSender {
	return &BotSender{
		bot:        bot,
		chatID:     chatID,
		retryTimes: retryTimes,
		rate:       time.NewTicker(rateInterval),
		timeout:    timeout,
		maxWait:    30 * time.Second,
	}
}

// Close stops the rate ticker.
func (s *BotSender) Close() {
	s.rate.Stop()
}

const tgMaxLen = 3800

// Send splits msg on line boundaries into parts Telegram accepts and sends
// them in order, numbered when there is more than one.
func (s *BotSender) Send(ctx context.Context, msg string) error {
	parts := splitTelegramText(msg, tgMaxLen)
	if len(parts) == 1 {
		return s.send(ctx, tgbotapi.NewMessage(s.chatID, parts[0]))
	}
	for i, p := range parts {
		p = fmt.Sprintf("(%d/%d)\n%s", i+1, len(parts), p)
		if err := s.send(ctx, tgbotapi.NewMessage(s.chatID, p)); err != nil {
			return fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// splitTelegramText packs whole lines into chunks of at most limit bytes.
// A single line longer than limit is cut on a rune boundary.
func splitTelegramText(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return []string{s}
	}

	var out []string
	var chunk strings.Builder
	flush := func() {
		if c := strings.TrimSpace(chunk.String()); c != "" {
			out = append(out, c)
		}
		chunk.Reset()
	}
	for _, line := range strings.Split(s, "\n") {
		for len(line) > limit {
			flush()
			cut := runeCut(line, limit)
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if chunk.Len() > 0 && chunk.Len()+1+len(line) > limit {
			flush()
		}
		if chunk.Len() > 0 {
			chunk.WriteByte('\n')
		}
		chunk.WriteString(line)
	}
	flush()
	return out
}

func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

func (s *BotSender) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	var err error
	for attempt := 0; attempt <= s.retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.rate.C:
		}

		if err = s.attempt(ctx, msg); err == nil {
			return nil
		}
		if !retryable(err) || attempt == s.retryTimes {
			break
		}

		wait := time.NewTimer(s.backoff(err, attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
	return fmt.Errorf("telegram send: %w", err)
}

// attempt runs one bot call bounded by the per-attempt timeout. The bot
// call itself cannot be interrupted; a late result is discarded.
func (s *BotSender) attempt(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	result := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(msg)
		result <- err
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timed out: %w", ctx.Err())
	case err := <-result:
		return err
	}
}

// retryable reports whether err is worth another attempt. Telegram client
// errors other than flood control (bad chat id, bot blocked) never recover.
func retryable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return apiErr.Code == 429
	}
	return true
}

// backoff is the delay Telegram asked for on flood control, otherwise
// 500ms doubled per attempt. Both are capped at maxWait.
func (s *BotSender) backoff(err error, attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		d = time.Duration(apiErr.RetryAfter) * time.Second
	}
	if s.maxWait > 0 && d > s.maxWait {
		d = s.maxWait
	}
	return d
}
