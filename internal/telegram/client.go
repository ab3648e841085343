// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats forecast run summaries into human-readable messages and handles
// delivery with retry logic for reliability.
//
// Messages use MarkdownV2, so every dynamic fragment is escaped before it is
// embedded.
package telegram

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// sender is the subset of the bot API the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send sends a summary of the given forecast runs
func (c *Client) Send(runs []*models.Run) error {
	if len(runs) == 0 {
		return nil
	}
	return c.send(formatMessage(runs))
}

// SendError notifies that a forecast cycle failed
func (c *Client) SendError(err error) error {
	message := "⚠️ *Forecast cycle failed*\n\n" + escapeMarkdownV2(err.Error())
	return c.send(message)
}

// SendRecovery notifies that forecasting recovered after failures
func (c *Client) SendRecovery(failures int, downtime time.Duration) error {
	message := fmt.Sprintf("✅ *Forecasting recovered* after %d failed %s \\(%s\\)",
		failures, plural(failures, "cycle", "cycles"), escapeMarkdownV2(formatDuration(downtime)))
	return c.send(message)
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	// Send with retry
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage formats runs into a Telegram message, one block per run
// ordered by model then group.
func formatMessage(runs []*models.Run) string {
	sorted := make([]*models.Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Model != sorted[j].Model {
			return sorted[i].Model < sorted[j].Model
		}
		return sorted[i].Group < sorted[j].Group
	})

	var b strings.Builder
	b.WriteString("📊 *Forecast Update*\n\n")

	if len(sorted) > 0 {
		dateStr := escapeMarkdownV2(sorted[0].CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "📅 Run: %s\n\n", dateStr)
	}

	for i, run := range sorted {
		title := strings.ToUpper(string(run.Model))
		if run.Group != "" {
			title += " · " + run.Group
		}
		fmt.Fprintf(&b, "%d\\. *%s*\n", i+1, escapeMarkdownV2(title))

		keys := make([]string, 0, len(run.Summary))
		for k := range run.Summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "   %s: %s\n", escapeMarkdownV2(k), escapeMarkdownV2(formatValue(run.Summary[k])))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// formatValue prints whole numbers without decimals and rates to four places.
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! \

	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
