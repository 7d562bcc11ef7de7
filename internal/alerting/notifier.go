package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swell-alerts/internal/forecast"
	"swell-alerts/internal/tide"
)

// Notification carries everything needed to tell a subscriber about a
// detected surf window.
type Notification struct {
	ChatID   int64
	RuleID   string
	RuleName string
	SpotName string
	Timezone string

	WindowStart time.Time
	WindowEnd   time.Time
	Hours       int

	// Samples is a contextual slice of the forecast around the window.
	Samples []forecast.Sample

	HighTide *tide.Event
	LowTide  *tide.Event
}

// Notifier delivers notifications to subscribers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify renders the window and calls the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": strconv.FormatInt(note.ChatID, 10),
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int64("chat_id", note.ChatID).
		Str("rule", note.RuleID).
		Time("window_start", note.WindowStart).
		Msg("notification sent")
	return nil
}

func renderMessage(note Notification) string {
	loc := time.UTC
	if note.Timezone != "" {
		if l, err := time.LoadLocation(note.Timezone); err == nil {
			loc = l
		}
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("🏄 %s — %s\n", note.SpotName, note.RuleName))
	builder.WriteString(fmt.Sprintf("%d good hour(s): %s → %s\n",
		note.Hours,
		note.WindowStart.In(loc).Format("Mon 15:04"),
		note.WindowEnd.In(loc).Format("Mon 15:04")))

	if note.HighTide != nil {
		builder.WriteString(fmt.Sprintf("High tide %s (%s m)\n",
			note.HighTide.Time.In(loc).Format("15:04"), fixed(note.HighTide.Height, 1)))
	}
	if note.LowTide != nil {
		builder.WriteString(fmt.Sprintf("Low tide %s (%s m)\n",
			note.LowTide.Time.In(loc).Format("15:04"), fixed(note.LowTide.Height, 1)))
	}

	for _, s := range note.Samples {
		builder.WriteString(fmt.Sprintf("%s  %sm @ %ss  wind %s°/%skn\n",
			s.Time.In(loc).Format("15:04"),
			fixed(s.CombinedHeight(), 1),
			fixed(s.PrimaryPeriod(), 0),
			fixed(s.WindAngle, 0),
			fixed(s.WindSpeed, 0)))
	}
	return builder.String()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

var _ Notifier = (*TelegramNotifier)(nil)
