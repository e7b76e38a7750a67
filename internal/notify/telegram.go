// Package notify posts status changes and a daily hours digest to a Telegram
// chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/events"
	"qrportal/internal/i18n"
	"qrportal/internal/model"
	"qrportal/internal/schedule"

	json "github.com/goccy/go-json"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TodayResolver answers the landing-page view of today.
type TodayResolver interface {
	ResolveToday(ctx context.Context) (*schedule.Today, error)
}

// Telegram formats portal events for a single chat.
type Telegram struct {
	sender  TelegramSender
	chatID  int64
	lang    string
	catalog *i18n.Catalog
	logger  zerolog.Logger
}

// NewTelegram creates a notifier writing to chatID in lang.
func NewTelegram(sender TelegramSender, chatID int64, lang string, catalog *i18n.Catalog, logger zerolog.Logger) *Telegram {
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLanguage
	}
	return &Telegram{
		sender:  sender,
		chatID:  chatID,
		lang:    lang,
		catalog: catalog,
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Attach subscribes the notifier to status events.
func (t *Telegram) Attach(bus *events.EventBus) {
	bus.Subscribe(events.TypeStatusChanged, t.HandleStatusEvent)
	bus.Subscribe(events.TypeStatusExpired, t.HandleStatusEvent)
}

// HandleStatusEvent is an events.EventHandler.
func (t *Telegram) HandleStatusEvent(event events.Event) error {
	var s model.Status
	if err := json.Unmarshal(event.Payload, &s); err != nil {
		return fmt.Errorf("decode status payload: %w", err)
	}
	return t.send(t.FormatStatus(&s))
}

// FormatStatus renders a status record as a chat message.
func (t *Telegram) FormatStatus(s *model.Status) string {
	label := t.catalog.T(t.lang, "status."+string(s.Kind), nil)

	var sb strings.Builder
	sb.WriteString(t.catalog.T(t.lang, "notify.status_changed", map[string]string{"status": label}))
	if s.DateFrom != nil && s.DateTo != nil {
		fmt.Fprintf(&sb, "\n%s – %s", s.DateFrom.Format("02.01.2006"), s.DateTo.Format("02.01.2006"))
	}
	if s.Description != nil && *s.Description != "" {
		sb.WriteString("\n" + *s.Description)
	}
	if s.NextReturn != nil {
		sb.WriteString("\n" + t.catalog.T(t.lang, "status.back_on", map[string]string{
			"date": s.NextReturn.Format("02.01.2006"),
		}))
	}
	return sb.String()
}

// FormatToday renders today's hours and the next opening.
func (t *Telegram) FormatToday(today *schedule.Today) string {
	var sb strings.Builder
	sb.WriteString(t.catalog.T(t.lang, "today", nil))
	sb.WriteString(" " + today.Schedule.Date.Format("02.01.2006") + ": ")
	if today.Schedule.Closed {
		sb.WriteString(t.catalog.T(t.lang, "closed", nil))
	} else {
		sb.WriteString(strings.Join(today.Schedule.TimeRanges, ", "))
	}
	if today.Schedule.Note != nil && *today.Schedule.Note != "" {
		sb.WriteString(" (" + *today.Schedule.Note + ")")
	}
	if today.NextOpen != nil {
		sb.WriteString("\n" + t.catalog.T(t.lang, "next_open", map[string]string{
			"date": today.NextOpen.Date.Format("02.01.2006"),
			"time": today.NextOpen.Time,
		}))
	}
	return sb.String()
}

// SendToday posts today's hours once.
func (t *Telegram) SendToday(ctx context.Context, r TodayResolver) error {
	today, err := r.ResolveToday(ctx)
	if err != nil {
		return fmt.Errorf("resolve today: %w", err)
	}
	return t.send(t.FormatToday(today))
}

// StartDailyDigest posts today's hours every day at hour (facility zone)
// until ctx is cancelled.
func (t *Telegram) StartDailyDigest(ctx context.Context, r TodayResolver, c clock.Clock, hour int) {
	go func() {
		timer := time.NewTimer(timeUntilNextHour(c.Now(), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := t.SendToday(ctx, r); err != nil {
					t.logger.Error().Err(err).Msg("daily digest failed")
				}
				timer.Reset(timeUntilNextHour(c.Now(), hour))
			}
		}
	}()
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", t.chatID, err)
	}
	t.logger.Debug().Int64("chat_id", t.chatID).Msg("message sent")
	return nil
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
