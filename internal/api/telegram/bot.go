package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/imaging"
	"blister-inspector/internal/log"
)

const (
	msgStart = `👋 Hi! I report on the blister inspection line.

🔔 This chat is now subscribed to rejected packs.

📋 Commands:
/status — line state
/stats — verdict counts
/last — latest inspections
/alerts rejects|all|muted — what to send here
/stop — unsubscribe
/help — this message`

	msgHelp = `ℹ️ Every inspected pack ends as accept or reject.

🔔 Alerts carry the captured frame and the classifier verdict.
A pack is rejected when it is bad, when the classifier is unsure,
or when the classifier did not answer in time.

📋 Commands:
/status — line state
/stats — verdict counts
/last — latest inspections
/alerts rejects|all|muted — what to send here
/stop — unsubscribe`

	msgStopped        = "🔕 Unsubscribed. Send /start to subscribe again."
	msgAlertsUsage    = "Usage: /alerts rejects|all|muted"
	msgUnknownCommand = "❓ Unknown command. Use /help."
	msgNotACommand    = "📋 I only understand commands. Use /help."
	msgNoInspections  = "No inspections yet."
	msgError          = "⚠️ Something went wrong, try again later."

	lastLimit = 5
)

// botAPI часть tgbotapi.BotAPI, которой пользуется бот
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// StatusProvider возвращает снимок состояния контроллера
type StatusProvider interface {
	Status() app.Status
}

// Bot представляет Telegram-бота: отвечает на команды операторов и рассылает оповещения
type Bot struct {
	api           botAPI
	subscriptions *app.SubscriptionService
	inspections   port.InspectionRepository
	status        StatusProvider
	encoder       *imaging.Encoder
}

// NewBot создаёт нового бота и подключается к Telegram
func NewBot(token string, subscriptions *app.SubscriptionService, inspections port.InspectionRepository, status StatusProvider, encoder *imaging.Encoder) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("telegram bot authorized", "account", api.Self.UserName)

	return newBot(api, subscriptions, inspections, status, encoder), nil
}

func newBot(api botAPI, subscriptions *app.SubscriptionService, inspections port.InspectionRepository, status StatusProvider, encoder *imaging.Encoder) *Bot {
	return &Bot{
		api:           api,
		subscriptions: subscriptions,
		inspections:   inspections,
		status:        status,
		encoder:       encoder,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, msgNotACommand)
		return
	}
	b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if _, err := b.subscriptions.Subscribe(ctx, chatID); err != nil {
			log.Error("subscribe failed", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "stop":
		if err := b.subscriptions.Unsubscribe(ctx, chatID); err != nil {
			log.Error("unsubscribe failed", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgStopped)

	case "alerts":
		level, ok := entity.ParseAlertLevel(strings.TrimSpace(msg.CommandArguments()))
		if !ok {
			b.sendMessage(chatID, msgAlertsUsage)
			return
		}
		if _, err := b.subscriptions.SetLevel(ctx, chatID, level); err != nil {
			log.Error("set alert level failed", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf("🔔 Alerts: %s", level))

	case "status":
		b.sendMessage(chatID, formatStatus(b.status.Status()))

	case "stats":
		stats, err := b.inspections.Stats(ctx)
		if err != nil {
			log.Error("load stats failed", "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, formatStats(stats))

	case "last":
		recent, err := b.inspections.Recent(ctx, lastLimit)
		if err != nil {
			log.Error("load inspections failed", "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, formatRecent(recent))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) Name() string { return "telegram" }

// Publish отправляет результат проверки всем подписанным чатам,
// вместе с кадром, если он есть.
func (b *Bot) Publish(ctx context.Context, inspection entity.Inspection) error {
	chats, err := b.subscriptions.Recipients(ctx, inspection)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(chats) == 0 {
		return nil
	}

	caption := formatInspection(inspection)

	var photo []byte
	if inspection.Frame.Valid() {
		photo, err = b.encoder.JPEG(inspection.Frame)
		if err != nil {
			log.Warn("encode alert photo failed", "id", inspection.ID, "error", err)
		}
	}

	var errs []error
	for _, chatID := range chats {
		var c tgbotapi.Chattable
		if photo != nil {
			p := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: inspection.ID + ".jpg", Bytes: photo})
			p.Caption = caption
			c = p
		} else {
			c = tgbotapi.NewMessage(chatID, caption)
		}
		if _, err := b.api.Send(c); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func formatInspection(i entity.Inspection) string {
	var head string
	switch {
	case i.Unavailable:
		head = "⚠️ Classifier unavailable, pack rejected"
	case i.Verdict.Class == entity.VerdictGood:
		head = "✅ Pack accepted"
	case i.Verdict.Class == entity.VerdictBad:
		head = "❌ Defective pack rejected"
	default:
		head = "❔ Uncertain pack rejected"
	}

	return fmt.Sprintf("%s\nVerdict: %s (%.2f)\nCommand: %s\nTime: %s\nID: %s",
		head, i.Verdict.Class, i.Verdict.Confidence, i.Command,
		i.DecidedAt.Format(time.DateTime), i.ID)
}

func formatStatus(s app.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📟 State: %s\n", s.State)
	fmt.Fprintf(&sb, "Cycles: %d, triggers: %d\n", s.Cycles, s.Triggers)
	fmt.Fprintf(&sb, "Frames: %d, skipped: %d\n", s.Frames, s.Skipped)
	fmt.Fprintf(&sb, "Classifier unavailable: %d", s.Unavailable)
	if s.ParamsError != "" {
		fmt.Fprintf(&sb, "\n⚠️ %s", s.ParamsError)
	}
	if s.Last != nil {
		fmt.Fprintf(&sb, "\nLast: %s → %s at %s",
			s.Last.Verdict.Class, s.Last.Command, s.Last.DecidedAt.Format(time.TimeOnly))
	}
	return sb.String()
}

func formatStats(s entity.InspectionStats) string {
	return fmt.Sprintf("📊 Inspected: %d\n✅ good: %d\n❌ bad: %d\n❔ none: %d\n⚠️ unavailable: %d",
		s.Total, s.Good, s.Bad, s.None, s.Unavailable)
}

func formatRecent(recent []entity.Inspection) string {
	if len(recent) == 0 {
		return msgNoInspections
	}
	var sb strings.Builder
	for n, i := range recent {
		if n > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %s %.2f → %s",
			i.DecidedAt.Format(time.TimeOnly), i.Verdict.Class, i.Verdict.Confidence, i.Command)
	}
	return sb.String()
}

var _ port.InspectionSink = (*Bot)(nil)
