// Package notify delivers budget alerts to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"finman/internal/aggregate"
	"finman/internal/core"
	"finman/internal/log"
)

// Alert reports that a category moved into a worse budget status.
type Alert struct {
	Category   string
	Month      core.Month
	Spent      core.Money
	Budget     core.Money
	Percentage aggregate.Percentage
	Previous   aggregate.Status
	Status     aggregate.Status
	Currency   string
}

// Message renders the alert as a single chat line.
func (a Alert) Message() string {
	label := "Budget warning"
	if a.Status == aggregate.StatusOver {
		label = "Budget exceeded"
	}
	usage := a.Percentage.String()
	if a.Percentage.IsSet() {
		usage += "%"
	}
	return fmt.Sprintf("%s: %s has used %s of its %s budget for %s (%s spent)",
		label,
		a.Category,
		usage,
		core.FormatAmount(a.Budget, a.Currency),
		a.Month,
		core.FormatAmount(a.Spent, a.Currency))
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
	Name() string
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.logger.WarnContext(ctx, a.Message(),
		log.FieldCategory, a.Category,
		log.FieldStatus, string(a.Status),
		log.FieldYear, a.Month.Year,
		log.FieldMonth, int(a.Month.Month),
		log.FieldAmountCents, a.Spent.Cents)
	return nil
}

// discordSender is the part of *discordgo.Session used for alerts.
type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts alerts to one channel through the bot REST API. No
// gateway connection is opened.
type DiscordNotifier struct {
	session   discordSender
	channelID string
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create Discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

func (n *DiscordNotifier) Name() string { return "discord" }

func (n *DiscordNotifier) Notify(ctx context.Context, a Alert) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, a.Message(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send Discord message: %w", err)
	}
	return nil
}

// telegramSender is the part of *tgbotapi.BotAPI used for alerts.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramNotifier verifies the token against the Bot API before returning.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create Telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, a.Message())
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send Telegram message: %w", err)
	}
	return nil
}

// Multi fans an alert out to every notifier. One failing channel does not
// stop delivery to the others.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
