package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot long-polls Telegram and answers each command message in its chat.
type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	commands *Commands
	timeout  int
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBot authenticates with token. pollTimeout is in seconds.
func NewBot(token string, pollTimeout int, commands *Commands, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("telegram")
	log.Info("authorized", zap.String("bot", api.Self.UserName))
	return &Bot{api: api, out: api, commands: commands, timeout: pollTimeout, log: log}, nil
}

// Start begins polling in the background.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				b.handle(ctx, upd)
			}
		}
	}()
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.cancel == nil {
		return nil
	}
	b.api.StopReceivingUpdates()
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	reply := b.commands.Handle(ctx, TraderID(msg.Chat.ID), text)
	if _, err := b.out.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		b.log.Warn("send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}
