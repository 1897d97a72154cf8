// Package telegram adapts the Telegram Bot API to the core: it turns updates
// into dispatcher events, renders the returned instructions back into
// messages, inline keyboards and message edits, and resolves usernames to
// account ids for the admin search path.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/sessionvault/internal/bot/query"
	"github.com/dmitrijs2005/sessionvault/internal/bot/ui"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
)

// Handler is the inbound event surface of the core. Each method returns the
// rendering instruction to show the user.
type Handler interface {
	HandleStart(ctx context.Context, userID int64) (ui.Render, error)
	HandleText(ctx context.Context, userID int64, text string) (ui.Render, error)
	HandleButton(ctx context.Context, userID int64, data string) (ui.Render, error)
}

type Client struct {
	api    *tgbotapi.BotAPI
	logger logging.Logger
}

func NewClient(token string, logger logging.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot api init error: %w", err)
	}
	api.Debug = false
	return &Client{api: api, logger: logger.With("module", "telegram")}, nil
}

// Run consumes the update long-poll until ctx is cancelled. Every update is
// handled on its own goroutine; the dispatcher serializes per user.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	updCfg := tgbotapi.NewUpdate(0)
	updCfg.Timeout = 60
	updates := c.api.GetUpdatesChan(updCfg)

	c.logger.Info(ctx, "update loop started", "account", c.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return ctx.Err()
		case u := <-updates:
			go c.handleUpdate(ctx, handler, u)
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, handler Handler, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		// Ack first so the button stops spinning.
		if _, err := c.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			c.logger.Warn(ctx, "callback ack failed", "error", err)
		}

		r, err := handler.HandleButton(ctx, cq.From.ID, cq.Data)
		if err != nil {
			c.logger.Error(ctx, "button handling failed", "user_id", cq.From.ID, "error", err)
			r = ui.Render{Text: "⚠️ Something went wrong. Please try again."}
		}

		var editRef *tgbotapi.Message
		if cq.Message != nil {
			editRef = cq.Message
		}
		c.render(ctx, cq.From.ID, r, editRef)

	case u.Message != nil:
		msg := u.Message
		if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
			return
		}
		userID := msg.From.ID

		var (
			r   ui.Render
			err error
		)
		if msg.IsCommand() && msg.Command() == "start" {
			r, err = handler.HandleStart(ctx, userID)
		} else {
			r, err = handler.HandleText(ctx, userID, msg.Text)
		}
		if err != nil {
			c.logger.Error(ctx, "message handling failed", "user_id", userID, "error", err)
			r = ui.Render{Text: "⚠️ Something went wrong. Please try again."}
		}

		c.render(ctx, userID, r, nil)
	}
}

// render turns one instruction into API calls. Edit renders replace the
// message the instruction responds to; everything else is a fresh message.
func (c *Client) render(ctx context.Context, chatID int64, r ui.Render, prev *tgbotapi.Message) {
	if r.None() {
		return
	}

	if r.Media != "" {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(r.Media))
		doc.Caption = r.Text
		if _, err := c.api.Send(doc); err != nil {
			c.logger.Error(ctx, "media send failed", "chat_id", chatID, "error", err)
		}
		return
	}

	if r.Edit && prev != nil {
		var edit tgbotapi.EditMessageTextConfig
		if len(r.Buttons) > 0 {
			edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, prev.MessageID, r.Text, keyboard(r.Buttons))
		} else {
			edit = tgbotapi.NewEditMessageText(chatID, prev.MessageID, r.Text)
		}
		edit.ParseMode = "Markdown"
		if _, err := c.api.Send(edit); err != nil {
			c.logger.Warn(ctx, "message edit failed", "chat_id", chatID, "error", err)
		}
		return
	}

	msg := tgbotapi.NewMessage(chatID, r.Text)
	msg.ParseMode = "Markdown"
	if len(r.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(r.Buttons)
	}
	if _, err := c.api.Send(msg); err != nil {
		c.logger.Error(ctx, "message send failed", "chat_id", chatID, "error", err)
	}
}

func keyboard(rows [][]ui.Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: kb}
}

// ResolveUsername maps a public username to its account id.
func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	username = strings.TrimPrefix(username, "@")
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: "@" + username},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: username %q", common.ErrNotFound, username)
	}
	return chat.ID, nil
}

// Profile loads what the Bot API exposes about an account. Premium and
// frozen status are not visible to bots and stay false.
func (c *Client) Profile(ctx context.Context, userID int64) (*query.Profile, error) {
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: user %d", common.ErrNotFound, userID)
	}

	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		name = chat.Title
	}

	p := &query.Profile{ID: chat.ID, Name: name}
	if chat.UserName != "" {
		p.Usernames = []string{chat.UserName}
	}
	return p, nil
}
