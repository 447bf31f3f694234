package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

var (
	userCommands = []tgbotapi.BotCommand{
		{Command: "start", Description: "Open the menu"},
		{Command: "mykeys", Description: "Show your keys"},
		{Command: "cancel", Description: "Cancel the current step"},
	}
	operatorCommands = []tgbotapi.BotCommand{
		{Command: "start", Description: "Open the menu"},
		{Command: "panel", Description: "Owner panel"},
		{Command: "stats", Description: "Bot statistics"},
		{Command: "broadcast", Description: "Message every user"},
		{Command: "users", Description: "List users"},
		{Command: "banned", Description: "List banned users"},
		{Command: "plans", Description: "Manage plans"},
		{Command: "payment", Description: "Set payment details"},
		{Command: "authkeys", Description: "Manage authorization keys"},
		{Command: "verify", Description: "Verify payments"},
		{Command: "cancel", Description: "Cancel the current step"},
	}
)

// commandRoutes maps every slash command onto its handler. Operator
// commands pass through adminOnly first; the facade authorizes again.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	routes := map[string]commandHandler{
		"start": r.handleStartCommand,
	}
	for _, c := range []string{"mykeys", "cancel"} {
		routes[c] = r.facadeCommand
	}
	for _, c := range []string{"panel", "stats", "broadcast", "users", "banned", "plans", "payment", "authkeys", "verify"} {
		routes[c] = r.adminOnly(r.facadeCommand)
	}
	return routes
}

func (r *RealTelegramBotAdapter) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	fn, ok := r.commandRoutes()[strings.ToLower(message.Command())]
	if !ok {
		return r.SendText(ctx, message.Chat.ID, r.translator.T("unknown_command"))
	}
	return fn(ctx, message)
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if r.cfg.OperatorID == 0 || message.From.ID != r.cfg.OperatorID {
			return r.SendText(ctx, message.Chat.ID, r.translator.T("access_denied"))
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.SetMenuCommands(ctx, message.Chat.ID, message.From.ID == r.cfg.OperatorID); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to set menu commands")
	}
	return r.facadeCommand(ctx, message)
}

func (r *RealTelegramBotAdapter) facadeCommand(ctx context.Context, message *tgbotapi.Message) error {
	reply, err := r.handler.HandleCommand(ctx, senderOf(message.From), message.Command())
	if err != nil {
		_ = r.SendText(ctx, message.Chat.ID, r.translator.T("generic_error"))
		return err
	}
	return r.sendReply(ctx, message.Chat.ID, reply)
}

// SetMenuCommands scopes the command menu to one chat so the operator sees
// the panel commands and everyone else the short list.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isOperator bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmds := userCommands
	if isOperator {
		cmds = operatorCommands
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...))
	return err
}
