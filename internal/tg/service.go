package tg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/session"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	cbConnect = "connect"
	cbNewTx   = "new_tx"
	cbSubmit  = "submit"
	cbCancel  = "cancel"

	cbHistory       = "history"
	cbCount         = "count"
	cbRefresh       = "refresh"
	cbMySubmissions = "my_submissions"
	cbBackToMain    = "back_main"

	historyLimit = 10
)

type Service struct {
	bot      *tgbot.Bot
	sessions *session.Store
	notifyCh <-chan bus.Notification

	state *StateStore

	logger zerolog.Logger
}

func NewService(
	b *tgbot.Bot,
	sessions *session.Store,
	notifyCh <-chan bus.Notification,
	logger zerolog.Logger,
) *Service {
	s := &Service{
		bot:      b,
		sessions: sessions,
		notifyCh: notifyCh,
		state:    NewStateStore(),
		logger:   logger.With().Str("component", "tg").Logger(),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.onStart)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbConnect, tgbot.MatchTypeExact, s.onCbConnect)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbNewTx, tgbot.MatchTypeExact, s.onCbNewTx)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSubmit, tgbot.MatchTypeExact, s.onCbSubmit)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbCancel, tgbot.MatchTypeExact, s.onCbBackToMain)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbHistory, tgbot.MatchTypeExact, s.onCbHistory)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbCount, tgbot.MatchTypeExact, s.onCbCount)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbRefresh, tgbot.MatchTypeExact, s.onCbRefresh)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbMySubmissions, tgbot.MatchTypeExact, s.onCbMySubmissions)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBackToMain, tgbot.MatchTypeExact, s.onCbBackToMain)

	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onAnyText)
}

// StartNotifyLoop delivers coordinator notifications to their chats.
func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: n.ChatID,
				Text:   FormatNotification(n),
			})
			if err != nil {
				s.logger.Warn().Err(err).Int64("chat_id", n.ChatID).Msg("send notify error")
			}
		}
	}
}

func mainMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Connect wallet", CallbackData: cbConnect},
				{Text: "New transfer", CallbackData: cbNewTx},
			},
			{
				{Text: "Transactions", CallbackData: cbHistory},
				{Text: "Count", CallbackData: cbCount},
			},
			{
				{Text: "My submissions", CallbackData: cbMySubmissions},
				{Text: "Refresh", CallbackData: cbRefresh},
			},
		},
	}
}

func backMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: cbBackToMain}},
		},
	}
}

func (s *Service) onStart(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	s.state.Set(chatID, StateIdle)

	// initialization failures reach the chat through the notifier
	c, _ := s.sessions.Get(ctx, chatID)

	text := "Hi! I send ETH and record every transfer on-chain.\n\n"
	if st := c.State(); st.Connected {
		text += fmt.Sprintf("Account: %s\nRecorded transactions: %d\n\n", st.Account.Hex(), st.TransactionCount)
	}
	text += "Choose an action:"

	s.send(ctx, chatID, text, mainMenu())
}

// callbackChat answers the callback and returns its chat id.
func (s *Service) callbackChat(ctx context.Context, b *tgbot.Bot, upd *models.Update) (int64, bool) {
	cb := upd.CallbackQuery
	if cb == nil || cb.Message.Type == models.MaybeInaccessibleMessageTypeInaccessibleMessage {
		return 0, false
	}
	_, _ = b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	})
	return cb.Message.Message.Chat.ID, true
}

func (s *Service) onCbConnect(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	if _, err := c.Connect(ctx); err != nil {
		return
	}
	if err := c.RefreshAll(ctx); err != nil {
		return
	}
	s.send(ctx, chatID, "Main menu:", mainMenu())
}

func (s *Service) onCbNewTx(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateAwaitRecipient)
	s.send(ctx, chatID, "Recipient address (0x...):", nil)
}

func (s *Service) onAnyText(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	// commands are handled elsewhere
	if strings.HasPrefix(text, "/") {
		return
	}

	st, value, err := advance(s.state.Get(chatID), text)
	switch {
	case err == nil:
	case errors.Is(err, errBadAddr):
		s.send(ctx, chatID, msgBadAddr, nil)
		return
	case errors.Is(err, errBadAmount):
		s.send(ctx, chatID, msgBadAmount, nil)
		return
	default:
		s.send(ctx, chatID, "Use /start to open the menu.", nil)
		return
	}

	c, _ := s.sessions.Get(ctx, chatID)
	if err := c.UpdateField(st.field, value); err != nil {
		s.logger.Error().Err(err).Msg("update field")
		return
	}
	s.state.Set(chatID, st.next)

	if st.next != StateIdle {
		s.send(ctx, chatID, st.prompt, nil)
		return
	}

	s.send(ctx, chatID, FormatForm(c.State().Form), &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Send", CallbackData: cbSubmit},
				{Text: "Cancel", CallbackData: cbCancel},
			},
		},
	})
}

func (s *Service) onCbSubmit(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	if c.Submitting() {
		s.send(ctx, chatID, "A transfer is already being submitted, please wait.", nil)
		return
	}

	s.send(ctx, chatID, "⏳ Submitting… confirm in your wallet if asked.", nil)

	// confirmation can take minutes; keep the update loop free
	go func() {
		receipt, err := c.Submit(ctx)
		if err != nil {
			return
		}
		s.send(ctx, chatID, fmt.Sprintf(
			"✅ Done\n\nTransfer: %s\nRecord: %s\nBlock: #%d\nRecorded transactions: %d",
			receipt.TransferHash.Hex(), receipt.RecordHash.Hex(), receipt.BlockNumber, c.State().TransactionCount,
		), mainMenu())
	}()
}

func (s *Service) onCbHistory(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	if err := c.RefreshTransactions(ctx); err != nil {
		return
	}

	txs := c.State().Transactions
	if len(txs) == 0 {
		s.send(ctx, chatID, "No transactions yet.", backMenu())
		return
	}
	s.send(ctx, chatID, FormatHistory(txs, historyLimit), backMenu())
}

func (s *Service) onCbCount(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	if err := c.RefreshCount(ctx); err != nil {
		return
	}
	s.send(ctx, chatID, fmt.Sprintf("Recorded transactions: %d", c.State().TransactionCount), backMenu())
}

func (s *Service) onCbRefresh(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	if err := c.RefreshAll(ctx); err != nil {
		return
	}
	st := c.State()
	s.send(ctx, chatID, fmt.Sprintf("Refreshed: %d transactions, count %d.", len(st.Transactions), st.TransactionCount), mainMenu())
}

func (s *Service) onCbMySubmissions(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	c, _ := s.sessions.Get(ctx, chatID)

	items, err := c.Submissions(ctx, historyLimit)
	if err != nil {
		s.send(ctx, chatID, fmt.Sprintf("Failed to read submissions: %v", err), backMenu())
		return
	}
	if len(items) == 0 {
		s.send(ctx, chatID, "No submissions yet.", backMenu())
		return
	}
	s.send(ctx, chatID, FormatSubmissions(items), backMenu())
}

func (s *Service) onCbBackToMain(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)
	s.send(ctx, chatID, "Main menu:", mainMenu())
}

func (s *Service) send(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send message error")
	}
}
