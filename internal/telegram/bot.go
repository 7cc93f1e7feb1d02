package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sheettrack/internal/analytics"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
	"sheettrack/internal/tracker"
)

const (
	cmdAdd   = "add"
	cmdRun   = "run"
	cmdStats = "stats"
	cmdNew   = "new"

	runCallback = "run_tracker"

	// keeps a reply well under the 4096 character message limit
	maxListedRows = 20
)

// Tracker is the part of the tracker the bot drives.
type Tracker interface {
	AddRecord(r sheet.Record) (sheet.State, error)
	Start(ctx context.Context) (*tracker.Pending, error)
	Snapshot() tracker.View
}

// Bot exposes tracker actions as chat commands and posts every finished run
// to a single chat.
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	tracker Tracker
	gen     *sheet.Generator
	chatID  int64
	ctx     context.Context
}

func New(botToken string, chatID int64, tr Tracker, gen *sheet.Generator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram api: %w", err)
	}
	b := newBot(api, chatID, tr, gen)
	b.api = api
	return b, nil
}

func newBot(s sender, chatID int64, tr Tracker, gen *sheet.Generator) *Bot {
	return &Bot{
		sender:  s,
		tracker: tr,
		gen:     gen,
		chatID:  chatID,
		ctx:     context.Background(),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("🤖 Telegram bot @%s started", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	return b.chatID == 0 || chatID == b.chatID
}

func (b *Bot) handleIncomingMessage(msg *tgbotapi.Message) {
	if msg.Chat == nil || !b.allowed(msg.Chat.ID) {
		return
	}
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, helpText())
		return
	}

	log.Printf("Incoming command /%s in chat %d", msg.Command(), msg.Chat.ID)

	switch msg.Command() {
	case cmdAdd:
		b.handleAdd(msg.Chat.ID)
	case cmdRun:
		b.handleRun(msg.Chat.ID)
	case cmdStats:
		b.handleStats(msg.Chat.ID)
	case cmdNew:
		b.handleNew(msg.Chat.ID)
	default:
		b.sendMessage(msg.Chat.ID, helpText())
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || !b.allowed(cb.Message.Chat.ID) {
		return
	}
	if cb.Data != runCallback {
		return
	}
	if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, "Running tracker...")); err != nil {
		log.Printf("failed to answer callback: %v", err)
	}
	b.handleRun(cb.Message.Chat.ID)
}

func (b *Bot) handleAdd(chatID int64) {
	r := b.gen.Next()
	st, err := b.tracker.AddRecord(r)
	if err != nil {
		log.Printf("failed to persist added row: %v", err)
	}
	pending := len(st.Log) - st.Watermark
	text := fmt.Sprintf("➕ Added %s · %s · %s · %s\nNew rows waiting: %d",
		r.User, r.Source, r.Status, analytics.FormatMoney(r.Value), pending)

	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Run Tracker", runCallback),
		),
	)
	b.send(out)
}

func (b *Bot) handleRun(chatID int64) {
	p, err := b.tracker.Start(b.ctx)
	if errors.Is(err, tracker.ErrRefreshInProgress) {
		b.sendMessage(chatID, "⏳ A tracker run is already in progress.")
		return
	}
	if err != nil {
		log.Printf("failed to start refresh: %v", err)
		b.sendMessage(chatID, "Sorry, something went wrong.")
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("🔄 Running tracker on %d new rows...", len(p.Rows)))
	// the result arrives through RunFinished when a notification chat is set
	if b.chatID == 0 {
		go func() {
			run, err := p.Wait(b.ctx)
			if err == nil {
				b.sendMessage(chatID, FormatRun(run))
			}
		}()
	}
}

func (b *Bot) handleStats(chatID int64) {
	v := b.tracker.Snapshot()
	b.sendMessage(chatID, analytics.Compute(v.Log, v.Watermark).Summary())
}

func (b *Bot) handleNew(chatID int64) {
	v := b.tracker.Snapshot()
	if len(v.New) == 0 {
		b.sendMessage(chatID, "No new rows detected since your last refresh.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "New delta (unprocessed): %d rows\n", len(v.New))
	for i, r := range v.New {
		if i == maxListedRows {
			fmt.Fprintf(&sb, "... and %d more\n", len(v.New)-maxListedRows)
			break
		}
		fmt.Fprintf(&sb, "• %s %s · %s · %s · %s\n", r.Timestamp, r.User, r.Source, r.Status, analytics.FormatMoney(r.Value))
	}
	b.sendMessage(chatID, sb.String())
}

// RunFinished posts the run's insight to the notification chat.
func (b *Bot) RunFinished(_ context.Context, run storage.Run) {
	if b.chatID == 0 {
		return
	}
	b.sendMessage(b.chatID, FormatRun(run))
}

// FormatRun renders a finished run as a chat message.
func FormatRun(run storage.Run) string {
	header := fmt.Sprintf("✨ Tracker run: %d new rows, processed index %d → %d",
		run.NewRecords, run.WatermarkBefore, run.WatermarkAfter)
	if run.Model != "" {
		header += fmt.Sprintf(" [model=%s]", run.Model)
	}
	return header + "\n\n" + run.Insight
}

func helpText() string {
	return "Commands:\n" +
		"/add - add a test row\n" +
		"/run - run the tracker and summarize new rows\n" +
		"/new - list rows added since the last run\n" +
		"/stats - show totals and the status breakdown"
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sender.Send(c); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
