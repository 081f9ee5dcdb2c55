package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/export"
	"offer-wizard/internal/usecase"
)

// Wizard is the slice of the wizard service the bot consumes.
type Wizard interface {
	NewSessionID() string
	Load(ctx context.Context, sessionID, propertyID string, page domain.Page) (usecase.ConversationState, error)
	Submit(ctx context.Context, sessionID, propertyID string, page domain.Page, questionID string, values []string) (usecase.ConversationState, error)
	Readiness(ctx context.Context, propertyID string) (domain.StepReadiness, error)
	Comparables(ctx context.Context, propertyID string) (domain.CMAAnalysis, error)
	RemoveComparables(ctx context.Context, propertyID string, comparableIDs []string, reason string) (domain.CMAAnalysis, error)
	Recommendation(ctx context.Context, propertyID string) (domain.OfferRecommendation, error)
	SaveOfferPrice(ctx context.Context, propertyID string, price float64) error
	ConditionPhotos(ctx context.Context, propertyID string, page domain.Page) ([]*usecase.ImageHandle, error)
	Report(ctx context.Context, sessionID, propertyID string) (domain.OfferReport, error)
	EndSession(ctx context.Context, sessionID string) error
}

const (
	stateIdle = iota
	stateAwaitingProperty
	stateInConversation
)

// chatSession is one user's progress through the wizard.
type chatSession struct {
	state      int
	sessionID  string
	propertyID string
	page       domain.Page
	awaiting   *domain.Question
	selected   map[string]bool
	panels     *usecase.PanelTracker
}

func newChatSession() *chatSession {
	return &chatSession{
		state:    stateIdle,
		selected: make(map[string]bool),
		panels:   usecase.NewPanelTracker(),
	}
}

// WizardBot drives the offer wizard over Telegram: one chat session per
// user, option questions as inline keyboards, free text as plain replies.
type WizardBot struct {
	wizard Wizard
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

func NewWizardBot(wizard Wizard, log zerolog.Logger) (*WizardBot, error) {
	if wizard == nil {
		return nil, errors.New("telegram: wizard service must not be nil")
	}
	return &WizardBot{
		wizard:   wizard,
		log:      log,
		sessions: make(map[int64]*chatSession),
	}, nil
}

func (w *WizardBot) session(userID int64) *chatSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[userID]
	if !ok {
		s = newChatSession()
		w.sessions[userID] = s
	}
	return s
}

// Handler is the bot's default update handler.
func (w *WizardBot) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		w.handleCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil:
		w.handleMessage(ctx, b, update.Message)
	}
}

func (w *WizardBot) handleMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	chatID := msg.Chat.ID
	s := w.session(msg.From.ID)
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		w.reset(ctx, s)
		s.state = stateAwaitingProperty
		w.send(ctx, b, chatID, "Hi! I'll walk you through preparing a purchase offer.\nSend me the MLS number of the property.", nil)
	case text == "/help":
		w.send(ctx, b, chatID, helpText, nil)
	case text == "/next":
		w.advancePage(ctx, b, chatID, s)
	case text == "/comps":
		w.showComparables(ctx, b, chatID, s)
	case strings.HasPrefix(text, "/remove"):
		w.removeComparable(ctx, b, chatID, s, text)
	case strings.HasPrefix(text, "/price"):
		w.adjustPrice(ctx, b, chatID, s, text)
	case text == "/offer":
		w.showOffer(ctx, b, chatID, s)
	case text == "/report":
		w.sendReport(ctx, b, chatID, s)
	case text == "/photos":
		w.sendPhotos(ctx, b, chatID, s)
	case text == "/skip":
		w.submit(ctx, b, chatID, s, []string{domain.AnswerSkip.WireValue()})
	case s.state == stateAwaitingProperty:
		w.startSession(ctx, b, chatID, s, text)
	case s.state == stateInConversation && s.awaiting != nil && len(msg.Photo) > 0:
		// The upload itself lands on the platform out of band; answering the
		// question just acknowledges it.
		w.submit(ctx, b, chatID, s, []string{domain.AnswerDefault.WireValue()})
	case s.state == stateInConversation && s.awaiting != nil:
		w.submit(ctx, b, chatID, s, []string{text})
	default:
		w.send(ctx, b, chatID, "I didn't understand that. Use /start or /help.", nil)
	}
}

func (w *WizardBot) handleCallback(ctx context.Context, b *bot.Bot, cb *models.CallbackQuery) {
	// Acknowledge first so the client stops its spinner even on errors.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID}); err != nil {
		w.log.Warn().Err(err).Msg("callback ack failed")
	}

	chatID := cb.Message.Message.Chat.ID
	s := w.session(cb.From.ID)
	if s.awaiting == nil {
		w.send(ctx, b, chatID, "Nothing is waiting for an answer right now.", nil)
		return
	}

	data := cb.Data
	switch {
	case data == cbSkip:
		w.submit(ctx, b, chatID, s, []string{domain.AnswerSkip.WireValue()})
	case data == cbSubmit:
		values := make([]string, 0, len(s.selected))
		for _, o := range s.awaiting.Options {
			if s.selected[o.ID] {
				values = append(values, o.ID)
			}
		}
		w.submit(ctx, b, chatID, s, values)
	case strings.HasPrefix(data, cbOption):
		id := strings.TrimPrefix(data, cbOption)
		wd, ok := usecase.WidgetFor(s.awaiting.Type)
		if ok && wd.Submit == usecase.SubmitImmediate {
			w.submit(ctx, b, chatID, s, []string{id})
			return
		}
		s.selected[id] = !s.selected[id]
		text, kb := RenderQuestion(*s.awaiting, s.selected)
		w.send(ctx, b, chatID, text, kb)
	}
}

func (w *WizardBot) startSession(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession, propertyID string) {
	s.sessionID = w.wizard.NewSessionID()
	s.propertyID = propertyID
	s.page = domain.StepOrder[0]
	s.state = stateInConversation

	state, err := w.wizard.Load(ctx, s.sessionID, s.propertyID, s.page)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		s.state = stateAwaitingProperty
		return
	}
	w.send(ctx, b, chatID, fmt.Sprintf("Starting the offer wizard for %s (step: %s).", propertyID, s.page), nil)
	w.present(ctx, b, chatID, s, state)
}

func (w *WizardBot) submit(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession, values []string) {
	if s.state != stateInConversation || s.awaiting == nil {
		w.send(ctx, b, chatID, "Nothing is waiting for an answer right now. /start begins a new offer.", nil)
		return
	}
	state, err := w.wizard.Submit(ctx, s.sessionID, s.propertyID, s.page, s.awaiting.QuestionID, values)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	if state.Reloaded {
		w.send(ctx, b, chatID, "That answer changed which questions apply; here's where things stand now.", nil)
	}
	w.present(ctx, b, chatID, s, state)
}

// present shows the next awaiting question, or the step-complete prompt.
func (w *WizardBot) present(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession, state usecase.ConversationState) {
	s.selected = make(map[string]bool)
	s.awaiting = state.Awaiting

	if h := RenderHistory(state.History); h != "" && state.Reloaded {
		w.send(ctx, b, chatID, h, nil)
	}
	if state.Done {
		w.send(ctx, b, chatID, fmt.Sprintf("Step %q is complete. Send /next to continue.", s.page), nil)
		return
	}
	if state.Awaiting == nil {
		w.send(ctx, b, chatID, "Waiting on the platform for the next question; try /next in a moment.", nil)
		return
	}
	if s.panels.Focus(*state.Awaiting) {
		w.send(ctx, b, chatID, fmt.Sprintf("(Preview: %s)", s.panels.Current()), nil)
	}
	text, kb := RenderQuestion(*state.Awaiting, s.selected)
	w.send(ctx, b, chatID, text, kb)
}

func (w *WizardBot) advancePage(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	next, ok := usecase.NextStep(s.page)
	if !ok {
		w.showOffer(ctx, b, chatID, s)
		return
	}
	status, err := w.wizard.Readiness(ctx, s.propertyID)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	if !status.IsReady(next) {
		w.send(ctx, b, chatID, fmt.Sprintf("Step %q isn't ready yet; finish the current step first.", next), nil)
		return
	}

	s.page = next
	s.panels.Reset()
	state, err := w.wizard.Load(ctx, s.sessionID, s.propertyID, s.page)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	w.send(ctx, b, chatID, fmt.Sprintf("Moving on to %q.", s.page), nil)
	w.present(ctx, b, chatID, s, state)
}

func (w *WizardBot) showComparables(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	analysis, err := w.wizard.Comparables(ctx, s.propertyID)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	w.send(ctx, b, chatID, RenderComparables(analysis), nil)
}

func (w *WizardBot) removeComparable(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession, text string) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	parts := strings.Fields(text)
	if len(parts) < 3 {
		w.send(ctx, b, chatID, "Usage: /remove <id> <reason for removing it>", nil)
		return
	}
	id, reason := parts[1], strings.Join(parts[2:], " ")
	analysis, err := w.wizard.RemoveComparables(ctx, s.propertyID, []string{id}, reason)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	w.send(ctx, b, chatID, "Removed. The price suggestion has been recalculated.\n\n"+RenderComparables(analysis), nil)
}

func (w *WizardBot) adjustPrice(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession, text string) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	parts := strings.Fields(text)
	if len(parts) != 2 {
		w.send(ctx, b, chatID, "Usage: /price <amount>", nil)
		return
	}
	price, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		w.send(ctx, b, chatID, "That doesn't look like a number. Usage: /price <amount>", nil)
		return
	}
	if err := w.wizard.SaveOfferPrice(ctx, s.propertyID, price); err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	w.send(ctx, b, chatID, fmt.Sprintf("Offer price set to $%.0f. See the summary with /offer.", price), nil)
}

func (w *WizardBot) showOffer(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	rec, err := w.wizard.Recommendation(ctx, s.propertyID)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	w.send(ctx, b, chatID, RenderRecommendation(rec), nil)
}

func (w *WizardBot) sendReport(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	report, err := w.wizard.Report(ctx, s.sessionID, s.propertyID)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	var buf bytes.Buffer
	if err := export.NewReportWriter().Write(&buf, report); err != nil {
		w.log.Error().Err(err).Msg("report export failed")
		w.send(ctx, b, chatID, "Couldn't build the report. Please try again.", nil)
		return
	}
	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: fmt.Sprintf("offer-%s.csv", s.propertyID),
			Data:     &buf,
		},
		Caption: "Your offer report.",
	})
	if err != nil {
		w.log.Error().Err(err).Int64("chat_id", chatID).Msg("send document failed")
	}
}

func (w *WizardBot) sendPhotos(ctx context.Context, b *bot.Bot, chatID int64, s *chatSession) {
	if s.state != stateInConversation {
		w.send(ctx, b, chatID, "Start an offer first with /start.", nil)
		return
	}
	handles, err := w.wizard.ConditionPhotos(ctx, s.propertyID, s.page)
	if err != nil {
		w.sendError(ctx, b, chatID, err)
		return
	}
	if len(handles) == 0 {
		w.send(ctx, b, chatID, "No condition photos on this step yet.", nil)
		return
	}
	for _, h := range handles {
		f, err := h.Open()
		if err != nil {
			w.log.Error().Err(err).Str("image_id", h.Meta.ImageID).Msg("open photo failed")
			continue
		}
		_, sendErr := b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileUpload{Filename: h.Meta.Name, Data: f},
			Caption: h.Meta.Name,
		})
		_ = f.Close()
		if sendErr != nil {
			w.log.Error().Err(sendErr).Int64("chat_id", chatID).Msg("send photo failed")
		}
	}
	for _, h := range handles {
		_ = h.Close()
	}
}

func (w *WizardBot) reset(ctx context.Context, s *chatSession) {
	if s.sessionID != "" {
		if err := w.wizard.EndSession(ctx, s.sessionID); err != nil {
			w.log.Warn().Err(err).Str("session_id", s.sessionID).Msg("session cleanup failed")
		}
	}
	*s = *newChatSession()
}

func (w *WizardBot) sendError(ctx context.Context, b *bot.Bot, chatID int64, err error) {
	w.log.Warn().Err(err).Msg("wizard action failed")
	var text string
	switch usecase.CodeOf(err) {
	case usecase.ErrorInvalidInput:
		text = "That answer wasn't accepted: " + reasonText(err)
	case usecase.ErrorUnauthorized:
		text = "Your session has expired. /start to begin again."
	default:
		text = "Something went wrong talking to the platform. Please try again."
	}
	w.send(ctx, b, chatID, text, nil)
}

func reasonText(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return strings.ReplaceAll(ucErr.Reason, "_", " ")
	}
	return "please try again"
}

func (w *WizardBot) send(ctx context.Context, b *bot.Bot, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		w.log.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

const helpText = `Commands:
/start – begin an offer on a property
/next – move to the next wizard step
/comps – show the comparable sales
/remove <id> <reason> – remove a comparable
/price <amount> – adjust the offer price
/offer – show the offer summary
/photos – show this step's condition photos
/report – download the offer report as CSV
/skip – skip the current question
/help – this list`
