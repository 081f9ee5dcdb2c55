package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/usecase"
)

// WizardAPI is the slice of the wizard service the handler consumes.
type WizardAPI interface {
	NewSessionID() string
	Load(ctx context.Context, sessionID, propertyID string, page domain.Page) (usecase.ConversationState, error)
	Submit(ctx context.Context, sessionID, propertyID string, page domain.Page, questionID string, values []string) (usecase.ConversationState, error)
	Readiness(ctx context.Context, propertyID string) (domain.StepReadiness, error)
	Property(ctx context.Context, propertyID string) (domain.Property, error)
	Comparables(ctx context.Context, propertyID string) (domain.CMAAnalysis, error)
	RemoveComparables(ctx context.Context, propertyID string, comparableIDs []string, reason string) (domain.CMAAnalysis, error)
	Recommendation(ctx context.Context, propertyID string) (domain.OfferRecommendation, error)
	SaveOfferPrice(ctx context.Context, propertyID string, price float64) error
	Images(ctx context.Context, propertyID string, page domain.Page) ([]domain.ImageMeta, error)
	Report(ctx context.Context, sessionID, propertyID string) (domain.OfferReport, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Handler adapts API Gateway proxy events onto the wizard service.
type Handler struct {
	wizard WizardAPI
	log    zerolog.Logger
}

func NewHandler(wizard WizardAPI, log zerolog.Logger) (*Handler, error) {
	if wizard == nil {
		return nil, errors.New("handler: wizard service must not be nil")
	}
	return &Handler{wizard: wizard, log: log}, nil
}

// request is the single body shape for every wizard action; fields beyond
// action are read per-action.
type request struct {
	Action        string   `json:"action"`
	SessionID     string   `json:"session_id"`
	PropertyID    string   `json:"property_id"`
	Page          string   `json:"page"`
	QuestionID    string   `json:"question_id"`
	Response      []string `json:"response"`
	ComparableIDs []string `json:"comparable_ids"`
	Reason        string   `json:"reason"`
	Price         float64  `json:"price"`
}

type conversationResponse struct {
	SessionID string            `json:"session_id"`
	Questions []domain.Question `json:"questions"`
	Awaiting  *domain.Question  `json:"awaiting,omitempty"`
	History   []domain.ChatTurn `json:"history,omitempty"`
	Reloaded  bool              `json:"reloaded,omitempty"`
	Done      bool              `json:"done"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle routes one wizard action.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	log := h.log.With().Str("correlation_id", corrID).Logger()

	var req request
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn().Err(err).Msg("invalid request body")
		return respondError(corrID, http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_body"), nil
	}
	log = log.With().Str("action", req.Action).Str("property_id", req.PropertyID).Logger()

	body, err := h.dispatch(ctx, req)
	if err != nil {
		return h.errorResponse(log, corrID, err), nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("response marshal failed")
		return respondError(corrID, http.StatusInternalServerError, usecase.ErrorInternal, "marshal_error"), nil
	}
	log.Info().Msg("action handled")
	return respond(corrID, http.StatusOK, string(raw)), nil
}

func (h *Handler) dispatch(ctx context.Context, req request) (any, error) {
	switch req.Action {
	case "load":
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = h.wizard.NewSessionID()
		}
		state, err := h.wizard.Load(ctx, sessionID, req.PropertyID, domain.Page(req.Page))
		if err != nil {
			return nil, err
		}
		return toConversationResponse(sessionID, state), nil
	case "submit":
		state, err := h.wizard.Submit(ctx, req.SessionID, req.PropertyID, domain.Page(req.Page), req.QuestionID, req.Response)
		if err != nil {
			return nil, err
		}
		return toConversationResponse(req.SessionID, state), nil
	case "status":
		return h.wizard.Readiness(ctx, req.PropertyID)
	case "property":
		return h.wizard.Property(ctx, req.PropertyID)
	case "comparables":
		return h.wizard.Comparables(ctx, req.PropertyID)
	case "remove_comparable":
		return h.wizard.RemoveComparables(ctx, req.PropertyID, req.ComparableIDs, req.Reason)
	case "offer":
		return h.wizard.Recommendation(ctx, req.PropertyID)
	case "save_offer":
		if err := h.wizard.SaveOfferPrice(ctx, req.PropertyID, req.Price); err != nil {
			return nil, err
		}
		return map[string]bool{"saved": true}, nil
	case "images":
		metas, err := h.wizard.Images(ctx, req.PropertyID, domain.Page(req.Page))
		if err != nil {
			return nil, err
		}
		return map[string][]domain.ImageMeta{"images": metas}, nil
	case "report":
		return h.wizard.Report(ctx, req.SessionID, req.PropertyID)
	case "end_session":
		if err := h.wizard.EndSession(ctx, req.SessionID); err != nil {
			return nil, err
		}
		return map[string]bool{"ended": true}, nil
	default:
		return nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_action"}
	}
}

func toConversationResponse(sessionID string, state usecase.ConversationState) conversationResponse {
	return conversationResponse{
		SessionID: sessionID,
		Questions: state.Questions,
		Awaiting:  state.Awaiting,
		History:   state.History,
		Reloaded:  state.Reloaded,
		Done:      state.Done,
	}
}

func (h *Handler) errorResponse(log zerolog.Logger, corrID string, err error) events.APIGatewayProxyResponse {
	code := usecase.CodeOf(err)
	status := statusFor(code)
	var ucErr *usecase.Error
	reason := ""
	if errors.As(err, &ucErr) {
		reason = ucErr.Reason
	}
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).Str("code", string(code)).Msg("action failed")
	return respondError(corrID, status, code, reason)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(corrID string, status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": corrID,
		},
		Body: body,
	}
}

func respondError(corrID string, status int, code usecase.ErrorCode, reason string) events.APIGatewayProxyResponse {
	raw, _ := json.Marshal(errorResponse{Error: string(code), Reason: reason})
	return respond(corrID, status, string(raw))
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
