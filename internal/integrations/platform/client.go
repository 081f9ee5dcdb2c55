package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"offer-wizard/internal/domain"
)

// ErrUnauthorized is returned when either the transport or the response
// envelope reports 401. The session must be terminated; there is no retry.
var ErrUnauthorized = errors.New("platform: unauthorized")

// ErrNoQuestion is returned by CurrentQuestion when the backend has no
// unanswered question left for the page.
var ErrNoQuestion = errors.New("platform: no current question")

// StatusError captures a non-2xx transport response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// APIError captures a 2xx transport response whose envelope code is not 200.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: api code %d: %s", e.Code, e.Message)
}

// envelope is the common response wrapper. Every JSON endpoint carries a
// code field; 200 is success, 401 terminates the session, anything else is a
// user-visible request error.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TokenSource resolves the platform API token. Satisfied by
// paramstore.Client and by StaticToken.
type TokenSource interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// StaticToken is a TokenSource holding a fixed token, for environments that
// do not use Parameter Store.
type StaticToken string

func (t StaticToken) GetParameter(context.Context, string) (string, error) {
	if t == "" {
		return "", errors.New("platform: static token is empty")
	}
	return string(t), nil
}

// Client is a thin wrapper over the backend platform REST API. One method
// per endpoint; no retries; raw failures surface as typed errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	tokenName  string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. The API token is resolved from the TokenSource
// on first use and cached for the process lifetime.
func NewClient(baseURL string, tokens TokenSource, tokenName string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("platform: base URL must not be empty")
	}
	if tokens == nil {
		return nil, errors.New("platform: token source must not be nil")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		tokenName:  tokenName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		c.token, c.tokenErr = c.tokens.GetParameter(ctx, c.tokenName)
		if c.tokenErr == nil && strings.TrimSpace(c.token) == "" {
			c.tokenErr = errors.New("platform: resolved token is empty")
		}
	})
	return c.token, c.tokenErr
}

// CurrentQuestion fetches the current unanswered question for a page.
func (c *Client) CurrentQuestion(ctx context.Context, propertyID string, page domain.Page) (domain.Question, error) {
	var q domain.Question
	data, err := c.getJSON(ctx, fmt.Sprintf("/agent-qna/%s/%s", url.PathEscape(propertyID), url.PathEscape(string(page))))
	if err != nil {
		return domain.Question{}, err
	}
	if len(data) == 0 || string(data) == "null" {
		return domain.Question{}, ErrNoQuestion
	}
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Question{}, fmt.Errorf("platform: decode current question: %w", err)
	}
	if q.QuestionID == "" {
		return domain.Question{}, ErrNoQuestion
	}
	return q, nil
}

// MarkedQuestions fetches the questions previously made visible on a page,
// in display order, responses included.
func (c *Client) MarkedQuestions(ctx context.Context, propertyID string, page domain.Page) ([]domain.Question, error) {
	data, err := c.getJSON(ctx, fmt.Sprintf("/agent-qna/%s/marked/%s", url.PathEscape(propertyID), url.PathEscape(string(page))))
	if err != nil {
		return nil, err
	}
	var qs []domain.Question
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("platform: decode marked questions: %w", err)
	}
	return qs, nil
}

// AnswerHistory fetches the prior free-text chat history for a page.
func (c *Client) AnswerHistory(ctx context.Context, propertyID string, page domain.Page) ([]domain.ChatTurn, error) {
	data, err := c.getJSON(ctx, fmt.Sprintf("/user/%s/%s/history", url.PathEscape(propertyID), url.PathEscape(string(page))))
	if err != nil {
		return nil, err
	}
	var turns []domain.ChatTurn
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("platform: decode answer history: %w", err)
	}
	return turns, nil
}

type submitAnswerRequest struct {
	QuestionID string   `json:"question_id"`
	Response   []string `json:"response"`
}

// SubmitAnswer persists a response for a question.
func (c *Client) SubmitAnswer(ctx context.Context, propertyID string, page domain.Page, questionID string, response []string) error {
	body := submitAnswerRequest{QuestionID: questionID, Response: response}
	_, err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/agent-qna/%s/%s", url.PathEscape(propertyID), url.PathEscape(string(page))), body)
	return err
}

// ReadyStatus fetches the per-step availability flags for a property.
func (c *Client) ReadyStatus(ctx context.Context, propertyID string) (domain.StepReadiness, error) {
	data, err := c.getJSON(ctx, "/agent-qna/qna-ready-status?mlsid="+url.QueryEscape(propertyID))
	if err != nil {
		return domain.StepReadiness{}, err
	}
	var s domain.StepReadiness
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.StepReadiness{}, fmt.Errorf("platform: decode ready status: %w", err)
	}
	if s.MLSID == "" {
		s.MLSID = propertyID
	}
	return s, nil
}

// Property fetches the property context for a session.
func (c *Client) Property(ctx context.Context, propertyID string) (domain.Property, error) {
	data, err := c.getJSON(ctx, "/property/"+url.PathEscape(propertyID))
	if err != nil {
		return domain.Property{}, err
	}
	var p domain.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Property{}, fmt.Errorf("platform: decode property: %w", err)
	}
	return p, nil
}

// CMAAnalysis fetches the comparable-market analysis for a property.
func (c *Client) CMAAnalysis(ctx context.Context, propertyID string) (domain.CMAAnalysis, error) {
	data, err := c.getJSON(ctx, "/property/"+url.PathEscape(propertyID)+"/cma-analysis")
	if err != nil {
		return domain.CMAAnalysis{}, err
	}
	var a domain.CMAAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.CMAAnalysis{}, fmt.Errorf("platform: decode cma analysis: %w", err)
	}
	return a, nil
}

type comparableDeleteRequest struct {
	ComparableIDs []string `json:"comparable_ids"`
	Reason        string   `json:"reason"`
}

// DeleteComparables removes comparables from the analysis, with the user's
// justification. The floor-of-three rule is enforced by the caller before
// any network traffic.
func (c *Client) DeleteComparables(ctx context.Context, propertyID string, comparableIDs []string, reason string) error {
	body := comparableDeleteRequest{ComparableIDs: comparableIDs, Reason: reason}
	_, err := c.sendJSON(ctx, http.MethodPut, "/property/"+url.PathEscape(propertyID)+"/comparable-delete", body)
	return err
}

// RecalculatePrice recomputes the suggested price after the comparable set
// changed.
func (c *Client) RecalculatePrice(ctx context.Context, propertyID string) (domain.OfferPrice, error) {
	data, err := c.sendJSON(ctx, http.MethodPost, "/property/"+url.PathEscape(propertyID)+"/price_recalculate", struct{}{})
	if err != nil {
		return domain.OfferPrice{}, err
	}
	var p domain.OfferPrice
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.OfferPrice{}, fmt.Errorf("platform: decode recalculated price: %w", err)
	}
	return p, nil
}

// OfferPrice fetches the current offer price recommendation.
func (c *Client) OfferPrice(ctx context.Context, propertyID string) (domain.OfferPrice, error) {
	data, err := c.getJSON(ctx, "/property/"+url.PathEscape(propertyID)+"/offer/price")
	if err != nil {
		return domain.OfferPrice{}, err
	}
	var p domain.OfferPrice
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.OfferPrice{}, fmt.Errorf("platform: decode offer price: %w", err)
	}
	return p, nil
}

type saveOfferPriceRequest struct {
	Price float64 `json:"price"`
}

// SaveOfferPrice persists a user-adjusted offer price.
func (c *Client) SaveOfferPrice(ctx context.Context, propertyID string, price float64) error {
	_, err := c.sendJSON(ctx, http.MethodPost, "/property/"+url.PathEscape(propertyID)+"/offer/price", saveOfferPriceRequest{Price: price})
	return err
}

// ImagesList fetches the condition-photo metadata for a page.
func (c *Client) ImagesList(ctx context.Context, propertyID string, page domain.Page) ([]domain.ImageMeta, error) {
	data, err := c.getJSON(ctx, "/property/"+url.PathEscape(propertyID)+"/images-list/"+url.PathEscape(string(page)))
	if err != nil {
		return nil, err
	}
	var metas []domain.ImageMeta
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("platform: decode images list: %w", err)
	}
	return metas, nil
}

// DownloadImage streams one condition photo. The caller owns the returned
// body and must close it.
func (c *Client) DownloadImage(ctx context.Context, propertyID, imageID string) (io.ReadCloser, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}
	u := c.baseURL + "/property/" + url.PathEscape(propertyID) + "/images/download/" + url.PathEscape(imageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: download image: %w", err)
	}
	if res.StatusCode == http.StatusUnauthorized {
		_ = res.Body.Close()
		return nil, ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
		return nil, &StatusError{StatusCode: res.StatusCode, URL: u, Body: string(buf)}
	}
	return res.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("platform: marshal request: %w", err)
	}
	return c.doJSON(ctx, method, path, raw)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("platform: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{StatusCode: res.StatusCode, URL: u, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("platform: read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return nil, fmt.Errorf("platform: decode envelope: %w", err)
	}
	switch env.Code {
	case http.StatusOK:
		return env.Data, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
}
