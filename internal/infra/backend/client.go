package backend

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
	"time"

	"clinical-case-service/internal/domain"
)

// Client talks to the remote case, gameplay and economy API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type caseResponse struct {
	CaseID   string                `json:"caseId"`
	CaseData domain.CaseDefinition `json:"caseData"`
}

type challengeResponse struct {
	Challenge domain.DailyChallenge `json:"challenge"`
}

type gameplayResponse struct {
	Gameplay domain.GameplayRecord `json:"gameplay"`
}

type gameplaysResponse struct {
	Gameplays []domain.GameplayRecord `json:"gameplays"`
}

func (c *Client) LoadCase(ctx context.Context, caseID string) (domain.CaseDefinition, error) {
	var resp caseResponse
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(caseID), nil, nil, domain.ErrCaseNotFound, &resp); err != nil {
		return domain.CaseDefinition{}, err
	}
	if resp.CaseData.CaseID == "" {
		resp.CaseData.CaseID = resp.CaseID
	}
	return resp.CaseData, nil
}

func (c *Client) LoadDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error) {
	path := "/daily-challenges/today"
	if date != "" {
		path = "/daily-challenges/" + url.PathEscape(date)
	}
	var resp challengeResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, domain.ErrCaseNotFound, &resp); err != nil {
		return domain.DailyChallenge{}, err
	}
	return resp.Challenge, nil
}

func (c *Client) SubmitGameplay(ctx context.Context, s domain.GameplaySubmission) (domain.GameplayRecord, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return domain.GameplayRecord{}, fmt.Errorf("marshal gameplay: %w", err)
	}
	header := http.Header{}
	if s.IdempotencyKey != "" {
		header.Set("Idempotency-Key", s.IdempotencyKey)
	}
	var resp gameplayResponse
	if err := c.do(ctx, http.MethodPost, "/gameplays", body, header, domain.ErrCaseNotFound, &resp); err != nil {
		return domain.GameplayRecord{}, err
	}
	return resp.Gameplay, nil
}

func (c *Client) FindGameplay(ctx context.Context, userID string, ref domain.CaseRef) (domain.GameplayRecord, bool, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("sourceType", string(ref.Source))
	if ref.Source == domain.SourceDailyChallenge {
		q.Set("dailyChallengeId", ref.ID)
	} else {
		q.Set("caseId", ref.ID)
	}
	var resp gameplaysResponse
	err := c.do(ctx, http.MethodGet, "/gameplays?"+q.Encode(), nil, nil, domain.ErrCaseNotFound, &resp)
	if errors.Is(err, domain.ErrCaseNotFound) {
		return domain.GameplayRecord{}, false, nil
	}
	if err != nil {
		return domain.GameplayRecord{}, false, err
	}
	for _, g := range resp.Gameplays {
		if g.Completed() {
			return g, true, nil
		}
	}
	if len(resp.Gameplays) > 0 {
		return resp.Gameplays[0], true, nil
	}
	return domain.GameplayRecord{}, false, nil
}

func (c *Client) Economy(ctx context.Context, userID string) (domain.Economy, error) {
	var eco domain.Economy
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/economy", nil, nil, domain.ErrUserNotFound, &eco)
	return eco, err
}

func (c *Client) ConsumeHeart(ctx context.Context, userID string) (domain.Economy, error) {
	var eco domain.Economy
	err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/hearts/consume", nil, nil, domain.ErrUserNotFound, &eco)
	return eco, err
}

// do sends one request. A 404 is reported as notFound.
func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header, notFound error, out any) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Retryable(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrAlreadySubmitted
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Retryable(op, fmt.Errorf("backend error: %s - %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return domain.Retryable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
