// Package client consumes the Kynto API the way the web dashboard does:
// it streams roadmap text progressively, mirrors the server's guest gate
// locally to save a wasted round trip, and resubmits a gated goal once
// after the caller signs in.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kynto-backend/domain/plan"
)

// BusyStatusDelay is how long a request may sit without response headers
// before the consumer surfaces a "retrying" status. Purely cosmetic: the
// real retry loop lives server-side.
const BusyStatusDelay = 2500 * time.Millisecond

const busyStatusMessage = "Kynto is highly active right now. Retrying in a moment..."

// ErrSignUpRequired is returned when the guest credit is spent; the
// attempted goal is stored and resubmitted once after Login.
var ErrSignUpRequired = errors.New("free credit used, sign up for unlimited access")

// ErrRateLimited is returned on a server 429.
var ErrRateLimited = errors.New("service is busy, try again shortly")

// StreamInterruptedError reports a stream that failed mid-read. Partial
// holds everything that had accumulated before the failure.
type StreamInterruptedError struct {
	Partial string
	Err     error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }

// Callbacks receive progressive output during generation. Either field
// may be nil.
type Callbacks struct {
	// OnProgress is invoked with the full accumulated text after every
	// decoded chunk
	OnProgress func(accumulated string)
	// OnStatus is invoked with user-facing status line changes
	OnStatus func(status string)
}

// Client talks to the Kynto API
type Client struct {
	baseURL    string
	httpClient *http.Client
	state      StateStore
	busyDelay  time.Duration
}

// New creates a client for the service at baseURL with the given state
// store
func New(baseURL string, state StateStore) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		state:      state,
		busyDelay:  BusyStatusDelay,
	}
}

// Authenticated reports whether a token is stored
func (c *Client) Authenticated() bool {
	return c.state.Get(keyAuthToken) != ""
}

// Login stores the auth token. If a goal was gated before sign-in it is
// resubmitted exactly once and its text returned; otherwise text is empty.
func (c *Client) Login(ctx context.Context, token string, cb Callbacks) (text string, resubmitted bool, err error) {
	if err := c.state.Set(keyAuthToken, token); err != nil {
		return "", false, err
	}

	pending := c.state.Get(keyPendingGoal)
	if pending == "" {
		return "", false, nil
	}
	if err := c.state.Delete(keyPendingGoal); err != nil {
		return "", false, err
	}

	text, err = c.Generate(ctx, pending, cb)
	return text, true, err
}

// Logout discards the stored token
func (c *Client) Logout() error {
	return c.state.Delete(keyAuthToken)
}

// Generate requests a roadmap for goal, streaming progressive output
// through cb, and returns the complete text.
func (c *Client) Generate(ctx context.Context, goal string, cb Callbacks) (string, error) {
	token := c.state.Get(keyAuthToken)
	guestUsed := token == "" && c.state.Get(keyGuestUsed) == "true"

	// Local mirror of the server gate: skip the round trip entirely when
	// the outcome is already known
	if guestUsed {
		if err := c.state.Set(keyPendingGoal, goal); err != nil {
			return "", err
		}
		return "", ErrSignUpRequired
	}

	body, err := json.Marshal(map[string]interface{}{
		"goal":      goal,
		"guestUsed": guestUsed,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// The busy notice fires only if headers take a while; response
	// arrival cancels it regardless of status
	var busyTimer *time.Timer
	if cb.OnStatus != nil {
		cb.OnStatus("Building your roadmap...")
		busyTimer = time.AfterFunc(c.busyDelay, func() {
			cb.OnStatus(busyStatusMessage)
		})
	}

	resp, err := c.httpClient.Do(req)
	if busyTimer != nil {
		busyTimer.Stop()
	}
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.decodeFailure(resp, goal)
	}

	// Spend the guest credit as soon as the generation starts, so an
	// interrupted read still counts it
	if token == "" {
		if err := c.state.Set(keyGuestUsed, "true"); err != nil {
			return "", err
		}
	}

	if cb.OnStatus != nil {
		cb.OnStatus("Streaming roadmap...")
	}

	var decoder streamDecoder
	var accumulated bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			accumulated.WriteString(decoder.Decode(buf[:n]))
			if cb.OnProgress != nil {
				cb.OnProgress(accumulated.String())
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", &StreamInterruptedError{
				Partial: accumulated.String(),
				Err:     err,
			}
		}
	}
	accumulated.WriteString(decoder.Flush())

	return accumulated.String(), nil
}

// decodeFailure maps non-200 responses to client errors
func (c *Client) decodeFailure(resp *http.Response, goal string) error {
	var payload struct {
		Error        string `json:"error"`
		RequiresAuth bool   `json:"requiresAuth"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusForbidden:
		if payload.RequiresAuth {
			// Remember the goal so Login can resubmit it
			_ = c.state.Set(keyPendingGoal, goal)
			return ErrSignUpRequired
		}
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	if payload.Error != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// ListPlans fetches the caller's saved plans, newest first
func (c *Client) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	req, err := c.newAuthedRequest(ctx, http.MethodGet, "/api/v1/plans")
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeFailure(resp, "")
	}

	var payload struct {
		Plans []*plan.Plan `json:"plans"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Plans, nil
}

// DeletePlan removes one of the caller's saved plans
func (c *Client) DeletePlan(ctx context.Context, id string) error {
	req, err := c.newAuthedRequest(ctx, http.MethodDelete, "/api/v1/plans?id="+id)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeFailure(resp, "")
	}
	return nil
}

func (c *Client) newAuthedRequest(ctx context.Context, method, path string) (*http.Request, error) {
	token := c.state.Get(keyAuthToken)
	if token == "" {
		return nil, errors.New("not signed in")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
