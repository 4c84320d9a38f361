package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kynto-backend/application/generation"
	"kynto-backend/application/ports"
	"kynto-backend/domain/plan"
	"kynto-backend/infrastructure/persistence/memory"
	"kynto-backend/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-for-hs256"

var roadmapText = "## 🎯 Executive Summary\n" + strings.Repeat("Take it one phase at a time. ", 4)

type fixedCompletions struct{}

func (fixedCompletions) Complete(ctx context.Context, goal string) (string, error) {
	return roadmapText, nil
}

func (fixedCompletions) Stream(ctx context.Context, goal string) (ports.CompletionStream, error) {
	return &fixedStream{}, nil
}

type fixedStream struct{ sent bool }

func (s *fixedStream) Recv() (string, error) {
	if s.sent {
		return "", io.EOF
	}
	s.sent = true
	return roadmapText, nil
}

func (s *fixedStream) Close() error { return nil }

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *auth.JWTGenerator) {
	t.Helper()

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
	})
	require.NoError(t, err)

	generator, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SecretKey:  testSecret,
		ExpiryTime: time.Hour,
	})
	require.NoError(t, err)

	svc := generation.NewService(fixedCompletions{}, memory.NewPlanRepository(), generation.DefaultRetryPolicy(), zap.NewNop())
	router := NewRouter(svc, validator, zap.NewNop(), opts)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server, generator
}

func TestRouter_HealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_GuestGenerateStreams(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	resp, err := http.Post(server.URL+"/api/v1/generate", "application/json",
		strings.NewReader(`{"goal":"learn the cello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, roadmapText, string(body))
}

func TestRouter_PlansRequireAuth(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	resp, err := http.Get(server.URL + "/api/v1/plans")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_GenerateListDeleteFlow(t *testing.T) {
	server, generator := newTestServer(t, Options{DisableStreaming: true})

	token, err := generator.GenerateToken("user123", "user@example.com")
	require.NoError(t, err)

	authed := func(method, path string, body io.Reader) *http.Request {
		req, err := http.NewRequest(method, server.URL+path, body)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	// Generate in batch mode; the result is saved for the caller
	resp, err := http.DefaultClient.Do(authed(http.MethodPost, "/api/v1/generate", strings.NewReader(`{"goal":"learn the cello"}`)))
	require.NoError(t, err)
	var generated struct {
		Plan string `json:"plan"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&generated))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, roadmapText, generated.Plan)

	// The saved plan shows up in the list
	resp, err = http.DefaultClient.Do(authed(http.MethodGet, "/api/v1/plans", nil))
	require.NoError(t, err)
	var listed struct {
		Plans []*plan.Plan `json:"plans"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed.Plans, 1)
	assert.Equal(t, "learn the cello", listed.Plans[0].Title)
	assert.Equal(t, roadmapText, listed.Plans[0].Content)

	// Delete it and the list is empty again
	resp, err = http.DefaultClient.Do(authed(http.MethodDelete, "/api/v1/plans?id="+listed.Plans[0].ID, nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.DefaultClient.Do(authed(http.MethodGet, "/api/v1/plans", nil))
	require.NoError(t, err)
	listed.Plans = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Empty(t, listed.Plans)
}

func TestRouter_GuestGateEnforced(t *testing.T) {
	server, _ := newTestServer(t, Options{})

	resp, err := http.Post(server.URL+"/api/v1/generate", "application/json",
		strings.NewReader(`{"goal":"learn the cello","guestUsed":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var payload struct {
		RequiresAuth bool `json:"requiresAuth"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.RequiresAuth)
}

func TestRouter_RateLimitApplies(t *testing.T) {
	server, _ := newTestServer(t, Options{RatePerMinute: 2})

	var statuses []int
	for i := 0; i < 3; i++ {
		resp, err := http.Post(server.URL+"/api/v1/generate", "application/json",
			strings.NewReader(`{"goal":"learn the cello"}`))
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}
