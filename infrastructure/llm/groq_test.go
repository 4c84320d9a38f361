package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "kynto-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GroqClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig("test-key")
	config.BaseURL = server.URL
	return NewGroqClient(config, zap.NewNop()), server
}

func writeSSE(t *testing.T, w http.ResponseWriter, fragments []string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	for _, frag := range fragments {
		chunk := chatResponse{Choices: []chatChoice{{Delta: &chatDelta{Content: frag}}}}
		data, err := json.Marshal(chunk)
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestGroqClient_Complete_ReturnsMessageContent(t *testing.T) {
	var captured chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := chatResponse{Choices: []chatChoice{{Message: &chatMessage{Role: "assistant", Content: "# Roadmap"}}}}
		json.NewEncoder(w).Encode(resp)
	})

	text, err := client.Complete(context.Background(), "learn Go")

	require.NoError(t, err)
	assert.Equal(t, "# Roadmap", text)
	assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[1].Content, "learn Go")
}

func TestGroqClient_Complete_NoChoicesFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	})

	text, err := client.Complete(context.Background(), "learn Go")

	require.NoError(t, err)
	assert.Equal(t, "No response generated.", text)
}

func TestGroqClient_Complete_RateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "learn Go")

	assert.True(t, pkgerrors.IsRateLimit(err))
}

func TestGroqClient_Complete_AuthFailureCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), "learn Go")

	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, CodeProviderAuth))
}

func TestGroqClient_Complete_ServerErrorCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), "learn Go")

	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, CodeProvider))
}

func TestGroqClient_Complete_MissingAPIKey(t *testing.T) {
	client := NewGroqClient(Config{}, zap.NewNop())

	_, err := client.Complete(context.Background(), "learn Go")

	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, CodeProviderAuth))
}

func TestGroqClient_Stream_ConcatenationMatchesBatch(t *testing.T) {
	fragments := []string{"# Road", "map\n\n", "🎯 ", "Executive Summary"}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		writeSSE(t, w, fragments)
	})

	stream, err := client.Stream(context.Background(), "learn Go")
	require.NoError(t, err)
	defer stream.Close()

	var got strings.Builder
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got.WriteString(frag)
	}

	assert.Equal(t, strings.Join(fragments, ""), got.String())
}

func TestGroqClient_Stream_SkipsMalformedAndEmptyFrames(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hello\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.Stream(context.Background(), "learn Go")
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hello", frag)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGroqClient_Stream_MidStreamErrorIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"capacity exceeded\"}}\n\n")
	})

	stream, err := client.Stream(context.Background(), "learn Go")
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", frag)

	_, err = stream.Recv()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "capacity exceeded")

	// Terminal: subsequent reads report end of stream
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGroqClient_Stream_BodyEndWithoutDone(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"all of it\"}}]}\n\n")
	})

	stream, err := client.Stream(context.Background(), "learn Go")
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "all of it", frag)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGroqClient_Stream_EstablishmentRateLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Stream(context.Background(), "learn Go")

	assert.True(t, pkgerrors.IsRateLimit(err))
}

func TestBuildMessages_PromptsMentionGoal(t *testing.T) {
	messages := buildMessages("open a bakery in Lisbon")

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "roadmap")
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "open a bakery in Lisbon")

	// The user prompt mandates the roadmap's section structure
	for _, section := range []string{
		"Executive Summary",
		"Key Objectives",
		"Phase 1",
		"Phase 2",
		"Phase 3",
		"Success Metrics",
		"Potential Challenges & Mitigations",
	} {
		assert.Contains(t, messages[1].Content, section)
	}
}
