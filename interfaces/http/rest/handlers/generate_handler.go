package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"kynto-backend/application/generation"
	"kynto-backend/domain/plan"
	"kynto-backend/infrastructure/llm"
	"kynto-backend/pkg/auth"
	"kynto-backend/pkg/common"
	pkgerrors "kynto-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxGenerateBodyBytes = 64 * 1024

// User-facing messages; raw provider detail stays in the logs
const (
	msgRateLimited    = "Kynto is highly active right now. Please try again in a moment."
	msgGuestGate      = "Free credit used. Please sign up for unlimited access."
	msgGenerateFailed = "Failed to generate roadmap. Please try again."
)

var validate = validator.New()

// GenerateRequest is the generation request body
type GenerateRequest struct {
	Goal      string `json:"goal" validate:"required,max=8000"`
	GuestUsed bool   `json:"guestUsed"`
}

// GenerateResponse is the batch-mode response body
type GenerateResponse struct {
	Plan string `json:"plan"`
}

// GenerateHandler handles roadmap generation requests
type GenerateHandler struct {
	service          *generation.Service
	logger           *zap.Logger
	disableStreaming bool
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(service *generation.Service, logger *zap.Logger, disableStreaming bool) *GenerateHandler {
	return &GenerateHandler{
		service:          service,
		logger:           logger,
		disableStreaming: disableStreaming,
	}
}

// Generate handles POST /generate
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := common.ParseJSONBody(w, r, &req, maxGenerateBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := validate.Struct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Please provide a valid goal (at least 5 characters).")
		return
	}

	goal, err := plan.ValidateGoal(req.Goal)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, pkgerrors.GetAppError(err).Message)
		return
	}

	// Guest gate: the client-side flag saves a round trip, this check is
	// the enforcement boundary. Anonymous callers get one generation.
	user, _ := auth.GetUserFromContext(r.Context())
	if user == nil && req.GuestUsed {
		common.RespondAuthRequired(w, msgGuestGate)
		return
	}

	if h.disableStreaming || r.URL.Query().Get("mode") == "sync" {
		h.generateSync(w, r, user, goal)
		return
	}
	h.generateStreaming(w, r, user, goal)
}

// generateStreaming relays provider fragments as they arrive. The response
// begins with the first fragment; there is no status code left to change
// once streaming has started.
func (h *GenerateHandler) generateStreaming(w http.ResponseWriter, r *http.Request, user *auth.UserContext, goal string) {
	stream, err := h.service.GenerateStream(r.Context(), goal)
	if err != nil {
		h.respondGenerationError(w, goal, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	var accumulated strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Error("Generation stream failed mid-flight",
				zap.String("goal", goal),
				zap.Int("bytesStreamed", accumulated.Len()),
				zap.Error(err),
			)
			// Abort the connection so the client observes a stream error
			// instead of a silently truncated roadmap
			panic(http.ErrAbortHandler)
		}

		accumulated.WriteString(fragment)
		if _, err := io.WriteString(w, fragment); err != nil {
			h.logger.Warn("Client disconnected mid-stream",
				zap.String("goal", goal),
				zap.Error(err),
			)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	if user != nil {
		// Detached from the request context: the response is already
		// complete, so a client disconnect must not cancel the save
		h.service.SaveResult(context.WithoutCancel(r.Context()), user.UserID, goal, accumulated.String())
	}
}

// generateSync waits for the complete text before responding. Used when the
// transport cannot deliver incremental writes.
func (h *GenerateHandler) generateSync(w http.ResponseWriter, r *http.Request, user *auth.UserContext, goal string) {
	text, err := h.service.Generate(r.Context(), goal)
	if err != nil {
		h.respondGenerationError(w, goal, err)
		return
	}

	if user != nil {
		h.service.SaveResult(context.WithoutCancel(r.Context()), user.UserID, goal, text)
	}

	common.RespondJSON(w, http.StatusOK, GenerateResponse{Plan: text})
}

// respondGenerationError maps generation failures to sanitized responses.
// Provider credential problems are a server misconfiguration and must never
// read as a caller auth failure.
func (h *GenerateHandler) respondGenerationError(w http.ResponseWriter, goal string, err error) {
	h.logger.Error("Generation failed",
		zap.String("goal", goal),
		zap.Error(err),
	)
	if pkgerrors.HasCode(err, llm.CodeProviderAuth) {
		h.logger.Error("Provider credentials rejected, check GROQ_API_KEY")
	}

	if pkgerrors.IsRateLimit(err) {
		common.RespondError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}
	common.RespondError(w, http.StatusInternalServerError, msgGenerateFailed)
}
