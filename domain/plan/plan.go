package plan

import (
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "kynto-backend/pkg/errors"

	"github.com/google/uuid"
)

const (
	// MinGoalLength is the minimum trimmed goal length accepted
	MinGoalLength = 5
	// MaxGoalLength bounds the goal to keep prompts within provider limits
	MaxGoalLength = 8000
	// MaxTitleLength is how much of the goal survives as the saved title
	MaxTitleLength = 80
	// MinSaveableContentLength is the plausibility floor below which a
	// generation is not worth persisting
	MinSaveableContentLength = 50
)

// Plan is a saved roadmap owned by a single user.
// A plan is only ever visible to its owner.
type Plan struct {
	ID        string    `json:"id"`
	Owner     string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPlan creates a plan from a successful generation for an owner.
// The title is the goal truncated to MaxTitleLength characters.
func NewPlan(owner, goal, content string) (*Plan, error) {
	if owner == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if content == "" {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}

	// UUIDv7 embeds the creation timestamp so IDs sort chronologically
	id, err := uuid.NewV7()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to generate plan ID").WithCause(err)
	}

	return &Plan{
		ID:        id.String(),
		Owner:     owner,
		Title:     TitleFromGoal(goal),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TitleFromGoal derives a plan title from the raw goal text
func TitleFromGoal(goal string) string {
	title := strings.TrimSpace(goal)
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleLength])
}

// ValidateGoal checks the trimmed goal against the accepted bounds and
// returns the trimmed form
func ValidateGoal(goal string) (string, error) {
	trimmed := strings.TrimSpace(goal)
	if utf8.RuneCountInString(trimmed) < MinGoalLength {
		return "", pkgerrors.NewValidationError("please provide a valid goal (at least 5 characters)")
	}
	if utf8.RuneCountInString(trimmed) > MaxGoalLength {
		return "", pkgerrors.NewValidationError("goal is too long")
	}
	return trimmed, nil
}

// Saveable reports whether generated content is plausible enough to persist
func Saveable(content string) bool {
	return len(content) > MinSaveableContentLength
}
