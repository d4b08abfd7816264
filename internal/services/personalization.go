package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mentora-app/mentora-backend/internal/data/repos"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// PersonalizationService renders a user's profile into a short natural
// language briefing for the assistant, and flags messages that ask about the
// user's own identity so unauthenticated callers can be nudged to sign in
// before a turn is spent.
type PersonalizationService interface {
	Resolve(dbc dbctx.Context, userID *uuid.UUID) string
	DetectsPersonalQuery(text string) bool
}

const anonymousContext = "The user is not signed in. You do not know anything about them personally; " +
	"do not assume any personal details."

var personalQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy\s+(interests?|preferences?|profile|topics?|name|notes?)\b`),
	regexp.MustCompile(`(?i)\bwho\s+am\s+i\b`),
	regexp.MustCompile(`(?i)\bdo\s+you\s+know\s+(me|my|who\s+i\s+am)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+do\s+you\s+know\s+about\s+me\b`),
	regexp.MustCompile(`(?i)\babout\s+me\b`),
	regexp.MustCompile(`(?i)\bremember\s+me\b`),
}

type personalizationService struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewPersonalizationService(baseLog *logger.Logger, userRepo repos.UserRepo) PersonalizationService {
	return &personalizationService{
		log:   baseLog.With("service", "PersonalizationService"),
		users: userRepo,
	}
}

func (s *personalizationService) Resolve(dbc dbctx.Context, userID *uuid.UUID) string {
	if userID == nil || *userID == uuid.Nil {
		return anonymousContext
	}
	u, err := s.users.GetByID(dbc, *userID)
	if err != nil {
		// Profile problems never block a turn; degrade to the anonymous
		// rendering and leave a trace for reconciliation.
		s.log.Warn("profile unavailable, degrading personalization", "user_id", *userID, "error", err)
		return anonymousContext
	}
	return renderContext(u)
}

// renderContext concatenates independently optional clauses. Every clause is
// a complete sentence, so omitting empty fields leaves no dangling
// punctuation.
func renderContext(u *types.User) string {
	var parts []string

	if name := strings.TrimSpace(u.DisplayName); name != "" {
		parts = append(parts, fmt.Sprintf("The user's name is %s.", name))
	}
	level := strings.TrimSpace(u.ExpertiseLevel)
	if level == "" {
		level = "unspecified"
	}
	parts = append(parts, fmt.Sprintf("Their expertise level is %s.", level))

	if interests := decodeStringList(u.Interests); len(interests) > 0 {
		parts = append(parts, fmt.Sprintf("They are interested in: %s.", strings.Join(interests, ", ")))
	}
	if topics := decodeStringList(u.PreferredTopics); len(topics) > 0 {
		parts = append(parts, fmt.Sprintf("They prefer discussing: %s.", strings.Join(topics, ", ")))
	}
	if u.LastLoginAt != nil && !u.LastLoginAt.IsZero() {
		parts = append(parts, fmt.Sprintf("Their last login was %s.", u.LastLoginAt.Format("January 2, 2006")))
	}
	if notes := strings.TrimSpace(u.Notes); notes != "" {
		parts = append(parts, fmt.Sprintf("Additional notes about the user: %s", notes))
	}

	return strings.Join(parts, " ")
}

func (s *personalizationService) DetectsPersonalQuery(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, re := range personalQueryPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
