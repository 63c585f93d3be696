package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/models"
)

// Consumer-side interface
type ThreatResponseStore interface {
	FindThreat(ctx context.Context, id string) (*models.Threat, error)
	InsertThreatResponses(ctx context.Context, responses []models.ThreatResponse) error
}

type formatPrompt struct {
	task         string
	instructions string
}

var formatPrompts = map[domain.ResponseFormat]formatPrompt{
	domain.FormatDisclaimer: {
		task:         "Craft a clear and professional disclaimer",
		instructions: "Use appropriate legal-sounding language while remaining clear.",
	},
	domain.FormatEmail: {
		task:         "Craft a polite and professional email response with appropriate greeting and closing",
		instructions: "Include appropriate email structure with greeting and signature.",
	},
	domain.FormatPressStatement: {
		task:         "Craft a formal press statement with headline, body, and closing statement",
		instructions: "Structure this as a formal press statement with a headline, date, and paragraphs.",
	},
	domain.FormatSocialMedia: {
		task:         "Craft a concise and engaging social media post (ideally under 280 characters when possible)",
		instructions: "Keep it concise and engaging, using appropriate hashtags if relevant.",
	},
}

var stylePrompts = map[domain.ResponseStyle]string{
	domain.StyleConcise: `that:
- Is brief and direct
- States the facts clearly without ambiguity
- Uses a confident, authoritative tone
- Avoids unnecessary details while being accurate`,
	domain.StyleDetailed: `that:
- Provides comprehensive context and background
- Directly addresses and debunks each false claim with evidence
- Cites reliable sources where appropriate
- Maintains a professional, educational tone`,
	domain.StyleCollaborative: `that:
- Acknowledges concerns without being dismissive
- Uses inclusive language (we, us, together)
- Invites dialogue and further engagement
- Provides resources for additional information
- Balances correction with relationship-building`,
}

// threatLevels maps a threat status to the urgency percentage given to the model.
var threatLevels = map[domain.ThreatStatus]int{
	domain.StatusCritical: 90,
	domain.StatusMedium:   60,
	domain.StatusLow:      30,
}

// ResponderService drafts responses to a stored threat in every style.
type ResponderService struct {
	chat  ChatCompleter
	store ThreatResponseStore
	now   func() time.Time
}

func NewResponderService(chat ChatCompleter, store ThreatResponseStore) *ResponderService {
	return &ResponderService{chat: chat, store: store, now: time.Now}
}

type styledResponse struct {
	style    domain.ResponseStyle
	text     string
	degraded bool
}

// Generate drafts one response per style concurrently. A failed style yields
// an error string in the result and is not stored.
func (s *ResponderService) Generate(ctx context.Context, threatID string, format domain.ResponseFormat, reach int) (domain.GeneratedResponses, error) {
	if _, ok := formatPrompts[format]; !ok {
		return domain.GeneratedResponses{}, &domain.ValidationError{Field: "format", Reason: fmt.Sprintf("%q is not supported", format)}
	}

	threat, err := s.store.FindThreat(ctx, threatID)
	if err != nil {
		return domain.GeneratedResponses{}, err
	}
	entry := threat.Entry()
	logger := logging.FromContext(ctx).With("stage", domain.StageResponder, "threat_id", threatID)

	drafts := ProcessUnits(ctx, domain.StageResponder, domain.ResponseStyles,
		func(ctx context.Context, style domain.ResponseStyle) (styledResponse, error) {
			text, err := s.chat.Complete(ctx, domain.ChatRequest{
				Messages: []domain.ChatMessage{
					{Role: "system", Content: responseSystemPrompt(format, style, entry, reach)},
					{Role: "user", Content: fmt.Sprintf("Generate a %s to address this misinformation: %q.", format, entry.Description)},
				},
				Temperature: 0.7,
			})
			if err != nil {
				return styledResponse{}, err
			}
			return styledResponse{style: style, text: text}, nil
		},
		func(style domain.ResponseStyle, err error) styledResponse {
			return styledResponse{style: style, text: "Error generating response: " + err.Error(), degraded: true}
		},
	)

	result := domain.GeneratedResponses{
		ThreatID:  threatID,
		Format:    format,
		Responses: make(map[domain.ResponseStyle]string, len(drafts)),
	}
	now := s.now().UTC()
	var rows []models.ThreatResponse
	for _, d := range drafts {
		result.Responses[d.style] = d.text
		if d.degraded {
			continue
		}
		rows = append(rows, models.ThreatResponse{
			ID:        uuid.NewString(),
			ThreatID:  threatID,
			Type:      string(format) + ":" + string(d.style),
			Response:  d.text,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.store.InsertThreatResponses(ctx, rows); err != nil {
		return result, fmt.Errorf("failed to store responses: %w", err)
	}
	logger.Info("generated responses", "format", format, "stored", len(rows))
	return result, nil
}

func responseSystemPrompt(format domain.ResponseFormat, style domain.ResponseStyle, entry domain.ThreatEntry, reach int) string {
	fp := formatPrompts[format]
	return fmt.Sprintf("You are an expert PR and communications professional. %s %s\n\n%s\n\n"+
		"Consider that this misinformation has a threat level of %d%% and has reached %d users on %s, "+
		"so adjust your tone and urgency accordingly.",
		fp.task, stylePrompts[style], fp.instructions, threatLevels[entry.Status], reach, entry.Source)
}
