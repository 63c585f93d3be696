package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID is opaque. Upstream producers send it either as a JSON string or a
// JSON number; both decode to the same textual form.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("userId must be a string or a number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

func (u UserID) String() string {
	return string(u)
}

// Keywords accepts either a JSON array of strings or a single comma separated
// string.
type Keywords []string

func (k *Keywords) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = SplitKeywords(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("keywords must be a string or an array of strings: %w", err)
	}
	*k = list
	return nil
}

// SplitKeywords splits a comma separated keyword string, dropping blanks.
func SplitKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Envelope is the message passed between pipeline stages.
type Envelope struct {
	UserID        UserID   `json:"userId"`
	Keywords      Keywords `json:"keywords"`
	Persona       string   `json:"persona"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Payload       Payload  `json:"payload"`
}

// Payload accumulates stage contributions. Stages only ever set their own
// fields; nothing written upstream is removed within one traversal.
type Payload struct {
	Subreddits        []string            `json:"subreddits,omitempty"`
	Results           []SubredditResult   `json:"results,omitempty"`
	GeneratedKeywords []string            `json:"generatedKeywords,omitempty"`
	Articles          []Article           `json:"articles,omitempty"`
	Claims            []Claim             `json:"claims,omitempty"`
	FactChecks        []ClaimVerification `json:"factChecks,omitempty"`
	Threats           []ThreatEntry       `json:"threats,omitempty"`
}

// ParseEnvelope decodes and validates an inbound message body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, &ValidationError{Field: "body", Reason: err.Error()}
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.UserID.String()) == "" {
		return &ValidationError{Field: "userId", Reason: "is required"}
	}
	return nil
}

// WithCorrelationID returns the envelope with a correlation id, generating one
// only when absent. An existing id is never replaced.
func (e Envelope) WithCorrelationID() Envelope {
	if e.CorrelationID == "" {
		e.CorrelationID = NewCorrelationID()
	}
	return e
}

// NewCorrelationID returns a fresh id for one pipeline traversal.
func NewCorrelationID() string {
	return "corr-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

// AllKeywords returns the user keywords followed by the persona, if any.
func (e Envelope) AllKeywords() []string {
	out := make([]string, 0, len(e.Keywords)+1)
	out = append(out, e.Keywords...)
	if p := strings.TrimSpace(e.Persona); p != "" {
		out = append(out, p)
	}
	return out
}
