package models

import (
	"time"

	"verishield-pipeline/domain"
)

// User is an account whose keywords and persona seed a scan.
type User struct {
	ID        string          `gorm:"primaryKey;type:text"`
	FirstName string          `gorm:"column:first_name;type:text"`
	LastName  string          `gorm:"column:last_name;type:text"`
	Email     string          `gorm:"type:text;uniqueIndex"`
	Keywords  domain.Keywords `gorm:"type:jsonb;serializer:json"`
	Persona   string          `gorm:"type:text"`
	CanScan   bool            `gorm:"column:can_scan;default:false"`
	CreatedAt time.Time       `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "user"
}

// Threat is a persisted threat entry owned by a user.
type Threat struct {
	ID                     string    `gorm:"primaryKey;type:uuid"`
	UserID                 string    `gorm:"column:user_id;type:text;not null;index"`
	CorrelationID          string    `gorm:"column:correlation_id;type:text;index"`
	Description            string    `gorm:"type:text;not null"`
	SourceURL              string    `gorm:"column:source_url;type:text;not null"`
	Source                 string    `gorm:"type:text;not null"`
	Status                 string    `gorm:"type:text;not null"`
	FactCheckerURL         string    `gorm:"column:fact_checker_url;type:text"`
	FactCheckerExplanation string    `gorm:"column:fact_checker_explanation;type:text"`
	CreatedAt              time.Time `gorm:"type:timestamp with time zone"`

	Media []ThreatMedia `gorm:"foreignKey:ThreatID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (Threat) TableName() string {
	return "threats"
}

// NewThreat converts a threat entry into its row.
func NewThreat(id string, userID domain.UserID, correlationID string, entry domain.ThreatEntry) Threat {
	return Threat{
		ID:                     id,
		UserID:                 userID.String(),
		CorrelationID:          correlationID,
		Description:            entry.Description,
		SourceURL:              entry.SourceURL,
		Source:                 entry.Source,
		Status:                 string(entry.Status),
		FactCheckerURL:         entry.FactCheckerURL,
		FactCheckerExplanation: entry.FactCheckerExplanation,
	}
}

// Entry converts the row back into a threat entry.
func (t Threat) Entry() domain.ThreatEntry {
	status, ok := domain.ParseThreatStatus(t.Status)
	if !ok {
		status = domain.StatusMedium
	}
	return domain.ThreatEntry{
		Description:            t.Description,
		SourceURL:              t.SourceURL,
		Source:                 t.Source,
		Status:                 status,
		FactCheckerURL:         t.FactCheckerURL,
		FactCheckerExplanation: t.FactCheckerExplanation,
	}
}

// ThreatMedia is an image archived from a threat's source page.
type ThreatMedia struct {
	ID         string    `gorm:"primaryKey;type:uuid"`
	ThreatID   string    `gorm:"column:threat_id;type:uuid;not null;index"`
	MediaURL   string    `gorm:"column:media_url;type:text;not null"`
	IsDeepFake bool      `gorm:"column:is_deep_fake;not null;default:false"`
	CreatedAt  time.Time `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name
func (ThreatMedia) TableName() string {
	return "threat_media"
}

// ThreatResponse is a drafted response to a threat. Type is "<format>:<style>".
type ThreatResponse struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	ThreatID  string    `gorm:"column:threat_id;type:uuid;not null;index"`
	Type      string    `gorm:"type:text;not null"`
	Response  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamp with time zone"`
	UpdatedAt time.Time `gorm:"column:updatedAt;type:timestamp with time zone"`
}

// TableName overrides the table name
func (ThreatResponse) TableName() string {
	return "threat_response"
}
