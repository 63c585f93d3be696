package domain

import "strings"

const (
	// Stage names, used in logs, metrics and idempotency keys.
	StageScheduler = "scheduler"
	StageDiscovery = "discovery"
	StageScraper   = "reddit-scraper"
	StageNews      = "news"
	StageClaims    = "claims"
	StageFactCheck = "fact-checker"
	StageWriter    = "writer"
	StageResponder = "responder"

	// Message attribute names attached to every publish.
	AttrUserID        = "userId"
	AttrCorrelationID = "correlationId"

	// Scan statuses kept in the scan table.
	ScanPending   = "PENDING"
	ScanCompleted = "COMPLETED"

	MaxDiscoveryTargets     = 10
	MaxClaimInputLength     = 4000
	FallbackDescriptionLen  = 100
	FallbackDescriptionHead = "Misinformation: "
	NoExplanationProvided   = "No explanation provided"
	UnknownRating           = "Unknown"
)

func normalizeUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
