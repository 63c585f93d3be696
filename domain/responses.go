package domain

// InvocationResponse is returned by the pipeline entry point.
type InvocationResponse struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body"`
}

// ErrorBody is the body of a failed InvocationResponse.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ScanSummary is the body of a successful scheduler invocation.
type ScanSummary struct {
	Status         string   `json:"status"`
	ProcessedCount int      `json:"processedCount"`
	CorrelationIDs []string `json:"correlationIds,omitempty"`
}

type ResponseFormat string

const (
	FormatDisclaimer     ResponseFormat = "disclaimer"
	FormatEmail          ResponseFormat = "email"
	FormatPressStatement ResponseFormat = "press-statement"
	FormatSocialMedia    ResponseFormat = "social-media"
)

var ResponseFormats = []ResponseFormat{FormatDisclaimer, FormatEmail, FormatPressStatement, FormatSocialMedia}

func ParseResponseFormat(s string) (ResponseFormat, bool) {
	for _, f := range ResponseFormats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

type ResponseStyle string

const (
	StyleConcise       ResponseStyle = "concise"
	StyleDetailed      ResponseStyle = "detailed"
	StyleCollaborative ResponseStyle = "collaborative"
)

var ResponseStyles = []ResponseStyle{StyleConcise, StyleDetailed, StyleCollaborative}

// GeneratedResponses holds one drafted response per style.
type GeneratedResponses struct {
	ThreatID  string                   `json:"threatId"`
	Format    ResponseFormat           `json:"format"`
	Responses map[ResponseStyle]string `json:"responses"`
}
