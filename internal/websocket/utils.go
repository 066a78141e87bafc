package websocket

import (
	"net/http"
	"regexp"
	"slices"

	"github.com/google/uuid"

	"codeberg.org/anonchat/server/internal/logger"
)

// builds the upgrader origin check. outside production every origin is
// accepted; in production the Origin header must be listed in allowedOrigins
func NewOriginChecker(environment string, allowedOrigins []string) func(r *http.Request) bool {
	production := environment == "production"

	return func(r *http.Request) bool {
		if !production {
			return true
		}

		origin := r.Header.Get("Origin")

		if origin == "" {
			logger.Warn("websocket connection with no origin header")
			return false
		}

		if len(allowedOrigins) == 0 {
			logger.Warn("websocket origin rejected - ALLOWED_ORIGINS not configured",
				"origin", origin,
			)
			return false
		}

		if slices.Contains(allowedOrigins, origin) {
			return true
		}

		logger.Warn("websocket origin rejected - not in allowed origins",
			"origin", origin,
			"allowed_origins", allowedOrigins,
		)

		return false
	}
}

func GenerateClientID() string {
	return uuid.NewString()
}

var sensitivePattern = regexp.MustCompile(`(?i)(goroutine \d+|\.go:\d+|panic:)`)

// strips stack-trace like details before they reach a client
func sanitizeErrorString(details string) string {
	if details == "" {
		return ""
	}

	if sensitivePattern.MatchString(details) {
		return "internal error"
	}

	const maxDetails = 200
	if runes := []rune(details); len(runes) > maxDetails {
		return string(runes[:maxDetails])
	}

	return details
}
