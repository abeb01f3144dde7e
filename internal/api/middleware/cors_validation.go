package middleware

import "log/slog"

// WarnWildcardCORS logs a warning for every wildcard entry in the allowed origins.
// Called once at startup.
func WarnWildcardCORS(origins []string, log *slog.Logger) int {
	if log == nil {
		log = slog.Default()
	}
	n := 0
	for _, origin := range origins {
		if origin == "*" || origin == ".*" {
			log.Warn("CORS wildcard detected",
				"origin", origin,
				"risk", "Allows any origin to read environment topology",
				"recommendation", "Use specific origins for production",
			)
			n++
		}
	}
	return n
}
