package logger

import "strings"

var allowedStatus = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
	"canceled":     "cancelled",
	"denied":       "denied",
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return "INFO"
	case "warning":
		return "WARN"
	default:
		return strings.ToUpper(level)
	}
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := allowedStatus[status]; ok {
		return mapped
	}
	return status
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"state",
	"from_state",
	"to_state",
	"command",
	"cb_action",
	"kind",
	"meme_id",
	"ref",
	"outcome",
	"duration_ms",
	"attempt",
	"attempts",
	"backoff_ms",
	"fallback",
	"participants",
	"required",
	"winner_user_id",
	"reason",
	"count",
	"sent",
	"failed",
	"page",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
}
