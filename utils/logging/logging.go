package logging

import (
	"log/slog"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// SUBMISSION PIPELINE (APP*)
	APP_VALIDATE LogCode = "APP_VALIDATE"
	APP_CONSENT  LogCode = "APP_CONSENT"
	APP_SUBMIT   LogCode = "APP_SUBMIT"
	APP_ADVISORY LogCode = "APP_ADVISORY"

	// DECISION HANDLERS (DECISION*)
	DECISION_APPLY    LogCode = "DECISION_APPLY"
	DECISION_CONFLICT LogCode = "DECISION_CONFLICT"
	DECISION_CLEANUP  LogCode = "DECISION_CLEANUP"

	// CHAT PLATFORM (CHAT*)
	CHAT_DELIVERY LogCode = "CHAT_DELIVERY"
)

// VictoriaLogs has fixed field name for time (_time) and message(_msg). This function maps fields msg -> _msg and time -> _time.
func convertKeysToVictoriaLogs(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func GetVictoriaLogsOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysToVictoriaLogs,
		AddSource:   addSource,
	}
}
