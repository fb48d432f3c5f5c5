package auth

import (
	"io"
	"log/slog"
)

// AuditLogger writes an append-only JSON record of every decision taken on a
// verification application. The chat log channel carries the human-facing
// copy of the same events; this stream is the durable machine-readable one.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	logger := slog.New(slog.NewJSONHandler(stream, nil))
	return AuditLogger{logger: logger}
}

func (log *AuditLogger) Decision(guildId, applicationId, vehicleName, submitterId, decision, decidedBy string) {
	log.logger.Info("",
		"event", "decision",
		"guild_id", guildId,
		"application_id", applicationId,
		"vehicle_name", vehicleName,
		"submitter_id", submitterId,
		"decision", decision,
		"decided_by", decidedBy,
	)
}

func (log *AuditLogger) Submission(guildId, applicationId, vehicleName, submitterId, status string) {
	log.logger.Info("",
		"event", "submission",
		"guild_id", guildId,
		"application_id", applicationId,
		"vehicle_name", vehicleName,
		"submitter_id", submitterId,
		"status", status,
	)
}
