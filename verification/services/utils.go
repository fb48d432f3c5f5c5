package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"throttle_platform/verification/schema"

	"gorm.io/gorm"
)

var (
	ErrAlreadyDecided        = errors.New("this application was already decided")
	ErrNoOpenApplication     = errors.New("no matching open application")
	ErrVerificationBanned    = errors.New("user is banned from vehicle verification")
	ErrDuplicateVehicle      = errors.New("a vehicle with this name is already verified or pending review")
	ErrUnsupportedAttachment = errors.New("attachment must be an image (png, jpeg, gif, webp) or a video")
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// Variables carries the tunables shared across the verification services.
type Variables struct {
	// ConsentTimeout bounds how long a consent prompt waits for the requester.
	ConsentTimeout time.Duration

	// MaxAttachmentBytes caps the size of submission attachments.
	MaxAttachmentBytes int64

	// MinTurnaroundSamples is the smallest trailing window of resolved
	// applications from which an ETA is computed; below it the default
	// estimate is reported.
	MinTurnaroundSamples int

	// AutoDecisionConfidence is the advisor confidence at or above which a
	// submission is decided without manual review.
	AutoDecisionConfidence int

	// DefaultTurnaround is the estimate reported when too few resolved
	// applications exist in the scope.
	DefaultTurnaround string
}

func DefaultVariables() Variables {
	return Variables{
		ConsentTimeout:         60 * time.Second,
		MaxAttachmentBytes:     25 * 1024 * 1024,
		MinTurnaroundSamples:   20,
		AutoDecisionConfidence: 90,
		DefaultTurnaround:      "24-48 hours",
	}
}

func checkOpenDuplicate(db *gorm.DB, guildId, userId, vehicleName string) error {
	var duplicate schema.VerificationApplication
	result := db.Limit(1).Find(&duplicate,
		"guild_id = ? AND user_id = ? AND LOWER(vehicle_name) = LOWER(?) AND status = ?",
		guildId, userId, vehicleName, schema.StatusOpen)
	if result.Error != nil {
		slog.Error("sql error checking for duplicate application", "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected != 0 {
		return CodedError(fmt.Errorf("%w: an application for '%v' is already open", ErrDuplicateVehicle, vehicleName), http.StatusConflict)
	}
	return nil
}

func checkCatalogDuplicate(db *gorm.DB, guildId, userId, vehicleName string) error {
	_, err := schema.GetCatalogEntry(guildId, userId, vehicleName, db)
	if err == nil {
		return CodedError(fmt.Errorf("%w: '%v' is already in your verified garage", ErrDuplicateVehicle, vehicleName), http.StatusConflict)
	}
	if !errors.Is(err, schema.ErrCatalogEntryNotFound) {
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}
