package audit

import (
	"encoding/json"

	"github.com/safeher/safeher/server/models"
	"go.uber.org/zap"
)

// Entry captures one security-relevant event, including the
// per-contact delivery outcomes of an emergency dispatch.
type Entry struct {
	UserID    uint
	Event     string
	Latitude  float64
	Longitude float64
	Location  string
	Outcomes  interface{}
}

// Recorder appends entries to the security_events table & mirrors
// each one as a structured log line for operational review.
type Recorder struct {
	logg *zap.SugaredLogger
}

func NewRecorder(logg *zap.SugaredLogger) *Recorder {
	return &Recorder{logg: logg}
}

func (r *Recorder) Record(entry Entry) error {
	outcomes, err := json.Marshal(entry.Outcomes)
	if err != nil {
		return err
	}

	r.logg.Infow("security event",
		"user_id", entry.UserID,
		"event", entry.Event,
		"latitude", entry.Latitude,
		"longitude", entry.Longitude,
		"location", entry.Location,
		"outcomes", string(outcomes),
	)

	return models.CreateSecurityEvent(&models.SecurityEvent{
		UserID:    entry.UserID,
		Event:     entry.Event,
		Latitude:  entry.Latitude,
		Longitude: entry.Longitude,
		Location:  entry.Location,
		Outcomes:  string(outcomes),
	})
}
