package dispatch

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/safeher/safeher/server/audit"
	"github.com/safeher/safeher/server/models"
	"go.uber.org/zap"
)

// UnknownLocation stands in for the resolved address when the
// geocoder is unavailable. The map link still carries the raw
// coordinates, so the alert stays actionable.
const UnknownLocation = "Unknown location"

const mapLinkTemplate = "https://www.google.com/maps/search/?api=1&query=%v,%v"

var ErrInvalidCoordinates = errors.New("latitude must be within [-90,90] and longitude within [-180,180]")

type Status string

const (
	COMPLETED_DISPATCH        Status = "completed"
	PARTIALLY_FAILED_DISPATCH Status = "partially_failed"
	FAILED_DISPATCH           Status = "failed"
)

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

type Messenger interface {
	SendMessage(to, msg string) error
}

type Recorder interface {
	Record(entry audit.Entry) error
}

// ContactOutcome is the delivery result for a single primary contact.
type ContactOutcome struct {
	ContactID uint   `json:"contact_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

type Result struct {
	Status   Status           `json:"status"`
	Location string           `json:"location"`
	Outcomes []ContactOutcome `json:"outcomes"`
}

// Warnings surfaces degraded outcomes that the coarse success
// response would otherwise hide.
func (r *Result) Warnings() []string {
	warnings := []string{}

	if len(r.Outcomes) == 0 {
		warnings = append(warnings, "no primary contacts on file, nobody was notified")
	}

	for _, outcome := range r.Outcomes {
		if !outcome.Sent {
			warnings = append(warnings, fmt.Sprintf("unable to reach %v (%v)", outcome.Name, outcome.Phone))
		}
	}

	return warnings
}

// Dispatcher runs an emergency request through
// validate -> geocode -> compose -> fan out -> audit.
type Dispatcher struct {
	geocoder  Geocoder
	messenger Messenger
	recorder  Recorder
	logg      *zap.SugaredLogger
}

func NewDispatcher(geocoder Geocoder, messenger Messenger, recorder Recorder, logg *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		geocoder:  geocoder,
		messenger: messenger,
		recorder:  recorder,
		logg:      logg,
	}
}

// DispatchAlert notifies every primary contact of the user's location.
// Geocoder & per-send failures are degraded, never raised - the only
// error returns are invalid coordinates and unexpected store failures.
func (d *Dispatcher) DispatchAlert(ctx context.Context, user *models.User, lat, lng float64) (*Result, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}

	location, err := d.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		d.logg.Warnf("unable to resolve location for (%v, %v): %v", lat, lng, err)
		location = UnknownLocation
	}

	message := alertMessage(user.Name, location, lat, lng)

	contacts, err := user.PrimaryContacts()
	if err != nil {
		return nil, errors.Wrap(err, "loading primary contacts")
	}

	// Each contact is attempted exactly once. A failed send never
	// short-circuits the remaining contacts.
	outcomes := make([]ContactOutcome, 0, len(contacts))
	for _, contact := range contacts {
		outcome := ContactOutcome{ContactID: contact.ID, Name: contact.Name, Phone: contact.Phone, Sent: true}

		if err := d.messenger.SendMessage(contact.Phone, message); err != nil {
			d.logg.Errorf("failed to send alert to %v: %v", contact.Phone, err)
			outcome.Sent = false
			outcome.Error = err.Error()
		}

		outcomes = append(outcomes, outcome)
	}

	result := &Result{
		Status:   classify(outcomes),
		Location: location,
		Outcomes: outcomes,
	}

	// The audit record is written once, after aggregation. Losing it
	// is logged but does not undo an alert that already went out.
	err = d.recorder.Record(audit.Entry{
		UserID:    user.ID,
		Event:     models.EMERGENCY_TRIGGERED_EVENT,
		Latitude:  lat,
		Longitude: lng,
		Location:  location,
		Outcomes:  outcomes,
	})
	if err != nil {
		d.logg.Errorf("failed to record emergency audit entry for user %v: %v", user.ID, err)
	}

	return result, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func alertMessage(name, location string, lat, lng float64) string {
	mapLink := fmt.Sprintf(mapLinkTemplate, lat, lng)
	return fmt.Sprintf("EMERGENCY ALERT! %v needs help at: %v. Map: %v", name, location, mapLink)
}

func classify(outcomes []ContactOutcome) Status {
	sent := 0
	for _, outcome := range outcomes {
		if outcome.Sent {
			sent++
		}
	}

	switch {
	case sent == len(outcomes):
		// zero contacts also lands here - dispatching to nobody
		// still counts as a completed run
		return COMPLETED_DISPATCH
	case sent > 0:
		return PARTIALLY_FAILED_DISPATCH
	default:
		return FAILED_DISPATCH
	}
}
