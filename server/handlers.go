package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/safeher/safeher/server/dispatch"
	"github.com/safeher/safeher/server/models"
	"gorm.io/gorm"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type SafetyTip struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

var safetyTips = []SafetyTip{
	{ID: 1, Title: "Trust your instincts", Content: "Leave if it feels unsafe."},
	{ID: 2, Title: "Use Fake Call", Content: "Exit awkward situations easily."},
	{ID: 3, Title: "Stay Connected", Content: "Keep your emergency contacts updated."},
}

func (env *AppEnv) healthCheckHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: "SafeHer API is running"})
}

// ---------------------------------------------------------------------------------//
// Auth handlers
// --------------------------------------------------------------------------------//

func (env *AppEnv) registerHandler(rw http.ResponseWriter, r *http.Request) {
	data := models.User{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := env.validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	err = models.CreateUser(&data)
	if errors.Is(err, models.ErrDuplicateEmail) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusConflict)
		return
	}

	if err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to create user"}}, http.StatusInternalServerError)
		return
	}

	env.respondWithUserAndToken(rw, data.ID, http.StatusCreated)
}

func (env *AppEnv) logInHandler(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to log in"}}, http.StatusInternalServerError)
		return
	}

	if !env.checkPassword(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to log in"}}, http.StatusInternalServerError)
		return
	}

	if err := user.TouchLastLogin(); err != nil {
		env.logg.Warnf("unable to update last_login for user %v: %v", user.ID, err)
	}

	env.respondWithUserAndToken(rw, user.ID, http.StatusOK)
}

func (env *AppEnv) validateTokenHandler(rw http.ResponseWriter, r *http.Request) {
	// authMiddleware already resolved & verified the user
	writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"valid": true, "user": currentUser(r)},
	}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Contact handlers
// --------------------------------------------------------------------------------//

func (env *AppEnv) listContactsHandler(rw http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if err := user.LoadContacts(); err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to list contacts"}}, http.StatusInternalServerError)
		return
	}

	contacts := make([]models.Contact, len(user.Contacts))
	for i, contact := range user.Contacts {
		contacts[i] = env.withPlainEmail(contact)
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contacts}, http.StatusOK)
}

func (env *AppEnv) addContactHandler(rw http.ResponseWriter, r *http.Request) {
	data := models.Contact{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := env.validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	plainEmail := data.Email
	if data.Email != "" {
		// contact emails are stored encrypted at rest
		encrypted, err := env.encryptor.Encrypt(data.Email)
		if err != nil {
			env.logg.Error(err)
			writeResponse(rw, ResponsePayload{Errors: []string{"unable to add contact"}}, http.StatusInternalServerError)
			return
		}
		data.Email = encrypted
	}

	if err := currentUser(r).AddContact(&data); err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to add contact"}}, http.StatusInternalServerError)
		return
	}

	data.Email = plainEmail
	writeResponse(rw, ResponsePayload{Success: true, Data: data}, http.StatusCreated)
}

func (env *AppEnv) deleteContactHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := currentUser(r).DeleteContact(vars["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to delete contact"}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: "contact deleted successfully"}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Device handlers
// --------------------------------------------------------------------------------//

func (env *AppEnv) listDevicesHandler(rw http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if err := user.LoadDevices(); err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to list devices"}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user.Devices}, http.StatusOK)
}

func (env *AppEnv) addDeviceHandler(rw http.ResponseWriter, r *http.Request) {
	data := models.Device{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := env.validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if err := currentUser(r).AddDevice(&data); err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to register device"}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: data}, http.StatusCreated)
}

// ---------------------------------------------------------------------------------//
// Emergency handler
// --------------------------------------------------------------------------------//

func (env *AppEnv) emergencyHandler(rw http.ResponseWriter, r *http.Request) {
	data := struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if data.Latitude == nil || data.Longitude == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"latitude and longitude are required"}}, http.StatusBadRequest)
		return
	}

	result, err := env.dispatcher.DispatchAlert(r.Context(), currentUser(r), *data.Latitude, *data.Longitude)
	if errors.Is(err, dispatch.ErrInvalidCoordinates) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err != nil {
		env.logg.Errorf("error sending emergency alert: %v", err)
		writeResponse(rw, ResponsePayload{Errors: []string{"failed to send emergency alert"}}, http.StatusInternalServerError)
		return
	}

	// Partial & even total delivery failure still reads as success
	// here - the longstanding app contract. The warnings field &
	// audit trail carry the real outcome.
	responseData := map[string]interface{}{
		"message":  "Emergency alert sent to contacts successfully.",
		"location": result.Location,
	}
	if warnings := result.Warnings(); len(warnings) > 0 {
		responseData["warnings"] = warnings
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: responseData}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Safety tips handler
// --------------------------------------------------------------------------------//

func (env *AppEnv) safetyTipsHandler(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: safetyTips}, http.StatusOK)
}
