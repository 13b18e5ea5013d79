package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/safeher/safeher/server/audit"
	"github.com/safeher/safeher/server/auth"
	"github.com/safeher/safeher/server/crypto"
	"github.com/safeher/safeher/server/dispatch"
	"github.com/safeher/safeher/server/models"
	"github.com/safeher/safeher/shared"
)

type stubGeocoder struct {
	location string
	err      error
}

func (s *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return s.location, s.err
}

type stubMessenger struct {
	failFor map[string]bool
	sentTo  []string
}

func (s *stubMessenger) SendMessage(to, msg string) error {
	if s.failFor[to] {
		return fmt.Errorf("gateway rejected %v", to)
	}

	s.sentTo = append(s.sentTo, to)
	return nil
}

type testEnv struct {
	*AppEnv
	router    http.Handler
	messenger *stubMessenger
}

func newTestEnv(t *testing.T) *testEnv {
	models.InitializeTestDb()

	validate := validator.New()
	assert.Nil(t, RegisterValidators(validate))

	key := new(fernet.Key)
	assert.Nil(t, key.Generate())

	encryptor, err := crypto.NewEncryptor(key.Encode())
	assert.Nil(t, err)

	logg := zap.NewNop().Sugar()
	tokenAuth := auth.NewTokenAuthority("test-secret", time.Hour)
	messenger := &stubMessenger{failFor: map[string]bool{}}

	env := &AppEnv{
		config:    &shared.ServerConfig{SafeHer: shared.SafeHerConfig{RequestsPerMin: 10000}},
		guard:     NewGuard(tokenAuth),
		encryptor: encryptor,
		tokenAuth: tokenAuth,
		validate:  validate,
		logg:      logg,
		dispatcher: dispatch.NewDispatcher(
			&stubGeocoder{location: "12 Oxford St, Osu, Accra"},
			messenger,
			audit.NewRecorder(logg),
			logg,
		),
	}

	return &testEnv{AppEnv: env, router: newRouter(env), messenger: messenger}
}

func (te *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, ResponsePayload) {
	var reqBody bytes.Buffer
	if body != nil {
		assert.Nil(t, json.NewEncoder(&reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	te.router.ServeHTTP(recorder, req)

	payload := ResponsePayload{}
	json.NewDecoder(recorder.Body).Decode(&payload)

	return recorder, payload
}

func (te *testEnv) registerUser(t *testing.T, email string) string {
	recorder, payload := te.do(t, "POST", "/register", "", map[string]interface{}{
		"name":     "Efua Mensah",
		"email":    email,
		"phone":    "+15555550100",
		"password": "super-secret",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	data := payload.Data.(map[string]interface{})
	return data["token"].(string)
}

func TestRegisterHandler(t *testing.T) {
	te := newTestEnv(t)

	t.Run("registers a user and returns a usable token", func(t *testing.T) {
		token := te.registerUser(t, "efua@example.com")

		recorder, payload := te.do(t, "GET", "/validate-token", token, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)

		data := payload.Data.(map[string]interface{})
		assert.Equal(t, true, data["valid"])

		user := data["user"].(map[string]interface{})
		assert.Equal(t, "efua@example.com", user["email"], "The token should resolve to the registered user")
		assert.NotContains(t, user, "password")
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/register", "", map[string]interface{}{
			"name":     "Impostor",
			"email":    "efua@example.com",
			"phone":    "+15555550199",
			"password": "other-secret",
		})
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/register", "", map[string]interface{}{
			"name": "No Email",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestLogInHandler(t *testing.T) {
	te := newTestEnv(t)
	te.registerUser(t, "login@example.com")

	t.Run("rejects invalid credentials", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/login", "", map[string]string{
			"email":    "login@example.com",
			"password": "wrong-secret",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("rejects unknown emails", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/login", "", map[string]string{
			"email":    "nobody@example.com",
			"password": "super-secret",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("returns a token and updates last_login", func(t *testing.T) {
		recorder, payload := te.do(t, "POST", "/login", "", map[string]string{
			"email":    "login@example.com",
			"password": "super-secret",
		})
		assert.Equal(t, http.StatusOK, recorder.Code)

		data := payload.Data.(map[string]interface{})
		assert.NotEmpty(t, data["token"])

		user, err := models.FindUserBy("email", "login@example.com")
		assert.Nil(t, err)
		assert.NotNil(t, user.LastLogin)
	})
}

func TestContactHandlers(t *testing.T) {
	te := newTestEnv(t)
	token := te.registerUser(t, "contacts@example.com")

	t.Run("requires a token", func(t *testing.T) {
		recorder, _ := te.do(t, "GET", "/contacts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("adds and lists contacts with plaintext email", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/contacts", token, map[string]interface{}{
			"name":         "Kofi",
			"phone":        "+15555550111",
			"email":        "kofi@example.com",
			"relationship": "brother",
			"is_primary":   true,
		})
		assert.Equal(t, http.StatusCreated, recorder.Code)

		recorder, payload := te.do(t, "GET", "/contacts", token, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)

		contacts := payload.Data.([]interface{})
		assert.Len(t, contacts, 1)

		contact := contacts[0].(map[string]interface{})
		assert.Equal(t, "kofi@example.com", contact["email"], "Stored ciphertext should be decrypted on the way out")
		assert.Equal(t, true, contact["is_primary"])
	})

	t.Run("rejects contacts without name or phone", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/contacts", token, map[string]interface{}{
			"name": "No Phone",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("reports not found for a contact owned by someone else", func(t *testing.T) {
		otherToken := te.registerUser(t, "someone-else@example.com")

		recorder, payload := te.do(t, "GET", "/contacts", token, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		contact := payload.Data.([]interface{})[0].(map[string]interface{})
		contactID := int(contact["id"].(float64))

		recorder, _ = te.do(t, "DELETE", fmt.Sprintf("/contacts/%v", contactID), otherToken, nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)

		recorder, _ = te.do(t, "DELETE", fmt.Sprintf("/contacts/%v", contactID), token, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

func TestEmergencyHandler(t *testing.T) {
	te := newTestEnv(t)
	token := te.registerUser(t, "emergency@example.com")

	for _, body := range []map[string]interface{}{
		{"latitude": 5.56},
		{"longitude": -0.19},
		{},
	} {
		recorder, _ := te.do(t, "POST", "/emergency", token, body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "Missing coordinates should be rejected")
	}

	te.do(t, "POST", "/contacts", token, map[string]interface{}{
		"name": "A", "phone": "+15555550001", "is_primary": true,
	})
	te.do(t, "POST", "/contacts", token, map[string]interface{}{
		"name": "B", "phone": "+15555550002",
	})
	te.do(t, "POST", "/contacts", token, map[string]interface{}{
		"name": "C", "phone": "+15555550003", "is_primary": true,
	})

	t.Run("notifies primary contacts and records the audit trail", func(t *testing.T) {
		recorder, payload := te.do(t, "POST", "/emergency", token, map[string]interface{}{
			"latitude": 5.56, "longitude": -0.19,
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.ElementsMatch(t, []string{"+15555550001", "+15555550003"}, te.messenger.sentTo)

		data := payload.Data.(map[string]interface{})
		assert.Equal(t, "12 Oxford St, Osu, Accra", data["location"])
		assert.NotContains(t, data, "warnings")

		user, err := models.FindUserBy("email", "emergency@example.com")
		assert.Nil(t, err)
		events, err := models.SecurityEventsForUser(user.ID)
		assert.Nil(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, models.EMERGENCY_TRIGGERED_EVENT, events[0].Event)
		assert.Contains(t, events[0].Outcomes, "+15555550001")
	})

	t.Run("a partial delivery failure still reads as success", func(t *testing.T) {
		te.messenger.failFor["+15555550001"] = true
		te.messenger.sentTo = nil

		recorder, payload := te.do(t, "POST", "/emergency", token, map[string]interface{}{
			"latitude": 5.56, "longitude": -0.19,
		})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, []string{"+15555550003"}, te.messenger.sentTo)

		data := payload.Data.(map[string]interface{})
		warnings := data["warnings"].([]interface{})
		assert.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "+15555550001")
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		recorder, _ := te.do(t, "POST", "/emergency", token, map[string]interface{}{
			"latitude": 91.0, "longitude": 0.0,
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestSafetyTipsHandler(t *testing.T) {
	te := newTestEnv(t)

	recorder, payload := te.do(t, "GET", "/safety-tips", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	tips := payload.Data.([]interface{})
	assert.Len(t, tips, 3)
	assert.Equal(t, "Trust your instincts", tips[0].(map[string]interface{})["title"])
}

func TestDeviceHandlers(t *testing.T) {
	te := newTestEnv(t)
	token := te.registerUser(t, "devices@example.com")

	recorder, _ := te.do(t, "POST", "/devices", token, map[string]interface{}{
		"device_id":   "pixel-8-abcd",
		"device_type": "android",
		"os_version":  "14",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	// registering the same device again should update, not duplicate
	recorder, _ = te.do(t, "POST", "/devices", token, map[string]interface{}{
		"device_id":   "pixel-8-abcd",
		"device_type": "android",
		"os_version":  "15",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	recorder, payload := te.do(t, "GET", "/devices", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	devices := payload.Data.([]interface{})
	assert.Len(t, devices, 1)
	assert.Equal(t, "15", devices[0].(map[string]interface{})["os_version"])
}
