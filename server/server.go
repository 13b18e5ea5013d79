package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/safeher/safeher/server/audit"
	"github.com/safeher/safeher/server/auth"
	"github.com/safeher/safeher/server/cron"
	"github.com/safeher/safeher/server/crypto"
	"github.com/safeher/safeher/server/dispatch"
	"github.com/safeher/safeher/server/geocoder"
	"github.com/safeher/safeher/server/gstorage"
	"github.com/safeher/safeher/server/logger"
	"github.com/safeher/safeher/server/models"
	"github.com/safeher/safeher/server/twilio"
	"github.com/safeher/safeher/shared"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppEnv carries every dependency the handlers need. It is assembled
// once in Start & passed explicitly - no package-level singletons.
type AppEnv struct {
	config     *shared.ServerConfig
	guard      *Guard
	dispatcher *dispatch.Dispatcher
	encryptor  *crypto.Encryptor
	tokenAuth  *auth.TokenAuthority
	validate   *validator.Validate
	gStorage   *gstorage.GStorage
	logg       *zap.SugaredLogger
}

func Start(config *viper.Viper, devMode bool) {
	logg := logger.NewLogger()

	serverConfig := &shared.ServerConfig{}
	fatalOnError(config.Unmarshal(serverConfig), logg)

	validate := validator.New()
	fatalOnError(RegisterValidators(validate), logg)
	fatalOnError(validate.Struct(serverConfig), logg)

	configDir := configDirectory(devMode, logg)

	var gStorage *gstorage.GStorage
	if enabled, _ := serverConfig.Google.Storage.EnableSqliteBackupAndSync.(bool); enabled {
		var err error
		gStorage, err = gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
		fatalOnError(err, logg)

		restoreSqliteDbIfMissing(gStorage, serverConfig.Google.Storage, configDir, logg)
	}

	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, configDir), logg)

	encryptor, err := crypto.NewEncryptor(serverConfig.SafeHer.CryptoKey)
	fatalOnError(err, logg)

	tokenAuth := auth.NewTokenAuthority(
		serverConfig.SafeHer.JwtSecret,
		time.Duration(serverConfig.SafeHer.TokenTTLSeconds)*time.Second,
	)

	env := &AppEnv{
		config:    serverConfig,
		guard:     NewGuard(tokenAuth),
		encryptor: encryptor,
		tokenAuth: tokenAuth,
		validate:  validate,
		gStorage:  gStorage,
		logg:      logg,
		dispatcher: dispatch.NewDispatcher(
			geocoder.NewClient(time.Duration(serverConfig.SafeHer.Geocoder.TimeoutSeconds)*time.Second),
			twilio.NewClient(serverConfig.Twilio),
			audit.NewRecorder(logg),
			logg,
		),
	}

	scheduler := cron.NewCronScheduler(serverConfig.SafeHer.Cron.TimeZone)
	scheduleJobs(scheduler, env, configDir)
	scheduler.StartAsync()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.SafeHer.Listener.Port),
		Handler: newRouter(env),
	}
	go serve(httpServer, logg)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	cleanup(scheduler, httpServer, logg)
}

func newRouter(env *AppEnv) *mux.Router {
	rateLimiter := newClientRateLimiter(env.config.SafeHer.RequestsPerMin)

	router := mux.NewRouter()
	router.Use(env.loggingMiddleware, rateLimiter.middleware)

	router.HandleFunc("/", env.healthCheckHandler).Methods("GET")
	router.HandleFunc("/register", env.registerHandler).Methods("POST")
	router.HandleFunc("/login", env.logInHandler).Methods("POST")
	router.HandleFunc("/safety-tips", env.safetyTipsHandler).Methods("GET")

	protected := router.NewRoute().Subrouter()
	protected.Use(env.authMiddleware)
	protected.HandleFunc("/validate-token", env.validateTokenHandler).Methods("GET")
	protected.HandleFunc("/contacts", env.listContactsHandler).Methods("GET")
	protected.HandleFunc("/contacts", env.addContactHandler).Methods("POST")
	protected.HandleFunc("/contacts/{id:[0-9]+}", env.deleteContactHandler).Methods("DELETE")
	protected.HandleFunc("/devices", env.listDevicesHandler).Methods("GET")
	protected.HandleFunc("/devices", env.addDeviceHandler).Methods("POST")
	protected.HandleFunc("/emergency", env.emergencyHandler).Methods("POST")

	return router
}

// ---------------------------------------------------------------------------------//
// AppEnv helpers
// --------------------------------------------------------------------------------//

func (env *AppEnv) checkPassword(password, hash string) bool {
	return auth.CheckPasswordHash(password, hash)
}

func (env *AppEnv) respondWithUserAndToken(rw http.ResponseWriter, userID uint, statusCode int) {
	user, err := models.FindUserBy("id", userID)
	if err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to load user"}}, http.StatusInternalServerError)
		return
	}

	token, err := env.tokenAuth.IssueToken(user.ID)
	if err != nil {
		env.logg.Error(err)
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to issue token"}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"token": token, "user": user},
	}, statusCode)
}

func (env *AppEnv) withPlainEmail(contact models.Contact) models.Contact {
	if contact.Email == "" {
		return contact
	}

	plain, err := env.encryptor.Decrypt(contact.Email)
	if err != nil {
		// Legacy rows created before at-rest encryption are plaintext
		if !errors.Is(err, crypto.ErrInvalidCiphertext) {
			env.logg.Warnf("unable to decrypt email for contact %v: %v", contact.ID, err)
		}
		return contact
	}

	contact.Email = plain
	return contact
}
