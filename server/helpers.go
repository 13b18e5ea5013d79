package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/safeher/safeher/server/models"
	"github.com/safeher/safeher/utils"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(RequestContextKey("currentUser")).(*models.User)
	return user
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// if whitespace in password return false
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) > 0
	})
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server, logg *zap.SugaredLogger) {
	logg.Infof("SafeHer server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(scheduler *gocron.Scheduler, server *http.Server, logg *zap.SugaredLogger) {
	// Stop background jobs before draining requests
	scheduler.Stop()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("SafeHer server shutdown failed:%+s", err)
	}

	logg.Infof("SafeHer server stopped properly")
}

// configDirectory retrieves the directory for safeher state(db etc.)
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool, logg *zap.SugaredLogger) string {
	// Use 'safeher' folder in home directory for prod
	configFolderName := "safeher"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err, logg)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err, logg)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err, logg)

	return configDir
}

func fatalOnError(err error, logg *zap.SugaredLogger) {
	if err != nil {
		logg.Fatal(err)
	}
}
