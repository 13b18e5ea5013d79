package server

import (
	"errors"
	"path"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/safeher/safeher/server/gstorage"
	"github.com/safeher/safeher/server/models"
	"github.com/safeher/safeher/shared"
	"github.com/safeher/safeher/utils"
	"go.uber.org/zap"
)

const (
	DEFAULT_AUDIT_RETENTION_DAYS = 90
	AUDIT_PURGE_SCHEDULE         = "0 3 * * *"
)

func scheduleJobs(scheduler *gocron.Scheduler, env *AppEnv, configDir string) {
	scheduler.Cron(AUDIT_PURGE_SCHEDULE).Tag("purge_security_events").Do(func() {
		env.purgeOldSecurityEvents()
	})

	storageConfig := env.config.Google.Storage
	if enabled, _ := storageConfig.EnableSqliteBackupAndSync.(bool); enabled && env.gStorage != nil {
		scheduler.Cron(storageConfig.SqliteBackupSchedule).Tag("backup_sqlite_db").Do(func() {
			env.backupSqliteDb(configDir)
		})
	}
}

// purgeOldSecurityEvents enforces the audit retention horizon. The
// security_events table is append-only everywhere else.
func (env *AppEnv) purgeOldSecurityEvents() {
	retentionDays := env.config.SafeHer.AuditRetention
	if retentionDays <= 0 {
		retentionDays = DEFAULT_AUDIT_RETENTION_DAYS
	}

	horizon := time.Now().AddDate(0, 0, -retentionDays)
	purged, err := models.PurgeSecurityEventsBefore(horizon)
	if err != nil {
		env.logg.Errorf("error purging security events: %v", err)
		return
	}

	if purged > 0 {
		env.logg.Infof("%v security event(s) purged", purged)
	}
}

func (env *AppEnv) backupSqliteDb(configDir string) {
	dbFilePath, err := models.DbFilePath(configDir)
	if err != nil {
		env.logg.Errorf("error locating sqlite db for backup: %v", err)
		return
	}

	storageConfig := env.config.Google.Storage
	err = env.gStorage.UploadFile(storageConfig.Bucket, storageConfig.Prefix, dbFilePath)
	if err != nil {
		env.logg.Errorf("error backing up sqlite db: %v", err)
		return
	}

	env.logg.Info("sqlite db backed up")
}

// restoreSqliteDbIfMissing pulls the last uploaded backup on a fresh
// host. An existing local db always wins.
func restoreSqliteDbIfMissing(gStorage *gstorage.GStorage, storageConfig shared.StorageConfig, configDir string, logg *zap.SugaredLogger) {
	dbFilePath, err := models.DbFilePath(configDir)
	if err != nil {
		logg.Errorf("error locating sqlite db for restore: %v", err)
		return
	}

	if utils.FileExist(dbFilePath) {
		return
	}

	object := path.Join(storageConfig.Prefix, filepath.Base(dbFilePath))
	err = gStorage.DownloadFile(storageConfig.Bucket, object, dbFilePath)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		logg.Infof("no sqlite backup found in bucket %v", storageConfig.Bucket)
		return
	}

	if err != nil {
		logg.Errorf("error restoring sqlite db from backup: %v", err)
		return
	}

	logg.Info("sqlite db restored from backup")
}
