package shared

type ServerConfig struct {
	Sqlite  SqliteConfig  `mapstructure:"sqlite" validate:"required"`
	SafeHer SafeHerConfig `mapstructure:"safeher" validate:"required"`
	Twilio  TwilioConfig  `mapstructure:"twilio" validate:"required"`
	Google  GoogleConfig  `mapstructure:"google"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type SafeHerConfig struct {
	JwtSecret        string         `mapstructure:"jwtSecret" validate:"required"`
	TokenTTLSeconds  int            `mapstructure:"tokenTTLSeconds"`
	CryptoKey        string         `mapstructure:"cryptoKey" validate:"required"`
	RequestsPerMin   int            `mapstructure:"requestsPerMin"`
	AuditRetention   int            `mapstructure:"auditRetentionDays"`
	Cron             CronConfig     `mapstructure:"cron" validate:"required"`
	Listener         ListenerConfig `mapstructure:"listener" validate:"required"`
	Geocoder         GeocoderConfig `mapstructure:"geocoder"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid" validate:"required"`
	AuthToken           string `mapstructure:"authToken" validate:"required"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid" validate:"required"`
}

type GeocoderConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}
