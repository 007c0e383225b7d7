package config

const (
	defaultConfigPath = "~/.config/eventscout/config.toml"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProtocolChat     = "chat"
	ProtocolMessages = "messages"

	defaultDataDir          = "~/.local/share/eventscout"
	defaultLogDir           = "~/.local/share/eventscout/logs"
	defaultAPIBind          = "127.0.0.1:7488"
	defaultEnvFile          = ".env"
	defaultSQLiteName       = "events.db"
	defaultChatBaseURL      = "https://api.openai.com/v1"
	defaultMessagesBaseURL  = "https://api.anthropic.com/v1"
	defaultChatModel        = "gpt-4o-mini"
	defaultMessagesModel    = "claude-3-5-haiku-latest"
	defaultPrimaryTimeout   = 120
	defaultPrimaryMaxTokens = 4096
	defaultVerifyTimeout    = 60
	defaultVerifyMaxTokens  = 512
	defaultVerifyAttempts   = 3
	defaultVerifyBackoffMS  = 1000
	defaultVerifyWorkers    = 1
	defaultVerifyCacheTTL   = 360
	defaultCity             = "杭州"
	defaultWindowWeeks      = 4
	defaultRunAt            = "03:00"
	defaultTimezone         = "Asia/Shanghai"
	defaultNtfyTimeout      = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
			EnvFile: defaultEnvFile,
		},
		Database: Database{
			Driver:       DriverSQLite,
			MaxOpenConns: 4,
		},
		Primary: Primary{
			Protocol:       ProtocolChat,
			TimeoutSeconds: defaultPrimaryTimeout,
			MaxTokens:      defaultPrimaryMaxTokens,
			Temperature:    0.2,
		},
		Verification: Verification{
			Protocol:        ProtocolChat,
			TimeoutSeconds:  defaultVerifyTimeout,
			MaxTokens:       defaultVerifyMaxTokens,
			MaxAttempts:     defaultVerifyAttempts,
			BackoffMS:       defaultVerifyBackoffMS,
			Workers:         defaultVerifyWorkers,
			CacheTTLMinutes: defaultVerifyCacheTTL,
		},
		Ingest: Ingest{
			DefaultCity:      defaultCity,
			WindowWeeks:      defaultWindowWeeks,
			RunAt:            defaultRunAt,
			Timezone:         defaultTimezone,
			SchedulerEnabled: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
