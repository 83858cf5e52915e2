package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		API
		Refresh
		Schedule
		Tasks
		Session
		Log
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path  string
		Debug bool // Log every SQL statement
	}
	API struct {
		BaseURL string
		Timeout time.Duration
	}
	Refresh struct {
		Workers int           // Refreshes running at once
		Timeout time.Duration // Upper bound of one refresh
	}
	Schedule struct {
		Enabled  bool
		Schedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		TaskTimeout     time.Duration
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Session struct {
		Secret      string // Derives the token encryption key; a key file is generated if empty
		KeyFilePath string
		Token       string // Static bearer token, bypasses the stored session
	}
	Log struct {
		File       string // Empty logs to stderr only
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Level      string // loggo level of the change hub and other loggo users
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_debug", false)

	v.SetDefault("api_base_url", DefaultAPIBaseURL)
	v.SetDefault("api_timeout", "30s")

	// Refresh coordinator defaults
	v.SetDefault("refresh_workers", 4)
	v.SetDefault("refresh_timeout", "1m")
	v.SetDefault("refresh_schedule_enabled", true)
	v.SetDefault("refresh_schedule", "*/15 * * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_timeout", "2m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("session_secret", "")
	v.SetDefault("session_key_file", "")
	v.SetDefault("session_token", "")

	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)
	v.SetDefault("log_level", "INFO")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:  v.GetString("DATABASE_PATH"),
			Debug: v.GetBool("DATABASE_DEBUG"),
		},
		API: API{
			BaseURL: v.GetString("API_BASE_URL"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		Refresh: Refresh{
			Workers: v.GetInt("REFRESH_WORKERS"),
			Timeout: v.GetDuration("REFRESH_TIMEOUT"),
		},
		Schedule: Schedule{
			Enabled:  v.GetBool("REFRESH_SCHEDULE_ENABLED"),
			Schedule: v.GetString("REFRESH_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			TaskTimeout:     v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Session: Session{
			Secret:      v.GetString("SESSION_SECRET"),
			KeyFilePath: v.GetString("SESSION_KEY_FILE"),
			Token:       v.GetString("SESSION_TOKEN"),
		},
		Log: Log{
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
			Level:      v.GetString("LOG_LEVEL"),
		},
	}
}
