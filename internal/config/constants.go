package config

// Default paths
const (
	// DefaultDatabasePath is the default path of the local cache database
	DefaultDatabasePath = "./vetsync.db"

	// DefaultAPIBaseURL is the remote records API
	DefaultAPIBaseURL = "http://localhost:8080/api"
)
