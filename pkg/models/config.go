package models

// Config is the root configuration persisted under the application
// config directory as YAML.
type Config struct {
	Store     Store     `yaml:"store"`
	Cleaning  Cleaning  `yaml:"cleaning"`
	Rules     Rules     `yaml:"rules"`
	Warehouse Warehouse `yaml:"warehouse"`
	Logging   Logging   `yaml:"logging"`
}

// Store locates the local SQLite database that keeps the raw snapshot
// and the cleaned table of the most recent run.
type Store struct {
	Path string `yaml:"path"`
}

// Cleaning holds pipeline behavior switches.
type Cleaning struct {
	OnMalformedDate string `yaml:"on_malformed_date"` // "abort" or "null"
}

// Rules locates the cleaning rules file and, optionally, the shared git
// repository it is synced from.
type Rules struct {
	Path   string `yaml:"path"`
	GitURL string `yaml:"git_url"`
	Branch string `yaml:"branch"`
}

// Warehouse holds the Snowflake target for published cleaned datasets.
// The password is never stored here; it lives in the OS keychain.
type Warehouse struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Table     string `yaml:"table"`
}

// Logging controls the shared structured logger.
type Logging struct {
	Level string `yaml:"level"`
}
