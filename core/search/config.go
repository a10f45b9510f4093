package search

import "time"

// Config holds configuration for the search mirror.
type Config struct {
	// Enabled installs the mirror on every source database.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// ConfigDir holds one policy document per database under "<database>/"
	// when object storage is disabled.
	ConfigDir string `mapstructure:"config_dir" default:"./databases"`
	// ConfigFile is the policy document file name.
	ConfigFile string `mapstructure:"config_file" default:"elastic-search-config.json"`
	// Username and Password authenticate against the cluster when set.
	Username string `mapstructure:"username" default:""`
	Password string `mapstructure:"password" default:""`
	// RequestTimeoutSeconds bounds every request to the cluster.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" default:"30"`
	// BulkActions is the action threshold of batch runs.
	BulkActions int `mapstructure:"bulk_actions" default:"10000"`
	// BulkSizeMB is the payload threshold of batch runs.
	BulkSizeMB int `mapstructure:"bulk_size_mb" default:"10"`
	// FlushIntervalSeconds is the time threshold of batch runs.
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds" default:"30"`
}

// ElasticConfig returns the connection settings shared by every database.
// Address and cluster name come from each database's policy document.
func (c Config) ElasticConfig() ElasticConfig {
	return ElasticConfig{
		Username:       c.Username,
		Password:       c.Password,
		RequestTimeout: time.Duration(c.RequestTimeoutSeconds) * time.Second,
	}
}

// BulkConfig returns the batch thresholds, falling back to the defaults for
// unset values.
func (c Config) BulkConfig() BulkConfig {
	cfg := DefaultBulkConfig()
	if c.BulkActions > 0 {
		cfg.Actions = c.BulkActions
	}
	if c.BulkSizeMB > 0 {
		cfg.SizeBytes = c.BulkSizeMB << 20
	}
	if c.FlushIntervalSeconds > 0 {
		cfg.FlushInterval = time.Duration(c.FlushIntervalSeconds) * time.Second
	}
	return cfg
}
