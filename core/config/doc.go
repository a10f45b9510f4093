// Package config provides configuration management for essync.
//
// It uses Viper to load configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of every
// section, and nested keys map to environment variables with underscores
// (search.bulk_actions is SEARCH_BULK_ACTIONS).
//
// # Configuration Structure
//
//   - Server: HTTP port, API key and body limit
//   - Log: logging level and format
//   - Database: source database driver and location
//   - Storage: MinIO bucket holding policy documents
//   - Search: mirror switch, policy location, timeouts and bulk thresholds
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Search.BulkActions)
package config
