// Package config loads the paydash configuration.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PAYDASH_<SECTION>_<KEY>:
//
//	PAYDASH_SERVER_PORT=8080
//	PAYDASH_SOURCE_SPREADSHEET_ID=1dWv4kVugXNFQ2NaodZkawaXRglqRJOWR
//	PAYDASH_SOURCE_ORDER=sheets,csv_export,demo
//	PAYDASH_SOURCE_CACHE_TTL=120s
//	PAYDASH_REFRESH_INTERVAL=60s
//	PAYDASH_LOGGING_LEVEL=debug
//
// PAYDASH_CONFIG names the YAML file explicitly. Without it the loader looks
// for paydash.yaml, config.yaml and configs/config.yaml.
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Sources that talk to
// a spreadsheet need a spreadsheet id, and the file source needs a path.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests can start from config.Default(), which needs no environment.
package config
