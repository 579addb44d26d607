// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It covers the server transports, sandbox
// execution limits, language profile overrides, blob storage, the listing
// metadata store and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Default timeout: %s\n", cfg.DefaultTimeout())
package config
