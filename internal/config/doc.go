// Package config loads, normalizes, and validates eventscout configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment overrides such as EVENTSCOUT_PRIMARY_API_KEY. The Config type
// centralizes every knob the daemon and CLI need so model endpoints, the
// event store, and the ingestion schedule are discovered in one pass.
//
// Model credentials are optional at load time; components that need them
// report themselves unavailable instead of failing configuration.
package config
