// Package config loads and validates the TOML configuration that drives
// loom's store, orchestrator, and logging.
//
// Load resolves the config file (explicit path or the default under
// ~/.config/loom), decodes it over Default values, expands paths, and
// validates the result. Callers receive a fully-normalized Config; no other
// package performs path expansion or defaulting.
package config
