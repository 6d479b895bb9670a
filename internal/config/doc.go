// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax. Before expansion the loader
// preloads .env-{environment} from the config file's directory, so
// secrets can live beside the config without being committed; variables
// already set in the process environment always win.
package config
