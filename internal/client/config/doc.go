// Package config loads runtime configuration for the marinelog CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file given with -c/--config.
//  3. MARINELOG_* environment variables, e.g. MARINELOG_SERVER_URL.
//  4. Command-line flags (see (*Config).AddFlags).
//
// File keys use underscores:
//
//	{
//	  "server_url": "https://marinelog.example.com",
//	  "online_check_interval": "3s",
//	  "language": "es"
//	}
package config
