// Package cli assembles the cpmig command tree: the migrate, analyze,
// rollback, backups, and batch commands share a viper-loaded configuration
// and a zap logger that this package initializes before any subcommand runs.
package cli
