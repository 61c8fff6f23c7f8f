// Package utils provides the configuration and logging plumbing shared by
// every cpmig command: a Viper-backed configuration loader with embedded
// defaults and environment overrides, and a zap logger factory.
package utils
