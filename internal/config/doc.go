// Package config manages the user configuration file.
//
// The registry lives in the platform config directory
// (~/.config/bjig/config.yaml on Linux and macOS) and stores serial link
// preferences plus client-side metadata for known modules: nicknames,
// sensor types and last-seen timestamps. Writes are atomic.
package config
