// Package ui provides terminal UI components for the bjig CLI.
//
// This package uses Lipgloss and the Bubbles progress bar to render polished
// terminal output for commands. The components follow a "run once and exit"
// pattern - they render output compellingly but don't require user
// interaction, except for the confirmation prompt.
//
// # Components
//
//   - Header: Command banner showing operation name and parameters
//   - Transfer: Live progress bar for firmware transfers, redrawn in place
//   - Result: Success/failure boxes with styled information
//   - ConfirmDangerousOperation: Typed confirmation prompt for firmware updates
//
// # Logging Integration
//
// This package expects logging to be controlled via the BJIG_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly. Set BJIG_LOG_LEVEL to
// "debug", "info", "warn", or "error" to enable logging output.
package ui
