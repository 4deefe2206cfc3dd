// Package logging provides structured logging built on zap.
//
// Logging is silent by default so CLI output stays clean for scripting.
// Set BJIG_LOG_LEVEL (debug, info, warn, error) to enable diagnostics;
// frame-level hex dumps of serial traffic are emitted at debug level.
package logging
