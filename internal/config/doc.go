// Package config loads server settings from defaults, an optional .env file
// and PDFRAG_* environment variables, in increasing order of precedence.
package config
