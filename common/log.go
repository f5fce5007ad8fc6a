package common

import (
	"github.com/apex/log"
)

// SetLogLevel applies a level name ("debug", "info", "warn", "error",
// "fatal") to the default logger, leaving it unchanged on a bad name.
func SetLogLevel(level string) {
	l, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, keeping default", level)
		return
	}
	log.SetLevel(l)
}
