// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with "[component] ". The
// returned func resolves Logf at call time, so SetLogger still applies.
func Prefixed(component string) func(format string, v ...interface{}) {
	prefix := "[" + component + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}

// Timed logs how long an operation took once the returned func is called:
//
//	defer monitoring.Timed("smooth %s", key)()
func Timed(format string, v ...interface{}) func() {
	start := time.Now()
	return func() {
		Logf(format+" took %s", append(v, time.Since(start).Round(time.Microsecond))...)
	}
}
