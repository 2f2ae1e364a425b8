// Package logging gates progress output behind a process-wide verbosity mode.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
)

type Flag int

const (
	Nil Flag = iota
	Info
	Debug
)

// Mode is read by every package so the verbosity does not have to be
// threaded through each call.
var Mode Flag = Info

var std = log.New(os.Stderr, "", log.LstdFlags)

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Infof logs progress when Mode is Info or higher.
func Infof(format string, args ...interface{}) {
	if Mode >= Info {
		std.Output(2, fmt.Sprintf(format, args...))
	}
}

// Debugf logs detail only useful while tuning parameters.
func Debugf(format string, args ...interface{}) {
	if Mode >= Debug {
		std.Output(2, fmt.Sprintf(format, args...))
	}
}

// Warnf is always logged.
func Warnf(format string, args ...interface{}) {
	std.Output(2, "Warning: "+fmt.Sprintf(format, args...))
}

// MemString returns a string containing statistics on the current memory
// usage of the process.
func MemString() string {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf(
		"Alloc - %d MB; Sys - %d MB Integrated - %d MB",
		ms.Alloc>>20, ms.Sys>>20, ms.TotalAlloc>>20,
	)
}
