// Package logging wires stdlib log to a rotating file sink.
package logging

import (
	"fmt"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink is the log-sink interface: a destination for human-readable
// operational messages and for exceptions that should stand out in the
// log stream.
type Sink interface {
	Write(message string)
	WriteException(err error)
}

// Setup configures the stdlib logger to write to logfile with rotation.
// An empty logfile keeps the default stderr writer; a library-shaped
// core should not abort the caller's process over an unset log file.
func Setup(logfile string, maxSizeMB, maxBackups, maxAgeDays int) {
	log.SetFlags(log.Lshortfile | log.Ltime)
	if logfile == "" {
		return
	}
	if maxSizeMB == 0 {
		maxSizeMB = 20
	}
	if maxBackups == 0 {
		maxBackups = 3
	}
	if maxAgeDays == 0 {
		maxAgeDays = 14
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	})
}

// SetupCLI configures logging for CLI commands: no timestamps by
// default, file/line info when verbose.
func SetupCLI(verbose bool) {
	if verbose {
		log.SetFlags(log.Lshortfile | log.Ltime)
	} else {
		log.SetFlags(0)
	}
}

// StdSink is the default Sink, writing through the stdlib logger that
// Setup configured.
type StdSink struct {
	Zone string
}

func (s StdSink) Write(message string) {
	if s.Zone != "" {
		log.Printf("[%s] %s", s.Zone, message)
		return
	}
	log.Print(message)
}

func (s StdSink) WriteException(err error) {
	if s.Zone != "" {
		log.Printf("[%s] ERROR: %v", s.Zone, err)
		return
	}
	log.Printf("ERROR: %v", err)
}

// Writef is a convenience wrapper so callers don't need fmt.Sprintf at
// every call site.
func Writef(s Sink, format string, args ...interface{}) {
	s.Write(fmt.Sprintf(format, args...))
}
