//go:build !windows
// +build !windows

package logging

import (
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Package logging wires zerolog up for the server and funnels the standard
// library's log output (from libraries that use it) into the same stream.

// stdlogPrefix matches the date/time prefix the stdlib logger prepends.
var stdlogPrefix = regexp.MustCompile(`^\d{4}\/\d{1,2}\/\d{1,2} \d{1,2}\:\d{1,2}\:\d{1,2} `)

func InitLogging(reqdebug bool, reqsyslog bool, reqstructlog bool) zerolog.Logger {
	var level zerolog.Level
	if reqdebug {
		level = zerolog.DebugLevel
	} else {
		level = zerolog.InfoLevel
	}

	var mainWriter io.Writer
	if reqstructlog {
		mainWriter = os.Stderr
		zerolog.TimeFieldFormat = time.RFC1123Z
	} else {
		mainWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC1123Z}
	}

	if reqsyslog {
		if sysWriter, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "ldapsdk"); err == nil {
			mainWriter = zerolog.MultiLevelWriter(mainWriter, zerolog.SyslogLevelWriter(sysWriter))
		}
	}

	logr := zerolog.New(mainWriter).Level(level).With().Timestamp().Logger()

	log.SetOutput(stdlogWriter{logr: logr, structlog: reqstructlog})

	return logr
}

// RewireLogging points the stdlib logger at a replacement zerolog instance.
func RewireLogging(logr zerolog.Logger, reqstructlog bool) {
	log.SetOutput(stdlogWriter{logr: logr, structlog: reqstructlog})
}

// stdlogWriter strips the stdlib log prefix and re-emits the message at
// info level.
type stdlogWriter struct {
	logr      zerolog.Logger
	structlog bool
}

func (e stdlogWriter) Write(p []byte) (int, error) {
	prefix := stdlogPrefix.FindAllString(string(p), 1)
	var msg string
	for _, element := range prefix {
		msg = strings.TrimSpace(string(p[len(element):]))
	}
	if msg == "" {
		msg = strings.TrimSpace(string(p))
	}
	if e.structlog {
		fmt.Fprintf(os.Stderr, "{\"level\":\"info\",\"time\":\"%s\",\"message\":\"%s\"}\n", time.Now().Format(time.RFC1123Z), strings.Replace(strings.TrimSpace(msg), `"`, `\"`, -1))
	} else {
		e.logr.Info().Msg(msg)
	}
	return len(p), nil
}
