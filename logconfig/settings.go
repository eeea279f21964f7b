package logconfig

import (
	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in tests and local development (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production: JSON lines with timestamps,
// level selected by name ("debug", "info", "warn", "error").
func ConfigProductionLogger(level string) {
	myLogger.SetReportCaller(false)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})

	parsed, err := myLogger.ParseLevel(level)
	if err != nil {
		parsed = myLogger.InfoLevel
	}
	myLogger.SetLevel(parsed)
}
