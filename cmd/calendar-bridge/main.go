// Package main is the entry point for the Calendar Bridge server.
package main

import (
	"os"

	"github.com/kamekamek/googlecalendar-mcp/cmd/calendar-bridge/app"
	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
