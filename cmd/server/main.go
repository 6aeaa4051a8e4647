package main

import (
	"github.com/quillkb/quill/backend/internal/server"
	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
