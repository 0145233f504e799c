package main

import (
	"fmt"
	"os"

	"github.com/mousetube/mousetube-go/cmd"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/logging"
)

// version and buildDate are set by the linker at build time:
//
//	go build -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings := conf.Setting()
	if settings == nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration")
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
