package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/mxt/internal/daemon"
	"github.com/matheus3301/mxt/internal/session"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.StringP("session", "s", "", "session name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.mxt/config.toml)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error")
	socketFlag := flag.String("socket", "", "socket path (default ~/.mxt/sessions/<name>/daemon.sock)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			SocketPath:  *socketFlag,
			ConfigPath:  *configFlag,
			LogLevel:    *logLevel,
		}),
	)

	app.Run()
}
