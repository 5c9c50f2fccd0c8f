package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/mxt/internal/session"
	"github.com/matheus3301/mxt/internal/tui"
	"github.com/matheus3301/mxt/internal/tui/client"
	flag "github.com/spf13/pflag"
)

func main() {
	sessionFlag := flag.StringP("session", "s", "", "session name (overrides config default)")
	noStart := flag.Bool("no-start", false, "do not start the daemon if it is not running")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: mxtui [--session <name>] [uri]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "uri is an optional matrix.to, matrix: or mxt:// link to open.")
		flag.PrintDefaults()
	}
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := session.SocketPath(sessionName)

	// Probe daemon health; auto-start if needed.
	if !client.Probe(socketPath, 2*time.Second) {
		if *noStart {
			fmt.Fprintf(os.Stderr, "daemon not running for session %q\n", sessionName)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		if err := startDaemon(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !client.WaitReady(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, sessionName)
	if uri := flag.Arg(0); uri != "" {
		app.OpenURI(uri)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	mxtd := filepath.Join(filepath.Dir(executable), "mxtd")

	if _, err := os.Stat(mxtd); err != nil {
		mxtd = "mxtd"
	}

	cmd := exec.Command(mxtd, "--session", sessionName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
