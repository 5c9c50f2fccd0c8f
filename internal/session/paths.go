package session

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/matheus3301/mxt/internal/lock"
)

// HomeEnv overrides the base directory, mainly for tests and portable installs.
const HomeEnv = "MXT_HOME"

// BaseDir returns ~/.mxt, or $MXT_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mxt")
}

// SessionsDir returns the directory holding one subdirectory per session.
func SessionsDir() string {
	return filepath.Join(BaseDir(), "sessions")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(SessionsDir(), name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), lock.FileName)
}

// AppDBPath returns the read-model database path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "mxt.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "mxtd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// Info describes a session found on disk.
type Info struct {
	Name          string
	Path          string
	DaemonRunning bool
}

// List returns every session directory with a valid name, sorted by name.
// A missing sessions directory yields an empty list.
func List() ([]Info, error) {
	entries, err := os.ReadDir(SessionsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		dir := Dir(e.Name())
		out = append(out, Info{
			Name:          e.Name(),
			Path:          dir,
			DaemonRunning: lock.Probe(dir),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
