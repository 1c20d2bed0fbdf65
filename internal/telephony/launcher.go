package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"collections-dialer/internal/dialer"
)

// LauncherConfig selects how numbers are handed to the softphone.
//
// Mode "uri" opens a dial URI (tel:, sip:, callto:) with an OS opener such as
// xdg-open. Mode "log" only logs the number, for headless environments.
type LauncherConfig struct {
	Mode    string
	Scheme  string
	Command string
	Args    []string
}

const (
	ModeURI = "uri"
	ModeLog = "log"
)

var ErrUnsupportedScheme = errors.New("telephony: unsupported dial scheme")

// ExecFunc runs an external command. Replaced in tests.
type ExecFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// URILauncher hands a number to whatever application is registered for the
// dial scheme. It knows nothing about whether the call connects.
type URILauncher struct {
	scheme  string
	command string
	args    []string
	exec    ExecFunc
	log     *slog.Logger
}

func NewURILauncher(cfg LauncherConfig, l *slog.Logger) (*URILauncher, error) {
	scheme := strings.ToLower(strings.TrimSuffix(cfg.Scheme, ":"))
	switch scheme {
	case "":
		scheme = "tel"
	case "tel", "sip", "callto":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, cfg.Scheme)
	}
	if cfg.Command == "" {
		cfg.Command = "xdg-open"
	}
	if l == nil {
		l = slog.Default()
	}
	return &URILauncher{scheme: scheme, command: cfg.Command, args: cfg.Args, exec: runCommand, log: l}, nil
}

// WithExec replaces the command runner.
func (u *URILauncher) WithExec(fn ExecFunc) *URILauncher {
	u.exec = fn
	return u
}

// URI renders the dial URI for a normalized number.
func (u *URILauncher) URI(number string) string {
	return u.scheme + ":" + number
}

func (u *URILauncher) Launch(ctx context.Context, number string) error {
	if number == "" {
		return errors.New("telephony: empty number")
	}
	uri := u.URI(number)
	args := append(append([]string{}, u.args...), uri)
	if err := u.exec(ctx, u.command, args...); err != nil {
		u.log.Warn("softphone launch failed", "uri", uri, "err", err)
		return err
	}
	u.log.Debug("softphone launched", "uri", uri)
	return nil
}

// LogLauncher records the dial request and always succeeds.
type LogLauncher struct {
	log *slog.Logger
}

func NewLogLauncher(l *slog.Logger) *LogLauncher {
	if l == nil {
		l = slog.Default()
	}
	return &LogLauncher{log: l}
}

func (l *LogLauncher) Launch(_ context.Context, number string) error {
	l.log.Info("dial requested", "number", number)
	return nil
}

// NewLauncher builds the launcher named by cfg.Mode.
func NewLauncher(cfg LauncherConfig, l *slog.Logger) (dialer.Launcher, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", ModeURI:
		return NewURILauncher(cfg, l)
	case ModeLog:
		return NewLogLauncher(l), nil
	default:
		return nil, fmt.Errorf("telephony: unknown launcher mode %q", cfg.Mode)
	}
}
