package telephony

import (
	"context"
	"errors"
	"testing"
)

func TestURILauncher_BuildsURIAndRunsOpener(t *testing.T) {
	var gotName string
	var gotArgs []string
	l, err := NewURILauncher(LauncherConfig{Scheme: "SIP:", Command: "open", Args: []string{"-g"}}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	l.WithExec(func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	})

	if err := l.Launch(context.Background(), "0821234567"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotName != "open" || len(gotArgs) != 2 || gotArgs[0] != "-g" || gotArgs[1] != "sip:0821234567" {
		t.Fatalf("unexpected command: %s %v", gotName, gotArgs)
	}
}

func TestURILauncher_Defaults(t *testing.T) {
	l, err := NewURILauncher(LauncherConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.URI("0821234567") != "tel:0821234567" || l.command != "xdg-open" {
		t.Fatalf("unexpected defaults: %s %s", l.URI("0821234567"), l.command)
	}
}

func TestURILauncher_PropagatesFailure(t *testing.T) {
	boom := errors.New("no handler")
	l, _ := NewURILauncher(LauncherConfig{}, nil)
	l.WithExec(func(context.Context, string, ...string) error { return boom })
	if err := l.Launch(context.Background(), "0821234567"); !errors.Is(err, boom) {
		t.Fatalf("expected launch error, got %v", err)
	}
	if err := l.Launch(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty number")
	}
}

func TestNewLauncher_Modes(t *testing.T) {
	if _, err := NewURILauncher(LauncherConfig{Scheme: "http"}, nil); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	l, err := NewLauncher(LauncherConfig{Mode: ModeLog}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := l.Launch(context.Background(), "0821234567"); err != nil {
		t.Fatalf("log launcher must not fail: %v", err)
	}
	if _, err := NewLauncher(LauncherConfig{Mode: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}
