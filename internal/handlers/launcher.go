package handlers

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Launcher opens and closes desktop applications.
type Launcher interface {
	Open(ctx context.Context, app string) error
	Close(ctx context.Context, app string) error
}

type appTarget struct {
	windows, darwin, linux string
}

var appTargets = map[string]appTarget{
	"chrome":             {"chrome.exe", "Google Chrome", "google-chrome"},
	"google chrome":      {"chrome.exe", "Google Chrome", "google-chrome"},
	"firefox":            {"firefox.exe", "Firefox", "firefox"},
	"edge":               {"msedge.exe", "Microsoft Edge", "microsoft-edge"},
	"notepad":            {"notepad.exe", "TextEdit", "gedit"},
	"calculator":         {"calc.exe", "Calculator", "gnome-calculator"},
	"calc":               {"calc.exe", "Calculator", "gnome-calculator"},
	"explorer":           {"explorer.exe", "Finder", "nautilus"},
	"file explorer":      {"explorer.exe", "Finder", "nautilus"},
	"files":              {"explorer.exe", "Finder", "nautilus"},
	"terminal":           {"wt.exe", "Terminal", "gnome-terminal"},
	"vscode":             {"code", "Visual Studio Code", "code"},
	"vs code":            {"code", "Visual Studio Code", "code"},
	"visual studio code": {"code", "Visual Studio Code", "code"},
	"spotify":            {"spotify.exe", "Spotify", "spotify"},
	"discord":            {"discord.exe", "Discord", "discord"},
	"slack":              {"slack.exe", "Slack", "slack"},
	"settings":           {"ms-settings:", "System Settings", "gnome-control-center"},
}

// resolveApp maps a spoken application name to the platform executable.
// Unknown names are returned unchanged with known=false.
func resolveApp(goos, app string) (target string, known bool) {
	t, ok := appTargets[strings.ToLower(strings.TrimSpace(app))]
	if !ok {
		return strings.TrimSpace(app), false
	}
	switch goos {
	case "windows":
		return t.windows, true
	case "darwin":
		return t.darwin, true
	default:
		return t.linux, true
	}
}

// OpenCommand returns the argv used to launch app on goos.
func OpenCommand(goos, app string) []string {
	target, _ := resolveApp(goos, app)
	switch goos {
	case "windows":
		return []string{"cmd", "/c", "start", "", target}
	case "darwin":
		return []string{"open", "-a", target}
	default:
		return []string{target}
	}
}

// CloseCommand returns the argv used to stop app on goos.
func CloseCommand(goos, app string) []string {
	target, _ := resolveApp(goos, app)
	switch goos {
	case "windows":
		if !strings.HasSuffix(target, ".exe") {
			target += ".exe"
		}
		return []string{"taskkill", "/im", target}
	case "darwin":
		return []string{"pkill", "-x", target}
	default:
		return []string{"pkill", "-x", target}
	}
}

// ExecLauncher runs platform commands after the guard accepts them.
type ExecLauncher struct {
	guard *Guard
	goos  string
}

func NewExecLauncher(guard *Guard) *ExecLauncher {
	return &ExecLauncher{guard: guard, goos: runtime.GOOS}
}

func (l *ExecLauncher) Open(ctx context.Context, app string) error {
	argv := OpenCommand(l.goos, app)
	if err := l.guard.Check(strings.Join(argv, " ")); err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

func (l *ExecLauncher) Close(ctx context.Context, app string) error {
	argv := CloseCommand(l.goos, app)
	if err := l.guard.Check(strings.Join(argv, " ")); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
