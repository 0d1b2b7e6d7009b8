package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBlocked marks a command refused by the safety check.
var ErrBlocked = errors.New("blocked")

// DefaultBlockedCommands are substrings that make a command unsafe to run.
var DefaultBlockedCommands = []string{
	"format", "del /s", "rd /s", "rmdir /s", "rm -rf", "shutdown", "restart",
	"taskkill /f /im explorer", "taskkill /f /im csrss", "taskkill /f /im winlogon", "taskkill /f /im svchost",
	"reg delete", "reg add", "bcdedit", "diskpart", "cipher /w", "sfc", "dism",
	"net user", "net localgroup", "icacls", "takeown",
	"powershell -encodedcommand", "powershell -e ", "invoke-expression", "set-executionpolicy",
	"disable-computerrestore", "clear-recyclebin", "stop-computer", "restart-computer",
	"mkfs", "dd if=", "reboot", "poweroff", "halt", "init 0", "kill -9 1", "chmod -r 777 /",
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`del\s+/[sfq]`),
	regexp.MustCompile(`rmdir\s+/[sq]`),
	regexp.MustCompile(`format\s+[a-z]:`),
	regexp.MustCompile(`>\s*\\\\`),
	regexp.MustCompile(`net\s+share`),
	regexp.MustCompile(`wmic\s+os\s+delete`),
	regexp.MustCompile(`powershell.*-enc`),
	regexp.MustCompile(`cmd.*/c.*del\s`),
	regexp.MustCompile(`rm\s+-[a-z]*r[a-z]*f?\s+/`),
	regexp.MustCompile(`:\(\)\s*\{`),
}

// criticalProcesses must never be closed.
var criticalProcesses = []string{
	"explorer", "csrss", "winlogon", "svchost", "dwm", "system", "smss", "lsass",
	"init", "systemd", "launchd", "kernel_task", "loginwindow", "windowserver", "sshd", "xorg",
}

// Guard checks commands against a blocked list and known destructive
// patterns.
type Guard struct {
	blocked []string
}

func NewGuard(blocked []string) *Guard {
	if len(blocked) == 0 {
		blocked = DefaultBlockedCommands
	}
	lowered := make([]string, 0, len(blocked))
	for _, b := range blocked {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			lowered = append(lowered, b)
		}
	}
	return &Guard{blocked: lowered}
}

// Check returns an error wrapping ErrBlocked when command is unsafe.
func (g *Guard) Check(command string) error {
	lower := strings.ToLower(strings.TrimSpace(command))
	for _, b := range g.blocked {
		if strings.Contains(lower, b) {
			return fmt.Errorf("%w: command contains a restricted operation: '%s'", ErrBlocked, command)
		}
	}
	for _, p := range dangerousPatterns {
		if p.MatchString(lower) {
			return fmt.Errorf("%w: command matches a destructive pattern: '%s'", ErrBlocked, command)
		}
	}
	return nil
}

// IsCritical reports whether closing the named process is refused.
func IsCritical(name string) bool {
	n := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
	for _, c := range criticalProcesses {
		if n == c {
			return true
		}
	}
	return false
}
