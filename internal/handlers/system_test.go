package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	snap  HostSnapshot
	disk  DiskUsage
	procs []ProcessUsage
	addrs []string
	err   error
}

func (p *fakeProbe) Snapshot(context.Context) (HostSnapshot, error) { return p.snap, p.err }
func (p *fakeProbe) Disk(_ context.Context, path string) (DiskUsage, error) {
	d := p.disk
	d.Path = path
	return d, p.err
}
func (p *fakeProbe) TopProcesses(_ context.Context, n int) ([]ProcessUsage, error) {
	if len(p.procs) > n {
		return p.procs[:n], p.err
	}
	return p.procs, p.err
}
func (p *fakeProbe) Addresses(context.Context) ([]string, error) { return p.addrs, p.err }

type fakeLauncher struct {
	guard  *Guard
	opened []string
	closed []string
	fail   error
}

func (l *fakeLauncher) Open(_ context.Context, app string) error {
	if err := l.guard.Check(strings.Join(OpenCommand(runtime.GOOS, app), " ")); err != nil {
		return err
	}
	l.opened = append(l.opened, app)
	return l.fail
}

func (l *fakeLauncher) Close(_ context.Context, app string) error {
	l.closed = append(l.closed, app)
	return l.fail
}

func newSystemHandler(p *fakeProbe, l *fakeLauncher) (*SystemHandler, *echoResponder) {
	if l.guard == nil {
		l.guard = NewGuard(nil)
	}
	brain := &echoResponder{}
	return NewSystemHandler(brain, SystemOptions{Probe: p, Launcher: l}), brain
}

func TestSystemInfo(t *testing.T) {
	p := &fakeProbe{
		snap: HostSnapshot{OS: "linux", Platform: "ubuntu 24.04", Hostname: "box", Arch: "x86_64",
			CPUs: 8, CPUPercent: 12.5, MemUsed: 4 << 30, MemTotal: 16 << 30, MemPercent: 25},
		disk: DiskUsage{Used: 100 << 30, Total: 500 << 30, Percent: 20},
	}
	h, _ := newSystemHandler(p, &fakeLauncher{})

	out, err := h.Handle(context.Background(), "system info please", "")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OS: linux (ubuntu 24.04) x86_64\nHost: box\nCPU: 8 cores, 12.5%% used\nRAM: 4.0 GiB / 16 GiB (25.0%%)\nDisk (%s): 100 GiB / 500 GiB (20.0%%)", rootPath()), out)

	out, _ = h.Handle(context.Background(), "how much disk space is left", "")
	assert.Equal(t, fmt.Sprintf("Disk (%s): 100 GiB / 500 GiB (20.0%%)", rootPath()), out)
}

func TestSystemIPAndProcesses(t *testing.T) {
	p := &fakeProbe{
		addrs: []string{"192.168.1.5"},
		procs: []ProcessUsage{{Name: "go", CPUPercent: 90, MemPercent: 3.2}, {Name: "chrome", CPUPercent: 10, MemPercent: 20}},
	}
	h, _ := newSystemHandler(p, &fakeLauncher{})
	ctx := context.Background()

	out, _ := h.Handle(ctx, "what's my ip address", "")
	assert.Equal(t, "Your local IP address is: 192.168.1.5", out)

	p.addrs = append(p.addrs, "10.0.0.2")
	out, _ = h.Handle(ctx, "what's my ip address", "")
	assert.Equal(t, "Your local IP addresses are: 192.168.1.5, 10.0.0.2", out)

	p.addrs = nil
	out, _ = h.Handle(ctx, "my ip", "")
	assert.Equal(t, "Could not determine IP address.", out)

	out, _ = h.Handle(ctx, "show top process list", "")
	assert.Equal(t, "Top 5 processes by CPU:\n  • go: CPU 90.0%, RAM 3.2%\n  • chrome: CPU 10.0%, RAM 20.0%", out)
}

func TestSystemOpenAndClose(t *testing.T) {
	l := &fakeLauncher{}
	h, _ := newSystemHandler(&fakeProbe{}, l)
	ctx := context.Background()

	out, _ := h.Handle(ctx, "open chrome", "")
	assert.Equal(t, "Opening chrome.", out)
	out, _ = h.Handle(ctx, "launch obscure-tool", "")
	assert.Equal(t, "Trying to open obscure-tool.", out)
	out, _ = h.Handle(ctx, "open coding setup", "")
	assert.Equal(t, "Opening vscode. Opening terminal.", out)
	assert.Equal(t, []string{"chrome", "obscure-tool", "vscode", "terminal"}, l.opened)

	out, _ = h.Handle(ctx, "close explorer", "")
	assert.Equal(t, "I can't close explorer. It's a critical system process.", out)
	assert.Empty(t, l.closed)

	out, _ = h.Handle(ctx, "close spotify", "")
	assert.Equal(t, "Closed spotify.", out)

	l.fail = errors.New("no such process")
	out, _ = h.Handle(ctx, "kill slack", "")
	assert.Equal(t, "Couldn't close slack. It may not be running.", out)

	out, _ = h.Handle(ctx, "open shutdown", "")
	assert.Equal(t, "BLOCKED: shutdown cannot be opened.", out)
}

func TestSystemFallsBackToInterpretation(t *testing.T) {
	h, brain := newSystemHandler(&fakeProbe{}, &fakeLauncher{})
	out, err := h.Handle(context.Background(), "make my wallpaper blue", "")
	require.NoError(t, err)
	require.Len(t, brain.inputs, 1)
	assert.Contains(t, brain.inputs[0], "system action: make my wallpaper blue")
	assert.Equal(t, "answer: "+brain.inputs[0], out)

	out, _ = h.Handle(context.Background(), "turn the volume up", "")
	assert.Contains(t, out, "Volume control isn't available")
}

func TestSystemFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ReadMe.txt"), []byte("hello files"), 0644))
	h, _ := newSystemHandler(&fakeProbe{}, &fakeLauncher{})
	ctx := context.Background()

	out, err := h.Handle(ctx, "list files in "+dir, "")
	require.NoError(t, err)
	assert.Equal(t, "Contents of "+dir+":\n  📁 Sub\n  📄 ReadMe.txt", out)

	out, _ = h.Handle(ctx, "read file "+filepath.Join(dir, "ReadMe.txt"), "")
	assert.Equal(t, "Contents of ReadMe.txt:\nhello files", out)

	missing := filepath.Join(dir, "Nope")
	out, _ = h.Handle(ctx, "list files in "+missing, "")
	assert.Equal(t, "Directory not found: "+missing, out)
	out, _ = h.Handle(ctx, "read file "+filepath.Join(dir, "Sub"), "")
	assert.Equal(t, "Not a file: "+filepath.Join(dir, "Sub"), out)
}

func TestGuard(t *testing.T) {
	g := NewGuard(nil)
	for _, cmd := range []string{"rm -rf /", "shutdown /s /t 0", "FORMAT C:", "powershell -enc abc", "dd if=/dev/zero of=/dev/sda"} {
		err := g.Check(cmd)
		assert.ErrorIs(t, err, ErrBlocked, cmd)
	}
	for _, cmd := range []string{"open -a Spotify", "google-chrome", "pkill -x slack"} {
		assert.NoError(t, g.Check(cmd), cmd)
	}

	custom := NewGuard([]string{"  Spotify "})
	assert.ErrorIs(t, custom.Check("open -a spotify"), ErrBlocked)
	assert.NoError(t, custom.Check("shutdown now"), "custom list replaces the default substrings")
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical("explorer.exe"))
	assert.True(t, IsCritical(" SystemD "))
	assert.False(t, IsCritical("spotify"))
}

func TestPlatformCommands(t *testing.T) {
	assert.Equal(t, []string{"cmd", "/c", "start", "", "chrome.exe"}, OpenCommand("windows", "Chrome"))
	assert.Equal(t, []string{"open", "-a", "Google Chrome"}, OpenCommand("darwin", "chrome"))
	assert.Equal(t, []string{"google-chrome"}, OpenCommand("linux", "chrome"))
	assert.Equal(t, []string{"mytool"}, OpenCommand("linux", "mytool"))

	assert.Equal(t, []string{"taskkill", "/im", "spotify.exe"}, CloseCommand("windows", "spotify"))
	assert.Equal(t, []string{"taskkill", "/im", "mytool.exe"}, CloseCommand("windows", "mytool"))
	assert.Equal(t, []string{"pkill", "-x", "Spotify"}, CloseCommand("darwin", "spotify"))
}
