package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

const (
	maxListed    = 20
	maxReadBytes = 1 << 20
	maxShownRead = 3000
)

// SystemHandler reports on the host and opens or closes applications.
type SystemHandler struct {
	brain    Responder
	probe    Probe
	launcher Launcher
	routes   table
	log      zerolog.Logger
}

type SystemOptions struct {
	Probe    Probe
	Launcher Launcher
}

func NewSystemHandler(brain Responder, opts SystemOptions) *SystemHandler {
	if opts.Probe == nil {
		opts.Probe = NewHostProbe()
	}
	if opts.Launcher == nil {
		opts.Launcher = NewExecLauncher(NewGuard(nil))
	}
	h := &SystemHandler{
		brain:    brain,
		probe:    opts.Probe,
		launcher: opts.Launcher,
		log:      logging.For("handlers").With().Str("handler", "system").Logger(),
	}
	h.routes = table{
		{name: "open", keywords: []string{"open ", "launch ", "start "}, prefix: true, do: h.open},
		{name: "close", keywords: []string{"close ", "kill ", "stop "}, prefix: true, do: h.close},
		{name: "volume", keywords: []string{"volume", "mute", "unmute"}, do: reply("Volume control isn't available from here. Use your keyboard or system tray to change it.")},
		{name: "screenshot", keywords: []string{"screenshot", "screen capture"}, do: reply("I can't capture the screen from here. Save a screenshot and ask me to describe the image file.")},
		{name: "battery", keywords: []string{"battery"}, do: reply("Battery status isn't available on this host.")},
		{name: "disk", keywords: []string{"disk space", "disk usage", "storage"}, do: h.disk},
		{name: "info", keywords: []string{"system info", "system status", "cpu usage", "ram", "memory usage"}, do: h.info},
		{name: "ip", keywords: []string{"ip address", "my ip"}, do: h.ip},
		{name: "processes", keywords: []string{"process", "what is eating", "top process"}, do: h.processes},
		{name: "list files", keywords: []string{"list files", "show files"}, do: h.listFiles},
		{name: "read file", keywords: []string{"read file"}, do: h.readFile},
	}
	return h
}

func (h *SystemHandler) Handle(ctx context.Context, input, memCtx string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return noInput, nil
	}
	return h.routes.dispatch(ctx, input, memCtx, h.interpret)
}

func (h *SystemHandler) interpret(ctx context.Context, req request) (string, error) {
	prompt := fmt.Sprintf("The user wants to perform a system action: %s. "+
		"Describe what they likely want done, but note that I can only open/close apps, "+
		"report system information, and list or read files.", req.input)
	return h.brain.Respond(ctx, prompt, req.memCtx), nil
}

func (h *SystemHandler) open(ctx context.Context, req request) (string, error) {
	_, app, _ := strings.Cut(req.lower, " ")
	app = strings.TrimSpace(app)
	if app == "" {
		return "Which application should I open?", nil
	}
	if containsAny(app, "coding setup", "dev setup") {
		var parts []string
		for _, a := range []string{"vscode", "terminal"} {
			parts = append(parts, h.openApp(ctx, a))
		}
		return strings.Join(parts, " "), nil
	}
	return h.openApp(ctx, app), nil
}

func (h *SystemHandler) openApp(ctx context.Context, app string) string {
	_, known := resolveApp(runtime.GOOS, app)
	if err := h.launcher.Open(ctx, app); err != nil {
		if errors.Is(err, ErrBlocked) {
			return "BLOCKED: " + app + " cannot be opened."
		}
		h.log.Warn().Err(err).Str("app", app).Msg("open failed")
		return fmt.Sprintf("Failed to open %s: %v", app, err)
	}
	if !known {
		return fmt.Sprintf("Trying to open %s.", app)
	}
	return fmt.Sprintf("Opening %s.", app)
}

func (h *SystemHandler) close(ctx context.Context, req request) (string, error) {
	_, app, _ := strings.Cut(req.lower, " ")
	app = strings.TrimSpace(app)
	if app == "" {
		return "Which application should I close?", nil
	}
	if IsCritical(app) {
		return fmt.Sprintf("I can't close %s. It's a critical system process.", app), nil
	}
	if err := h.launcher.Close(ctx, app); err != nil {
		if errors.Is(err, ErrBlocked) {
			return "BLOCKED: " + err.Error(), nil
		}
		h.log.Debug().Err(err).Str("app", app).Msg("close failed")
		return fmt.Sprintf("Couldn't close %s. It may not be running.", app), nil
	}
	return fmt.Sprintf("Closed %s.", app), nil
}

func (h *SystemHandler) info(ctx context.Context, _ request) (string, error) {
	s, err := h.probe.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	osLine := "OS: " + s.OS
	if s.Platform != "" {
		osLine += " (" + s.Platform + ")"
	}
	lines := []string{osLine + " " + s.Arch}
	if s.Hostname != "" {
		lines = append(lines, "Host: "+s.Hostname)
	}
	lines = append(lines,
		fmt.Sprintf("CPU: %d cores, %.1f%% used", s.CPUs, s.CPUPercent),
		fmt.Sprintf("RAM: %s / %s (%.1f%%)", humanize.IBytes(s.MemUsed), humanize.IBytes(s.MemTotal), s.MemPercent),
	)
	if d, err := h.probe.Disk(ctx, rootPath()); err == nil {
		lines = append(lines, formatDisk(d))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *SystemHandler) disk(ctx context.Context, _ request) (string, error) {
	d, err := h.probe.Disk(ctx, rootPath())
	if err != nil {
		return "", err
	}
	return formatDisk(d), nil
}

func formatDisk(d DiskUsage) string {
	return fmt.Sprintf("Disk (%s): %s / %s (%.1f%%)", d.Path, humanize.IBytes(d.Used), humanize.IBytes(d.Total), d.Percent)
}

func rootPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

func (h *SystemHandler) ip(ctx context.Context, _ request) (string, error) {
	addrs, err := h.probe.Addresses(ctx)
	if err != nil || len(addrs) == 0 {
		return "Could not determine IP address.", nil
	}
	if len(addrs) == 1 {
		return "Your local IP address is: " + addrs[0], nil
	}
	return "Your local IP addresses are: " + strings.Join(addrs, ", "), nil
}

func (h *SystemHandler) processes(ctx context.Context, _ request) (string, error) {
	const n = 5
	procs, err := h.probe.TopProcesses(ctx, n)
	if err != nil {
		return "", err
	}
	lines := []string{fmt.Sprintf("Top %d processes by CPU:", n)}
	for _, p := range procs {
		lines = append(lines, fmt.Sprintf("  • %s: CPU %.1f%%, RAM %.1f%%", p.Name, p.CPUPercent, p.MemPercent))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *SystemHandler) listFiles(_ context.Context, req request) (string, error) {
	kw := "list files"
	if !strings.Contains(req.lower, kw) {
		kw = "show files"
	}
	dir := after(req.input, kw)
	if strings.HasPrefix(strings.ToLower(dir), "in ") {
		dir = strings.TrimSpace(dir[3:])
	}
	if dir == "" {
		dir, _ = os.UserHomeDir()
	}
	path, err := expandPath(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Directory not found: %s", dir), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Not a directory: %s", dir), nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory is empty: %s", dir), nil
	}

	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	lines := []string{"Contents of " + path + ":"}
	for i, d := range dirs {
		if i == maxListed {
			break
		}
		lines = append(lines, "  📁 "+d)
	}
	for i, f := range files {
		if i == maxListed {
			break
		}
		lines = append(lines, "  📄 "+f)
	}
	if len(entries) > 2*maxListed {
		lines = append(lines, fmt.Sprintf("  ... and %d more items", len(entries)-2*maxListed))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *SystemHandler) readFile(_ context.Context, req request) (string, error) {
	p := after(req.input, "read file")
	if p == "" {
		return "Which file should I read?", nil
	}
	path, err := expandPath(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("File not found: %s", p), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Not a file: %s", p), nil
	}
	if info.Size() > maxReadBytes {
		return "File is too large to read (>1MB).", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return fmt.Sprintf("Contents of %s:\n%s", filepath.Base(path), truncate(strings.ToValidUTF8(string(data), "\uFFFD"), maxShownRead)), nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
