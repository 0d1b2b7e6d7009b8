package handlers

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSnapshot is a point-in-time view of the machine.
type HostSnapshot struct {
	OS         string
	Platform   string
	Hostname   string
	Arch       string
	CPUs       int
	CPUPercent float64
	MemUsed    uint64
	MemTotal   uint64
	MemPercent float64
}

type DiskUsage struct {
	Path    string
	Used    uint64
	Total   uint64
	Percent float64
}

type ProcessUsage struct {
	Name       string
	CPUPercent float64
	MemPercent float64
}

// Probe reads host metrics.
type Probe interface {
	Snapshot(ctx context.Context) (HostSnapshot, error)
	Disk(ctx context.Context, path string) (DiskUsage, error)
	TopProcesses(ctx context.Context, n int) ([]ProcessUsage, error)
	Addresses(ctx context.Context) ([]string, error)
}

// HostProbe implements Probe with gopsutil.
type HostProbe struct {
	// CPUSample is how long CPU usage is measured for.
	CPUSample time.Duration
}

func NewHostProbe() *HostProbe {
	return &HostProbe{CPUSample: time.Second}
}

func (p *HostProbe) Snapshot(ctx context.Context) (HostSnapshot, error) {
	s := HostSnapshot{OS: runtime.GOOS, Arch: runtime.GOARCH, CPUs: runtime.NumCPU()}

	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = info.Hostname
		s.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		if info.KernelArch != "" {
			s.Arch = info.KernelArch
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		s.CPUs = n
	}
	if pct, err := cpu.PercentWithContext(ctx, p.CPUSample, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("read memory: %w", err)
	}
	s.MemUsed, s.MemTotal, s.MemPercent = vm.Used, vm.Total, vm.UsedPercent
	return s, nil
}

func (p *HostProbe) Disk(ctx context.Context, path string) (DiskUsage, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("read disk usage: %w", err)
	}
	return DiskUsage{Path: path, Used: u.Used, Total: u.Total, Percent: u.UsedPercent}, nil
}

func (p *HostProbe) TopProcesses(ctx context.Context, n int) ([]ProcessUsage, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]ProcessUsage, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := proc.CPUPercentWithContext(ctx)
		memPct, _ := proc.MemoryPercentWithContext(ctx)
		out = append(out, ProcessUsage{Name: name, CPUPercent: cpuPct, MemPercent: float64(memPct)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CPUPercent > out[j].CPUPercent })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Addresses returns the IPv4 addresses of interfaces that are up, skipping
// loopback.
func (p *HostProbe) Addresses(ctx context.Context) ([]string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var addrs []string
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || !hasFlag(iface.Flags, "up") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(ip, ".") {
				addrs = append(addrs, ip)
			}
		}
	}
	return addrs, nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
