// Package hostfacts collects a small description of the machine the server
// runs on, for the startup log and the status command.
package hostfacts

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/meshrender/internal/logging"
)

// Facts is a best-effort snapshot. Fields that could not be read stay zero
// and the reason is kept in Errors.
type Facts struct {
	Hostname        string        `json:"hostname" yaml:"hostname"`
	OS              string        `json:"os" yaml:"os"`
	Platform        string        `json:"platform" yaml:"platform"`
	PlatformVersion string        `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string        `json:"kernel_version" yaml:"kernel_version"`
	Virtualization  string        `json:"virtualization,omitempty" yaml:"virtualization,omitempty"`
	Uptime          time.Duration `json:"uptime" yaml:"uptime"`
	CPUs            int           `json:"cpus" yaml:"cpus"`
	MemTotalMB      uint64        `json:"mem_total_mb" yaml:"mem_total_mb"`
	MemAvailableMB  uint64        `json:"mem_available_mb" yaml:"mem_available_mb"`
	MemUsedPercent  float64       `json:"mem_used_percent" yaml:"mem_used_percent"`

	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Collect reads host, CPU and memory information. It never fails.
func Collect() Facts {
	var f Facts

	if info, err := host.Info(); err == nil {
		f.Hostname = info.Hostname
		f.OS = info.OS
		f.Platform = info.Platform
		f.PlatformVersion = info.PlatformVersion
		f.KernelVersion = info.KernelVersion
		f.Virtualization = info.VirtualizationSystem
		f.Uptime = time.Duration(info.Uptime) * time.Second
	} else {
		f.Errors = append(f.Errors, fmt.Sprintf("host: %v", err))
	}

	if n, err := cpu.Counts(true); err == nil {
		f.CPUs = n
	} else {
		f.Errors = append(f.Errors, fmt.Sprintf("cpu: %v", err))
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		f.MemTotalMB = vmem.Total / 1024 / 1024
		f.MemAvailableMB = vmem.Available / 1024 / 1024
		f.MemUsedPercent = vmem.UsedPercent
	} else {
		f.Errors = append(f.Errors, fmt.Sprintf("mem: %v", err))
	}

	return f
}

// Fields flattens the snapshot for a log line.
func (f Facts) Fields() logging.Fields {
	return logging.Fields{
		"os":               f.OS,
		"platform":         f.Platform,
		"kernel":           f.KernelVersion,
		"cpus":             f.CPUs,
		"mem_total_mb":     f.MemTotalMB,
		"mem_available_mb": f.MemAvailableMB,
	}
}
