// Package probe inspects host resources to suggest which local model to run.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const gib = 1 << 30

// CapacitySnapshot is a read-only view of host resources. It is recomputed on
// demand and never persisted.
type CapacitySnapshot struct {
	CPUCount       int
	MemoryBytes    uint64
	GPUAvailable   bool
	GPUMemoryBytes uint64
	GPUKind        string // "nvidia", "apple_silicon" or ""
	OS             string
	Arch           string

	// Err is set when memory detection failed; the snapshot is still usable.
	Err error
}

func (c CapacitySnapshot) MemoryGiB() float64    { return float64(c.MemoryBytes) / gib }
func (c CapacitySnapshot) GPUMemoryGiB() float64 { return float64(c.GPUMemoryBytes) / gib }

// RecommendedModel picks a local model tag sized for the host.
func (c CapacitySnapshot) RecommendedModel() string {
	if c.Err != nil && c.MemoryBytes == 0 {
		return "qwen2.5:7b"
	}
	switch {
	case c.GPUAvailable && c.GPUMemoryBytes >= 24*gib:
		return "llama3.1:70b"
	case c.GPUAvailable && c.GPUMemoryBytes >= 8*gib:
		return "qwen2.5:14b"
	case c.MemoryBytes >= 16*gib:
		return "qwen2.5:7b"
	case c.MemoryBytes >= 8*gib:
		return "llama3.2:3b"
	default:
		return "llama3.2:1b"
	}
}

func (c CapacitySnapshot) String() string {
	gpu := "none"
	if c.GPUAvailable {
		gpu = c.GPUKind
		if c.GPUMemoryBytes > 0 {
			gpu = fmt.Sprintf("%s (%.1f GiB)", c.GPUKind, c.GPUMemoryGiB())
		}
	}
	return fmt.Sprintf("cpus=%d memory=%.1fGiB gpu=%s platform=%s/%s", c.CPUCount, c.MemoryGiB(), gpu, c.OS, c.Arch)
}

// HostCapacityProbe produces a CapacitySnapshot.
type HostCapacityProbe interface {
	Probe(ctx context.Context) CapacitySnapshot
}

// Fixed is a probe returning a canned snapshot, for tests and overrides.
type Fixed CapacitySnapshot

func (f Fixed) Probe(context.Context) CapacitySnapshot { return CapacitySnapshot(f) }

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Host probes the machine it runs on. Memory comes from gopsutil; NVIDIA GPUs
// are found through nvidia-smi on every OS.
type Host struct {
	Run    CommandRunner
	Memory MemoryReader
}

// NewHost returns a probe backed by the real OS.
func NewHost() *Host {
	return &Host{Run: execRunner, Memory: virtualMemory}
}

func (h *Host) Probe(ctx context.Context) CapacitySnapshot {
	run := h.Run
	if run == nil {
		run = execRunner
	}
	snap := CapacitySnapshot{
		CPUCount: runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
	memory := h.Memory
	if memory == nil {
		memory = virtualMemory
	}
	total, err := memory(ctx)
	if err != nil {
		snap.Err = fmt.Errorf("detect memory: %w", err)
	}
	snap.MemoryBytes = total

	if gpuMem, ok := nvidiaMemory(ctx, run); ok {
		snap.GPUAvailable = true
		snap.GPUKind = "nvidia"
		snap.GPUMemoryBytes = gpuMem
	} else if snap.OS == "darwin" && snap.Arch == "arm64" {
		snap.GPUAvailable = true
		snap.GPUKind = "apple_silicon"
	}
	return snap
}

// nvidiaMemory reads the first GPU's total memory (MiB) from nvidia-smi.
func nvidiaMemory(ctx context.Context, run CommandRunner) (uint64, bool) {
	out, err := run(ctx, "nvidia-smi", "--query-gpu=memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, false
	}
	return parseNvidiaSMI(string(out))
}

func parseNvidiaSMI(out string) (uint64, bool) {
	first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	mib, err := strconv.ParseUint(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return mib << 20, true
}
