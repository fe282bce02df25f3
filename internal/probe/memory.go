package probe

import (
	"context"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryReader returns total physical memory in bytes.
type MemoryReader func(ctx context.Context) (uint64, error)

func virtualMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}
