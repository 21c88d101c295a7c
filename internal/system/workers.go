package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Декодирование HEIC/PDF в полном разрешении может занимать сотни мегабайт,
// поэтому число параллельных конвертаций ограничено и памятью.
const conversionMemoryBudget = 256 << 20

// IngestWorkers returns how many conversions may run in parallel. A positive
// requested value wins; otherwise the logical CPU count is used, capped by
// available memory. The result is never below 1.
func IngestWorkers(requested int) int {
	if requested > 0 {
		return requested
	}

	workers, err := cpu.Counts(true)
	if err != nil || workers <= 0 {
		workers = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		workers = capByMemory(workers, vm.Available)
	}
	return workers
}

func capByMemory(workers int, available uint64) int {
	byMem := int(available / conversionMemoryBudget)
	if byMem < workers {
		workers = byMem
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
