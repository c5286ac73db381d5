package executor

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// sample is a point-in-time reading of the server process's own
// resource counters. Peak-memory and CPU-time deltas are derived by
// sampling before and after a job's `main` invocation (§4.5 steps 4/9),
// grounded on the self-process sampling idiom other_examples'
// nickheyer-Crepes and fairyhunter13-ai-cv-evaluator use gopsutil for.
type sample struct {
	rssMB     float64
	cpuTimeMS int64
}

func sampleSelf() (sample, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return sample{}, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return sample{}, err
	}
	times, err := proc.Times()
	if err != nil {
		return sample{}, err
	}
	return sample{
		rssMB:     float64(mem.RSS) / (1024 * 1024),
		cpuTimeMS: int64((times.User + times.System) * 1000),
	}, nil
}
