package procutil

import (
	"github.com/shirou/gopsutil/v3/process"
)

// SampleRSS reads the resident set size of pid, grounded on the same
// gopsutil process.NewProcess(pid).MemoryInfo() pattern used for
// cross-platform memory sampling in the wider example corpus. It returns
// ok=false rather than an error when the process has already exited, since
// a sampler racing process exit is an expected condition, not a failure.
func SampleRSS(pid int) (rssBytes uint64, ok bool) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, false
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0, false
	}
	return info.RSS, true
}
