package sweep

import "math"

// descriptors kept free for the resolver, log file and database
const fdReserve = 64

// workerCeiling converts a soft RLIMIT_NOFILE into a worker ceiling. Each
// in-flight probe may hold a socket and, with the exec pinger, a child's pipes.
// Zero means no ceiling.
func workerCeiling(softLimit uint64) int {
	if softLimit == 0 || softLimit > math.MaxInt32 {
		return 0
	}
	usable := int(softLimit) - fdReserve
	if usable < 16 {
		return 8
	}
	return usable / 2
}
