//go:build !windows

package sweep

import "golang.org/x/sys/unix"

func fdAwareWorkerCap() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0
	}
	return workerCeiling(uint64(lim.Cur))
}
