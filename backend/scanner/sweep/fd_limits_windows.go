//go:build windows

package sweep

func fdAwareWorkerCap() int {
	return 0
}
