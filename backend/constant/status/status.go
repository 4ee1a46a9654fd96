package status

const (
	OK      = 1
	Running = 2
	Stopped = 3
	Error   = 4
)

func Text(code int) string {
	switch code {
	case OK:
		return "ok"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
