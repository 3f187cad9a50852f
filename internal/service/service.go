// Package service runs the worker under the platform's service manager:
// the Windows service control manager, or POSIX signals with systemd readiness.
package service

// Name is the service and event-log source name.
const Name = "cycleagent"

// Handle is the worker surface a service runner drives.
type Handle interface {
	Start() error
	Stop() error
	Done() <-chan struct{}
	Err() error
}

// Runner is a blocking service entry point. Run starts the worker, waits for
// the host to ask for a stop (or for the worker to exit) and returns.
type Runner interface {
	Run(h Handle) error
}
