//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package host

import "os"

// allowControlKeys is a no-op where the console does not apply XON/XOFF.
func allowControlKeys(*os.File) error { return nil }
