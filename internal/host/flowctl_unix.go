//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package host

import (
	"os"

	"golang.org/x/sys/unix"
)

// allowControlKeys turns off XON/XOFF flow control on the terminal so Ctrl+Q
// and Ctrl+S reach the reader as bytes. Output processing and signal keys are
// left alone. go-tty restores the saved termios on Close.
func allowControlKeys(in *os.File) error {
	fd := int(in.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	clearFlowControl(termios)
	return unix.IoctlSetTermios(fd, ioctlSetTermios, termios)
}

func clearFlowControl(t *unix.Termios) {
	t.Iflag &^= unix.IXON
}
