//go:build darwin || freebsd || netbsd || openbsd

package terminal

import "golang.org/x/sys/unix"

func tcgets() uint { return unix.TIOCGETA }
func tcsets() uint { return unix.TIOCSETA }
