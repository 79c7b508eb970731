//go:build linux

package terminal

import "golang.org/x/sys/unix"

func tcgets() uint { return unix.TCGETS }
func tcsets() uint { return unix.TCSETS }
