//go:build unix

package protocol

import "syscall"

func closeOnExec(fd int) {
	syscall.CloseOnExec(fd)
}
