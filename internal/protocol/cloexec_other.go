//go:build !unix

package protocol

func closeOnExec(int) {}
