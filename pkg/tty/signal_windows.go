//go:build windows

package tty

import "os"

// Windows has no resize signal, the initial size is sent only.
func notifyResize(chan<- os.Signal) {}
