// Package testutil carries small helpers shared by tests and test scripts.
package testutil

import "net"

// FreePort asks the kernel for an unused TCP port on the loopback
// interface. The port is released before returning, so a racing process
// could in principle grab it first.
func FreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close() //nolint:errcheck
	return ln.Addr().(*net.TCPAddr).Port, nil
}
