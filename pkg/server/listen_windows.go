package server

import (
	"net"
	"strings"

	winio "github.com/Microsoft/go-winio"
)

// listenNamedPipe accepts both "angi" and the full `\\.\pipe\angi` form.
func listenNamedPipe(name string) (net.Listener, error) {
	path := name
	if !strings.HasPrefix(path, `\\.\pipe\`) {
		path = `\\.\pipe\` + strings.TrimPrefix(path, "/")
	}
	return winio.ListenPipe(path, nil)
}
