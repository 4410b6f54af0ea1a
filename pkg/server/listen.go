package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Listen opens the listener described by addr: unix:///path, npipe://name,
// fd://N for socket activation, or a plain TCP host:port (optionally
// prefixed with tcp://).
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return listenUnix(ctx, strings.TrimPrefix(addr, "unix://"))
	case strings.HasPrefix(addr, "npipe://"):
		return listenNamedPipe(strings.TrimPrefix(addr, "npipe://"))
	case strings.HasPrefix(addr, "fd://"):
		fd, err := strconv.Atoi(strings.TrimPrefix(addr, "fd://"))
		if err != nil {
			return nil, fmt.Errorf("invalid file descriptor in %q: %w", addr, err)
		}
		return net.FileListener(os.NewFile(uintptr(fd), "angi-listener"))
	default:
		var lc net.ListenConfig
		return lc.Listen(ctx, "tcp", strings.TrimPrefix(addr, "tcp://"))
	}
}

// A stale socket left by a previous run is removed first.
func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	return lc.Listen(ctx, "unix", path)
}
