package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Port extracts the TCP/UDP port from a listen address.
func Port(addr string) (int, error) {
	// addr can be ":8000" or "0.0.0.0:8000"
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		if !strings.HasPrefix(addr, ":") {
			return 0, fmt.Errorf("invalid addr %q: %w", addr, err)
		}
		p = addr[1:]
	}
	v, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	if v < 0 || v > 65535 {
		return 0, fmt.Errorf("port out of range in %q", addr)
	}
	return v, nil
}

// LocalURL is the URL a browser on this machine uses to reach addr.
func LocalURL(addr string) (string, error) {
	p, err := Port(addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://localhost:%d", p), nil
}
