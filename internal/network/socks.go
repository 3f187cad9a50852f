// Package network holds dial helpers and local address detection shared by the senders.
package network

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"

	"cycleagent/internal/settings"
)

// Enabled reports whether a SOCKS5 proxy is configured.
func Enabled(cfg settings.SOCKSConfig) bool {
	return cfg.Host != "" && cfg.Port > 0
}

// NewSOCKS5Dialer creates a SOCKS5 proxy dialer.
func NewSOCKS5Dialer(cfg settings.SOCKSConfig) (proxy.Dialer, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", addr, err)
	}
	return dialer, nil
}

// ContextDialer returns a context-aware dial function through the proxy, or
// nil when no proxy is configured.
func ContextDialer(cfg settings.SOCKSConfig) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if !Enabled(cfg) {
		return nil, nil
	}
	dialer, err := NewSOCKS5Dialer(cfg)
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
