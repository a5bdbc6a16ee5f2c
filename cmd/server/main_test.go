package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExploresCurlHint(t *testing.T) {
	const path = "/api/v1/projects/<project>/explores"

	tests := []struct {
		name string
		addr string
		tls  bool
		want string
	}{
		{name: "port only", addr: ":8080", want: "http://localhost:8080" + path},
		{name: "wildcard ipv6", addr: "[::]:9000", want: "http://localhost:9000" + path},
		{name: "ipv6 loopback kept", addr: "[::1]:8080", want: "http://[::1]:8080" + path},
		{name: "explicit host with tls", addr: " api.internal:8443 ", tls: true, want: "https://api.internal:8443" + path},
		{name: "empty address", addr: "  ", want: "http://localhost:8080" + path},
		{name: "missing port passes through", addr: "localhost", want: "http://localhost" + path},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := exploresCurlHint(tc.addr, "X-User-ID", tc.tls)
			assert.Equal(t, "curl -H 'X-User-ID: <user>' "+tc.want, got)
		})
	}
}
