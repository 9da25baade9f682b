package main

import "testing"

func TestReachableHost(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		address string
		want    string
	}{
		"empty":         {address: "", want: "localhost"},
		"port_only":     {address: ":8080", want: "localhost:8080"},
		"ipv4_wildcard": {address: "0.0.0.0:9000", want: "localhost:9000"},
		"ipv6_wildcard": {address: "[::]:9000", want: "localhost:9000"},
		"ipv4_loopback": {address: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		"ipv6_custom":   {address: "[2001:db8::1]:9000", want: "[2001:db8::1]:9000"},
		"named_host":    {address: " navigator.internal:443 ", want: "navigator.internal:443"},
		"missing_port":  {address: "navigator.internal", want: "navigator.internal"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := reachableHost(tc.address); got != tc.want {
				t.Fatalf("reachableHost(%q) = %q, want %q", tc.address, got, tc.want)
			}
		})
	}
}

func TestAdvertisedEndpointsFollowTLS(t *testing.T) {
	t.Parallel()

	//1.- Plain listeners advertise http and ws.
	plain := advertisedEndpoints(":8080", "", false)
	if plain.HTTP != "http://localhost:8080" || plain.Pilots != "ws://localhost:8080/ws" {
		t.Fatalf("unexpected plain endpoints %+v", plain)
	}
	if plain.Bodies != "http://localhost:8080/api/bodies" || plain.GRPC != "" {
		t.Fatalf("unexpected plain extras %+v", plain)
	}

	//2.- TLS switches both schemes and gRPC is listed when enabled.
	secure := advertisedEndpoints("0.0.0.0:443", ":9090", true)
	if secure.HTTP != "https://localhost:443" || secure.Pilots != "wss://localhost:443/ws" {
		t.Fatalf("unexpected tls endpoints %+v", secure)
	}
	if secure.GRPC != "localhost:9090" {
		t.Fatalf("unexpected grpc endpoint %q", secure.GRPC)
	}
}
