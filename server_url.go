package main

import (
	"net"
	"net/url"
	"strings"
)

// endpoints are the addresses logged at startup for operators and client builds.
type endpoints struct {
	HTTP   string
	Pilots string
	Bodies string
	GRPC   string
}

// advertisedEndpoints turns listen addresses into dialable URLs. Wildcard hosts become
// localhost; the gRPC entry stays empty when gRPC is off.
func advertisedEndpoints(httpAddr, grpcAddr string, tlsEnabled bool) endpoints {
	host := reachableHost(httpAddr)
	site := url.URL{Scheme: "http", Host: host}
	pilots := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if tlsEnabled {
		site.Scheme = "https"
		pilots.Scheme = "wss"
	}
	bodies := site
	bodies.Path = "/api/bodies"
	out := endpoints{
		HTTP:   site.String(),
		Pilots: pilots.String(),
		Bodies: bodies.String(),
	}
	if strings.TrimSpace(grpcAddr) != "" {
		out.GRPC = reachableHost(grpcAddr)
	}
	return out
}

// reachableHost rewrites a listen address into a host:port a local client can dial.
func reachableHost(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
