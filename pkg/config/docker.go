package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostGateway is the name Docker Desktop gives the host machine.
const DockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool

	// runningInDocker is swapped in tests.
	runningInDocker = IsRunningInDocker
)

// IsRunningInDocker returns true if the engine is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns the host the live database adapters should dial.
// Inside Docker a loopback host names the container itself, so it is mapped to
// the host machine; any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, runningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker || !isLoopbackHost(host) {
		return host
	}
	return DockerHostGateway
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1", "[::1]":
		return true
	}
	return false
}
