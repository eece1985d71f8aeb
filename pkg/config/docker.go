package config

import (
	"os"
	"sync"
)

// DockerHostAlias is the name Docker Desktop resolves to the host machine.
const DockerHostAlias = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a container.
// /.dockerenv is checked once; DATADICT_IN_DOCKER=true forces the result for
// runtimes that do not create the marker file (podman, some CI runners).
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		if os.Getenv("DATADICT_IN_DOCKER") == "true" {
			isDockerResult = true
			return
		}
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites loopback hosts to DockerHostAlias when running
// in a container, so a datasource on the developer's machine stays reachable.
// Any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}

	switch host {
	case "localhost", "127.0.0.1", "::1":
		return DockerHostAlias
	}
	return host
}
