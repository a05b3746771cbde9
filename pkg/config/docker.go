package config

import (
	"net"
	"net/url"
	"os"
	"regexp"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool

	hostKeywordPattern = regexp.MustCompile(`(?i)\b(host|server)=(localhost|127\.0\.0\.1)([\s;,]|$)`)
)

const dockerHostAlias = "host.docker.internal"

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file which exists in all Docker containers.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveDSNForDocker points datasource DSNs at the Docker host when the service
// runs in a container and the DSN names localhost.
func ResolveDSNForDocker(dsn string) string {
	if !IsRunningInDocker() {
		return dsn
	}
	return rewriteLocalhost(dsn)
}

// rewriteLocalhost handles URL DSNs (postgres://, sqlserver://) and keyword DSNs
// (host=localhost). Anything else, such as a SQLite path, is returned unchanged.
func rewriteLocalhost(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Host != "" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return dsn
		}
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(dockerHostAlias, port)
		} else {
			u.Host = dockerHostAlias
		}
		return u.String()
	}
	return hostKeywordPattern.ReplaceAllString(dsn, "${1}="+dockerHostAlias+"${3}")
}
