package ratelimit

import "strings"

// unlimitedPaths are never rate limited.
var unlimitedPaths = map[string]bool{
	"/":           true,
	"/api/health": true,
}

// MatchEndpoint returns the configuration for path and method, or nil when
// the default limit applies. Unlimited paths yield a zero Limit.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimitedPaths[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	for i := range configs {
		if c := &configs[i]; c.Path == path && c.Method == method {
			return c
		}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method || !strings.HasSuffix(c.Path, "/") || !strings.HasPrefix(path, c.Path) {
			continue
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}
