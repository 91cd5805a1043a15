package api

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// newIPExtractor decides what c.RealIP returns, and so what the auth limiter keys on.
// Without trusted proxies forwarding headers are ignored. With them, X-Forwarded-For
// is walked from the right and only hops inside the listed ranges are skipped.
func newIPExtractor(trustedProxies []string) echo.IPExtractor {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect()
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		// Config validation has already rejected malformed ranges
		if _, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			options = append(options, echo.TrustIPRange(ipNet))
		}
	}

	return echo.ExtractIPFromXFFHeader(options...)
}
