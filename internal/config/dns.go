package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParseDNSServers parses DNS server addresses given as separate values or
// comma separated lists. Only IPv4 addresses are accepted.
func ParseDNSServers(values []string) ([]netip.Addr, error) {
	var servers []netip.Addr

	for _, value := range values {
		for _, field := range strings.Split(value, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}

			addr, err := netip.ParseAddr(field)
			if err != nil || validate.Var(field, "ipv4") != nil {
				return nil, fmt.Errorf("invalid DNS server format %q", field)
			}
			servers = append(servers, addr.Unmap())
		}
	}

	return servers, nil
}
