package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strings"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
)

// Runner executes an external command and captures its output
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run starts name with args, feeding stdin when non-nil, and waits for it to exit
func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// maskOf returns the dotted netmask of an IPv4 prefix
func maskOf(p netip.Prefix) netip.Addr {
	var mask uint32
	if bits := p.Bits(); bits > 0 {
		mask = ^uint32(0) << (32 - uint32(bits))
	}
	return netip.AddrFrom4([4]byte{byte(mask >> 24), byte(mask >> 16), byte(mask >> 8), byte(mask)})
}

// parseNetstatOutput reads the IPv4 section of `netstat -rn`. Rows whose
// gateway is not an address (link#N, interface names) are kept as on-link
// entries. The default row supplies the default gateway.
func parseNetstatOutput(output string) ([]entities.Entry, netip.Addr) {
	var (
		entries []entities.Entry
		gateway netip.Addr
	)
	lines := strings.Split(output, "\n")

	// Skip header lines and find the start of routing table
	start := -1
	for i, line := range lines {
		if strings.Contains(line, "Destination") && strings.Contains(line, "Gateway") {
			start = i + 1
			break
		}
	}
	if start == -1 {
		return entries, gateway
	}

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		// Stop at the next section, e.g. "Internet6:"
		if strings.HasSuffix(line, ":") && !strings.Contains(line, ".") {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		network, err := parseDestination(fields[0])
		if err != nil || !network.Addr().Is4() {
			continue
		}

		hop, err := netip.ParseAddr(fields[1])
		if err != nil || !hop.Is4() {
			hop = netip.Addr{}
		}

		if network.Bits() == 0 {
			if !gateway.IsValid() && hop.IsValid() {
				gateway = hop
			}
			continue
		}

		entries = append(entries, entities.Entry{Destination: network.Addr(), NextHop: hop})
	}

	return entries, gateway
}

// parseDestination parses the destination formats netstat prints, including
// the abbreviated forms where trailing zero octets are dropped.
func parseDestination(dest string) (netip.Prefix, error) {
	if dest == "default" {
		return netip.MustParsePrefix("0.0.0.0/0"), nil
	}

	// netstat appends %scope to link-local entries
	if i := strings.IndexByte(dest, '%'); i >= 0 {
		dest = dest[:i]
	}

	// "1.0.1/24" -> "1.0.1.0/24"
	if ip, bits, ok := strings.Cut(dest, "/"); ok {
		p, err := netip.ParsePrefix(padOctets(ip) + "/" + bits)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}

	if addr, err := netip.ParseAddr(dest); err == nil {
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}

	// "203.26.55" -> "203.26.55.0/24", "10.0" -> "10.0.0.0/16", "127" -> "127.0.0.0/8"
	switch strings.Count(dest, ".") {
	case 0:
		return netip.ParsePrefix(dest + ".0.0.0/8")
	case 1:
		return netip.ParsePrefix(dest + ".0.0/16")
	case 2:
		return netip.ParsePrefix(dest + ".0/24")
	}

	return netip.Prefix{}, fmt.Errorf("unsupported destination format: %s", dest)
}

func padOctets(ip string) string {
	switch strings.Count(ip, ".") {
	case 0:
		return ip + ".0.0.0"
	case 1:
		return ip + ".0.0"
	case 2:
		return ip + ".0"
	}
	return ip
}
