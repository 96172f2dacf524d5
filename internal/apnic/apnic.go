// Package apnic reads the registry delegation feed and turns a region's
// IPv4 allocations into address ranges.
package apnic

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"go4.org/netipx"

	"github.com/wesleywu/lucky-route/internal/routing/cidr"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// DefaultURL is the latest APNIC delegation file
const DefaultURL = "https://ftp.apnic.net/apnic/stats/apnic/delegated-apnic-latest"

// Record is one IPv4 allocation line: start address and address count
type Record struct {
	Start string
	Count uint64
}

// Client downloads the delegation feed
type Client struct {
	http *http.Client
	url  string
}

// NewClient creates a feed client. An empty url means DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		url:  url,
	}
}

// Fetch downloads the feed and returns the IPv4 records of region
func (c *Client) Fetch(ctx context.Context, region string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", c.url, resp.StatusCode)
	}

	return Parse(resp.Body, region)
}

// Parse keeps lines of the form registry|region|ipv4|start|count|...
func Parse(r io.Reader, region string) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)

	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 5 || fields[1] != region || fields[2] != "ipv4" {
			continue
		}

		count, err := strconv.ParseUint(fields[4], 10, 64)
		if err != nil {
			return nil, &types.RouteError{
				Kind:        types.ErrMalformedInput,
				Destination: fields[3],
				Message:     fmt.Sprintf("invalid address count at line %d", lineNum),
				Cause:       err,
			}
		}

		records = append(records, Record{Start: fields[3], Count: count})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return records, nil
}

// Ranges converts records into address ranges ordered by start address.
// Overlapping allocations are rejected with both ranges in the message.
func Ranges(records []Record) ([]cidr.AddressRange, error) {
	type span struct {
		ip netipx.IPRange
		r  cidr.AddressRange
	}
	spans := make([]span, 0, len(records))

	for _, rec := range records {
		start, err := netip.ParseAddr(rec.Start)
		if err != nil || !start.Is4() {
			return nil, types.Errorf(types.ErrMalformedInput, "invalid IPv4 start address %q", rec.Start)
		}

		r := cidr.AddressRange{Start: cidr.AddrToUint32(start), Length: rec.Count}
		if err := r.Validate(); err != nil {
			return nil, err
		}

		spans = append(spans, span{
			ip: netipx.IPRangeFrom(start, cidr.Uint32ToAddr(uint32(r.End()-1))),
			r:  r,
		})
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].ip.From().Less(spans[j].ip.From())
	})

	ranges := make([]cidr.AddressRange, 0, len(spans))
	for i, s := range spans {
		if i > 0 && spans[i-1].ip.Overlaps(s.ip) {
			return nil, types.Errorf(types.ErrMalformedInput, "overlapping allocations %s and %s", spans[i-1].ip, s.ip)
		}
		ranges = append(ranges, s.r)
	}
	return ranges, nil
}
