// Package generate writes the dial-up launcher scripts and the routes file
// they feed to the route command.
package generate

import (
	"context"
	_ "embed"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/wesleywu/lucky-route/internal/config"
	"github.com/wesleywu/lucky-route/internal/routing/cidr"
)

// File names written into the output directory
const (
	RoutesFile = "routes.txt"
	UpScript   = "vpn-up.bat"
	DownScript = "vpn-down.bat"
)

var (
	//go:embed templates/vpn-up.bat
	upTemplate string
	//go:embed templates/vpn-down.bat
	downTemplate string
)

// Options describes the VPN entry the scripts dial
type Options struct {
	Entry      string
	Username   string
	Password   string
	Phonebook  string
	Metric     int
	MinSize    uint64
	DNSServers []netip.Addr
	OutputDir  string
	Executable string // command the scripts invoke; defaults to luckyroute
}

// State is a generation phase reported to the progress callback
type State string

const (
	StateFetching   State = "fetching"
	StateGenerating State = "generating"
)

// ProgressFunc observes generation. count and coverage are set for StateGenerating.
type ProgressFunc func(state State, count int, coverage float64)

// SourceFunc supplies the region's address ranges
type SourceFunc func(ctx context.Context) ([]cidr.AddressRange, error)

// Generate fetches ranges, computes the blocks and writes the routes file and
// both scripts. It returns the written paths.
func Generate(ctx context.Context, opts Options, source SourceFunc, progress ProgressFunc) ([]string, error) {
	if progress == nil {
		progress = func(State, int, float64) {}
	}
	if opts.Entry == "" {
		return nil, fmt.Errorf("VPN entry name is required")
	}
	for name, v := range map[string]string{"entry": opts.Entry, "username": opts.Username, "password": opts.Password} {
		if strings.ContainsAny(v, "\"\r\n") {
			return nil, fmt.Errorf("VPN %s must not contain quotes or line breaks", name)
		}
	}

	progress(StateFetching, 0, 0)
	ranges, err := source(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cidr.Compute(ranges, opts.MinSize)
	if err != nil {
		return nil, err
	}
	progress(StateGenerating, len(result.Blocks), result.Coverage())

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	routesPath := filepath.Join(dir, RoutesFile)
	if err := config.WriteRoutes(routesPath, result.Blocks); err != nil {
		return nil, err
	}
	written := []string{routesPath}

	vars := templateVars(opts)
	scripts := []struct{ name, tpl string }{
		{UpScript, upTemplate},
		{DownScript, downTemplate},
	}
	for _, script := range scripts {
		path := filepath.Join(dir, script.name)
		if err := os.WriteFile(path, []byte(render(script.tpl, vars)), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}

	return written, nil
}

func templateVars(opts Options) map[string]interface{} {
	exe := opts.Executable
	if exe == "" {
		exe = "luckyroute"
	}

	entry := batchEscape(opts.Entry)

	var credentials string
	if opts.Username != "" {
		credentials = fmt.Sprintf(" %s %s", batchQuote(opts.Username), batchQuote(opts.Password))
	}

	var phonebook string
	if opts.Phonebook != "" {
		phonebook = fmt.Sprintf(` /phonebook:"%s"`, batchEscape(opts.Phonebook))
	}

	var dns strings.Builder
	for i, server := range opts.DNSServers {
		if i == 0 {
			fmt.Fprintf(&dns, "netsh interface ip set dns name=\"%s\" source=static addr=%s register=none\n", entry, server)
			continue
		}
		fmt.Fprintf(&dns, "netsh interface ip add dns name=\"%s\" addr=%s index=%d\n", entry, server, i+1)
	}

	return map[string]interface{}{
		"entry":       entry,
		"credentials": credentials,
		"phonebook":   phonebook,
		"dns":         dns.String(),
		"exe":         exe,
		"routes":      RoutesFile,
		"metric":      strconv.Itoa(opts.Metric),
	}
}

// batchEscape doubles percent signs so cmd.exe does not expand them inside a quoted argument
func batchEscape(v string) string {
	return strings.ReplaceAll(v, "%", "%%")
}

// batchQuote wraps v in double quotes, where & ^ | < > and spaces are literal
func batchQuote(v string) string {
	return `"` + batchEscape(v) + `"`
}

// render fills the template and converts it to CRLF line endings
func render(tpl string, vars map[string]interface{}) string {
	out := fasttemplate.New(tpl, "{{", "}}").ExecuteString(vars)
	out = strings.ReplaceAll(out, "\r\n", "\n")
	return strings.ReplaceAll(out, "\n", "\r\n")
}
