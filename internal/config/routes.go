package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wesleywu/lucky-route/internal/routing/cidr"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// ParseRoutes reads "network/prefixLength" lines. Blank lines and # comments
// are skipped; repeated networks keep their first occurrence.
func ParseRoutes(r io.Reader) ([]cidr.Block, error) {
	set := entities.NewNetworkSet()
	scanner := bufio.NewScanner(r)

	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		block, err := cidr.ParseBlock(line)
		if err != nil {
			return nil, &types.RouteError{
				Kind:        types.ErrMalformedInput,
				Destination: line,
				Message:     fmt.Sprintf("invalid route at line %d", lineNum),
				Cause:       err,
			}
		}
		set.Add(block)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}

	return set.Blocks(), nil
}

// LoadRoutes reads a routes file
func LoadRoutes(file string) ([]cidr.Block, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", file, err)
	}
	defer f.Close()

	blocks, err := ParseRoutes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return blocks, nil
}

// WriteRoutes writes one block per line
func WriteRoutes(file string, blocks []cidr.Block) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", file, err)
	}

	w := bufio.NewWriter(f)
	for _, b := range blocks {
		fmt.Fprintln(w, b)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file %s: %w", file, err)
	}
	return f.Close()
}
