package main

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter rewrites a single status line every 100 operations and on the last one
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	verb string
}

func newProgressPrinter(w io.Writer, verb string) *progressPrinter {
	return &progressPrinter{w: w, verb: verb}
}

func (p *progressPrinter) Update(done, total int) {
	if done%100 != 0 && done != total {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if done > 0 {
		fmt.Fprint(p.w, "\r")
	}
	fmt.Fprintf(p.w, "%s %d/%d...", p.verb, done, total)
	if done == total {
		fmt.Fprintln(p.w)
	}
}
