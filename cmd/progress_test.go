package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, "Added")

	for done := 0; done <= 250; done++ {
		p.Update(done, 250)
	}

	assert.Equal(t, "Added 0/250...\rAdded 100/250...\rAdded 200/250...\rAdded 250/250...\n", buf.String())
}

func TestProgressPrinterEmpty(t *testing.T) {
	var buf bytes.Buffer
	newProgressPrinter(&buf, "Deleted").Update(0, 0)

	assert.Equal(t, "Deleted 0/0...\n", buf.String())
}
