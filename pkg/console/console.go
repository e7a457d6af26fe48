package console

import (
	"fmt"
	"io"
	"sync"
)

// Console is the line-oriented output the sampling loop reports to.
type Console interface {
	// ClearStatus drops stale state (pending input, sticky errors).
	ClearStatus()
	// WriteLine writes text followed by the console's line ending.
	WriteLine(text string) error
}

var _ Console = (*Writer)(nil)

// Writer is a Console over any io.Writer.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	eol   string
	err   error
	lines int
}

// NewWriter creates a console writing to w. An empty eol defaults to "\n".
func NewWriter(w io.Writer, eol string) *Writer {
	if eol == "" {
		eol = "\n"
	}
	return &Writer{w: w, eol: eol}
}

// ClearStatus forgets the last write error.
func (c *Writer) ClearStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
}

// WriteLine writes one line. The error is also kept until ClearStatus.
func (c *Writer) WriteLine(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, text+c.eol); err != nil {
		c.err = fmt.Errorf("console write: %w", err)
		return c.err
	}
	c.lines++
	return nil
}

// Err returns the last write error since ClearStatus.
func (c *Writer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Lines returns the number of lines written successfully.
func (c *Writer) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}
