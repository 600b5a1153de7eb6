package sieve

import (
	"fmt"
	"strings"
)

// snapshot is a saved cursor state. Restoring it rolls back both the
// position and the error.
type snapshot struct {
	pos int
	err string
}

// cursor is a position-based reader over the script source. It never
// refuses to move when an error is set; the grammar functions decide when
// to stop by looking at ok().
type cursor struct {
	input string
	pos   int
	err   string
}

func (c *cursor) ok() bool {
	return c.err == ""
}

// setError records e unless an error is already present. An empty e clears
// the current error.
func (c *cursor) setError(e string) {
	if c.err == "" || e == "" {
		c.err = e
	}
}

func (c *cursor) mark() snapshot {
	return snapshot{pos: c.pos, err: c.err}
}

func (c *cursor) restore(s snapshot) {
	c.pos = s.pos
	c.err = s.err
}

func (c *cursor) atEnd() bool {
	return c.pos >= len(c.input)
}

// next returns the byte at the cursor, or 0 at the end of input.
func (c *cursor) next() byte {
	if c.atEnd() {
		return 0
	}
	return c.input[c.pos]
}

// peek returns the byte n positions ahead of the cursor, or 0.
func (c *cursor) peek(n int) byte {
	if c.pos+n >= len(c.input) {
		return 0
	}
	return c.input[c.pos+n]
}

func (c *cursor) step(n int) {
	c.pos += n
	if c.pos > len(c.input) {
		c.pos = len(c.input)
	}
}

// present consumes s if the input continues with it, comparing
// case-insensitively.
func (c *cursor) present(s string) bool {
	if len(c.input)-c.pos < len(s) {
		return false
	}
	if !strings.EqualFold(c.input[c.pos:c.pos+len(s)], s) {
		return false
	}
	c.pos += len(s)
	return true
}

func (c *cursor) require(s string) {
	if !c.present(s) {
		c.setError(fmt.Sprintf("Expected: '%s', got: %s", s, c.following()))
	}
}

// lineEnd consumes CRLF or a bare LF.
func (c *cursor) lineEnd() bool {
	return c.present("\r\n") || c.present("\n")
}

// atLineEnd reports whether the cursor sits on CRLF or LF without
// consuming it.
func (c *cursor) atLineEnd() bool {
	n := c.next()
	return n == '\n' || (n == '\r' && c.peek(1) == '\n')
}

// digits consumes between min and max decimal digits.
func (c *cursor) digits(min, max int) string {
	start := c.pos
	for c.pos-start < max && c.next() >= '0' && c.next() <= '9' {
		c.pos++
	}
	if c.pos-start < min {
		c.setError(fmt.Sprintf("Expected at least %d digits, got: %s", min, c.following()))
	}
	return c.input[start:c.pos]
}

// following returns a short excerpt of what follows the cursor on the
// current line, for error messages.
func (c *cursor) following() string {
	if c.atEnd() {
		return "end of input"
	}
	rest := c.input[c.pos:]
	if i := strings.IndexAny(rest, "\r\n"); i >= 0 {
		rest = rest[:i]
	}
	if len(rest) > 15 {
		rest = rest[:15]
	}
	if rest == "" {
		return "end of line"
	}
	return rest
}
