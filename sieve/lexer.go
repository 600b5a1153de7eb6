package sieve

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// whitespace skips any mix of spaces, line endings and comments.
func (p *Parser) whitespace() {
	for {
		before := p.pos
		switch p.next() {
		case '#', '/':
			p.comment()
		case ' ', '\t', '\r', '\n':
			p.step(1)
		}
		if !p.ok() || p.pos == before {
			return
		}
	}
}

// comment = bracket-comment / hash-comment
func (p *Parser) comment() {
	p.bracketComment()
	p.hashComment()
}

// bracket-comment = "/*" *not-star 1*STAR *(not-star-slash *not-star 1*STAR) "/"
//
// No "*/" is allowed inside the comment. An unterminated comment leaves
// the cursor on its "/*".
func (p *Parser) bracketComment() {
	start := p.pos
	if !p.present("/*") {
		return
	}
	i := strings.Index(p.input[p.pos:], "*/")
	if i < 0 {
		p.pos = start
		p.setError("Bracket comment not terminated")
		return
	}
	p.step(i + 2)
}

// hash-comment = "#" *octet-not-crlf CRLF
func (p *Parser) hashComment() {
	start := p.pos
	if !p.present("#") {
		return
	}
	i := strings.IndexByte(p.input[p.pos:], '\n')
	if i < 0 {
		p.pos = start
		p.setError("Could not find a line ending in hash comment")
		return
	}
	p.step(i + 1)
}

// identifier = (ALPHA / "_") *(ALPHA / DIGIT / "_")
//
// Records an error if no identifier is present. Case is preserved.
func (p *Parser) identifier() string {
	p.whitespace()
	start := p.pos
	for {
		c := p.next()
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9' && p.pos > start) {
			p.step(1)
			continue
		}
		break
	}
	if p.pos == start {
		p.setError("Could not find an identifier, got: " + p.following())
	}
	return p.input[start:p.pos]
}

// tag = ":" identifier
//
// The result includes the colon.
func (p *Parser) tag() string {
	p.whitespace()
	p.require(":")
	return ":" + p.identifier()
}

// number = 1*DIGIT [ QUANTIFIER ]
//
//	QUANTIFIER = "K" / "M" / "G"
//
// Returns 0 and records an error if the value does not fit in 32 bits.
func (p *Parser) number() uint32 {
	d := p.digits(1, 30)
	var f uint64 = 1
	switch {
	case p.present("k"):
		f = 1024
	case p.present("m"):
		f = 1024 * 1024
	case p.present("g"):
		f = 1024 * 1024 * 1024
	}
	if !p.ok() {
		return 0
	}

	n, err := strconv.ParseUint(d, 10, 32)
	if err != nil {
		p.setError("Number " + d + " is too large")
		return 0
	}
	if n > math.MaxUint32/f {
		p.setError(fmt.Sprintf("Number %d is too large when scaled by %d", n, f))
		return 0
	}
	return uint32(n * f)
}

// quoted-string = DQUOTE quoted-text DQUOTE
//
//	quoted-text = *(quoted-safe / quoted-special / quoted-other)
//	quoted-other = "\" octet-not-qspecial
//	quoted-safe = CRLF / octet-not-qspecial
//	quoted-special = "\" ( DQUOTE / "\" )
func (p *Parser) quotedString() string {
	var b strings.Builder
	p.require("\"")
	for p.ok() && !p.atEnd() && p.next() != '"' {
		if p.present("\r\n") {
			b.WriteString("\r\n")
			continue
		}
		if p.next() == '\\' {
			p.step(1)
			if p.atEnd() {
				break
			}
		}
		b.WriteByte(p.next())
		p.step(1)
	}
	if p.ok() && p.atEnd() {
		p.setError("Quoted string not terminated")
	}
	p.require("\"")
	return p.decode(b.String())
}

// multi-line = "text:" *(SP / HTAB) (hash-comment / CRLF)
//
//	*(multiline-literal / multiline-dotstuff) "." CRLF
//	multiline-literal = [octet-not-period *octet-not-crlf] CRLF
//	multiline-dotstuff = "." 1*octet-not-crlf CRLF
//
// Each line of the result ends with CRLF, whichever line ending the source
// used.
func (p *Parser) multiLine() string {
	var b strings.Builder
	p.require("text:")
	for p.ok() && (p.next() == ' ' || p.next() == '\t') {
		p.step(1)
	}
	if p.ok() && !p.lineEnd() {
		if p.next() == '#' {
			p.hashComment()
		} else {
			p.setError("Expected a line ending after text:, got: " + p.following())
		}
	}
	for p.ok() {
		if p.atEnd() {
			p.setError("Multi-line string not terminated")
			break
		}
		if p.next() == '.' {
			p.step(1)
			if p.lineEnd() || p.atEnd() {
				break
			}
		}
		for !p.atEnd() && !p.atLineEnd() {
			b.WriteByte(p.next())
			p.step(1)
		}
		if !p.lineEnd() {
			p.setError("Multi-line string not terminated")
			break
		}
		b.WriteString("\r\n")
	}
	return p.decode(b.String())
}

// decode checks that s is valid UTF-8. On failure it returns an empty
// string and leaves an encoding error for the enclosing argument; the
// cursor itself stays ok, so parsing goes on.
func (p *Parser) decode(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			if p.encoding == "" {
				p.encoding = fmt.Sprintf("Encoding error: invalid UTF-8 at byte %d of string", i)
			}
			break
		}
		i += size
	}
	return ""
}

// string = quoted-string / multi-line
func (p *Parser) str() string {
	p.whitespace()
	if p.next() == '"' {
		return p.quotedString()
	}
	return p.multiLine()
}

// string-list = "[" string *("," string) "]" / string
//
// Never returns nil.
func (p *Parser) stringList() []string {
	p.whitespace()
	var l []string
	if p.present("[") {
		l = append(l, p.str())
		p.whitespace()
		for p.ok() && p.present(",") {
			l = append(l, p.str())
			p.whitespace()
		}
		p.require("]")
	} else {
		l = append(l, p.str())
	}
	return l
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// toLower lower-cases ASCII letters only; identifiers and tags are ASCII.
func toLower(s string) string {
	return strings.ToLower(s)
}
