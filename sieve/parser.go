package sieve

import (
	"fmt"
)

// Parser does the grammar work for one script: it turns source text into
// a tree of productions. The grammar doesn't guarantee that "if" has a
// test and so on; Command.Parse and Test.Parse do that second phase.
//
// A Parser also collects the productions found to be bad and the
// extensions the script needs. It is meant for a single parse and must not
// be shared between goroutines.
type Parser struct {
	cursor
	opts       Options
	depth      int
	resynced   bool
	fatal      string
	encoding   string
	bad        []Production
	extensions []string
}

// NewParser returns a parser for src. Unset option fields take their
// defaults.
func NewParser(src string, opts Options) *Parser {
	return &Parser{
		cursor: cursor{input: src},
		opts:   opts.withDefaults(),
	}
}

// Options returns the effective options.
func (p *Parser) Options() Options {
	return p.opts
}

// Bad returns the productions with errors that have top as their ultimate
// ancestor (top included), in source order. Productions that were parsed
// tentatively and then discarded by backtracking are never attached and
// so never returned.
func (p *Parser) Bad(top Production) []Production {
	r := []Production{}
	for _, b := range p.bad {
		if b.Error() == "" {
			continue
		}
		t := b
		for t != nil && t != top {
			t = t.Parent()
		}
		if t == top {
			r = append(r, b)
		}
	}
	return r
}

// rememberBadProduction adds b to the bad list, keeping it sorted by start
// position. Adding the same production twice has no effect.
func (p *Parser) rememberBadProduction(b Production) {
	if b == nil {
		return
	}
	i := 0
	for i < len(p.bad) && p.bad[i] != b && p.bad[i].Start() <= b.Start() {
		i++
	}
	if i < len(p.bad) && p.bad[i] == b {
		return
	}
	for _, x := range p.bad[i:] {
		if x == b {
			return
		}
	}
	p.bad = append(p.bad, nil)
	copy(p.bad[i+1:], p.bad[i:])
	p.bad[i] = b
}

// ExtensionsNeeded returns the extensions required by the productions
// parsed so far, without duplicates, in first-use order. Never nil.
func (p *Parser) ExtensionsNeeded() []string {
	r := []string{}
	seen := make(map[string]bool, len(p.extensions))
	for _, e := range p.extensions {
		if !seen[e] {
			seen[e] = true
			r = append(r, e)
		}
	}
	return r
}

func (p *Parser) rememberNeededExtension(extension string) {
	p.extensions = append(p.extensions, extension)
}

// enter increments the nesting depth, recording an error and returning
// false when the limit is passed. Callers must call leave either way.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > p.opts.MaxNestingDepth {
		p.setFatal(fmt.Sprintf("Nesting too deep (maximum %d levels)", p.opts.MaxNestingDepth))
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

// setFatal records an error that backtracking must not undo: the nesting
// limit, or a token that was recognisably started and then broken.
func (p *Parser) setFatal(e string) {
	if p.fatal == "" {
		p.fatal = e
	}
	p.setError(e)
}

// checkFatal reinstates the fatal error after a restore.
func (p *Parser) checkFatal() {
	if p.fatal != "" {
		p.setError(p.fatal)
	}
}

// committed reports whether a failed argument began like a string, string
// list or tag. Only an identifier can start the test that may follow the
// arguments, so such a failure is a real lexical error.
func (p *Parser) committed(a *Argument) bool {
	if a.Start() >= len(p.input) {
		return false
	}
	switch p.input[a.Start()] {
	case '"', '[', ':':
		return true
	}
	rest := p.input[a.Start():]
	return len(rest) >= 5 && toLower(rest[:5]) == "text:"
}

// argument = string-list / number / tag
//
// Never returns nil.
func (p *Parser) argument() *Argument {
	p.whitespace()

	a := newArgument(p)
	start := p.pos

	switch n := p.next(); {
	case n == ':':
		a.SetTag(toLower(p.tag()))
	case n >= '0' && n <= '9':
		a.SetNumber(p.number())
	default:
		a.SetStringList(p.stringList())
	}

	a.setSpan(start, p.pos)
	a.SetError(p.err)
	if p.encoding != "" {
		a.SetError(p.encoding)
		p.encoding = ""
	}

	// A number clears the pending error so that arguments() goes on to
	// read the next argument, too. The argument itself keeps the error.
	if a.IsNumber() {
		p.setError("")
	}
	return a
}

// arguments = *argument [test / test-list]
//
// This is where the grammar is ambiguous: a single trailing test looks like
// the start of a test list until the "(" is or isn't seen. Both the
// arguments and the test-list productions are handled here.
func (p *Parser) arguments() *ArgumentList {
	p.whitespace()

	l := newArgumentList(p)
	start := p.pos

	m := p.mark()
	for p.ok() {
		m = p.mark()
		a := p.argument()
		if p.ok() {
			l.Append(a)
		} else if p.committed(a) {
			l.Append(a)
			p.setFatal(p.err)
		}
	}
	p.restore(m)
	p.checkFatal()

	p.whitespace()
	if p.present("(") {
		// Only a test list starts with "(", so a failure from here on is
		// not undone by backtracking.
		p.whitespace()
		if p.next() == ')' {
			p.setError("Test list is empty")
		} else {
			l.AppendTest(p.test())
			p.whitespace()
			for p.ok() && p.present(",") {
				l.AppendTest(p.test())
				p.whitespace()
			}
		}
		p.require(")")
		if !p.ok() {
			p.setFatal(p.err)
		}
	} else if p.ok() {
		m = p.mark()
		t := p.test()
		if p.ok() {
			l.AppendTest(t)
		} else {
			p.restore(m)
			p.checkFatal()
		}
	}

	l.setSpan(start, p.pos)
	l.SetError(p.err)
	return l
}

// block = "{" *command "}"
func (p *Parser) block() *Block {
	p.whitespace()

	b := newBlock(p)
	start := p.pos
	p.require("{")

	if p.enter() {
		m := p.mark()
		for p.ok() {
			m = p.mark()
			c := p.command()
			if p.ok() || p.fatal != "" {
				b.Append(c)
			}
		}
		p.restore(m)
		p.checkFatal()
		p.resynced = false

		p.whitespace()
		p.require("}")
	}
	p.leave()

	b.setSpan(start, p.pos)
	b.SetError(p.err)
	return b
}

// command = identifier arguments ( ";" / block )
func (p *Parser) command() *Command {
	p.whitespace()

	c := newCommand(p)
	start := p.pos

	c.SetIdentifier(p.identifier())
	c.SetArguments(p.arguments())
	p.whitespace()
	if p.next() == '{' {
		c.SetBlock(p.block())
	} else if p.present(";") {
		// fine
	} else if p.ok() {
		p.setError("Garbage after command: " + p.following())
		p.resynced = p.skipToSemicolon()
	}

	c.setSpan(start, p.pos)
	c.SetError(p.err)
	return c
}

// skipToSemicolon steps past the rest of the line if it ends with ';', so
// that parsing can resume after a broken command.
func (p *Parser) skipToSemicolon() bool {
	x := p.pos
	for x < len(p.input) && p.input[x] != '\n' && p.input[x] != '\r' {
		x++
	}
	if x > p.pos && p.input[x-1] == ';' {
		p.step(x - p.pos)
		return true
	}
	return false
}

// Commands parses as many commands as possible from the current position.
// It never returns nil, and stops at the first command that does not
// parse cleanly, leaving the cursor in front of it.
//
//	commands = *command
//	start = commands
func (p *Parser) Commands() []*Command {
	p.whitespace()
	l := []*Command{}
	m := p.mark()
	for p.ok() {
		m = p.mark()
		c := p.command()
		if p.ok() {
			l = append(l, c)
		}
	}
	p.restore(m)
	return l
}

// commandsToEnd parses the whole input. Where Commands stops early the
// failing command is kept, with its error, and parsing resumes after it
// for as long as it makes progress. A broken token in a command without a
// block is skipped like garbage, up to a ';' ending the same line.
func (p *Parser) commandsToEnd() []*Command {
	l := p.Commands()
	for {
		p.whitespace()
		if p.atEnd() {
			break
		}
		p.resynced = false
		c := p.command()
		l = append(l, c)
		if !p.ok() {
			if !p.resynced && p.fatal != "" && c.Block() == nil {
				p.resynced = p.skipToSemicolon()
			}
			if !p.resynced {
				break
			}
			p.fatal = ""
			p.setError("")
		}
		l = append(l, p.Commands()...)
	}
	return l
}

// test = identifier arguments
func (p *Parser) test() *Test {
	p.whitespace()

	t := newTest(p)
	start := p.pos

	if p.enter() {
		t.SetIdentifier(p.identifier())
		if p.ok() {
			t.SetArguments(p.arguments())
		}
	}
	p.leave()

	if t.arguments == nil {
		l := newArgumentList(p)
		l.setSpan(p.pos, p.pos)
		t.SetArguments(l)
	}

	t.setSpan(start, p.pos)
	t.SetError(p.err)
	return t
}
