package sieve

import (
	"strconv"
	"strings"
)

// Command models the "command" production: an identifier, its arguments
// and an optional block.
type Command struct {
	production
	identifier       string
	arguments        *ArgumentList
	block            *Block
	requirePermitted bool
}

func newCommand(p *Parser) *Command {
	c := &Command{}
	c.init(KindCommand, c, p)
	return c
}

// SetIdentifier records the command name, lower-cased.
func (c *Command) SetIdentifier(i string) {
	c.identifier = toLower(i)
}

func (c *Command) Identifier() string {
	return c.identifier
}

func (c *Command) SetArguments(l *ArgumentList) {
	c.arguments = l
	if l != nil {
		l.setParent(c)
	}
}

func (c *Command) Arguments() *ArgumentList {
	return c.arguments
}

func (c *Command) SetBlock(b *Block) {
	c.block = b
	if b != nil {
		b.setParent(c)
	}
}

// Block returns the subsidiary block, or nil.
func (c *Command) Block() *Block {
	return c.block
}

// SetRequirePermitted marks whether require may appear here. Only the first
// top-level command is permitted to be require.
func (c *Command) SetRequirePermitted(p bool) {
	c.requirePermitted = p
}

// Parse does the semantic checks for the command and, recursively, its
// tests and block. previous is the identifier of the preceding sibling, or
// "" if there is none.
func (c *Command) Parse(previous string) {
	if c.arguments == nil {
		l := newArgumentList(c.parser)
		l.setSpan(c.end, c.end)
		c.SetArguments(l)
	}

	if c.identifier == "" {
		c.SetError("Command name is empty")
	}

	test := false
	blk := false

	switch c.identifier {
	case "if", "elsif":
		test = true
		blk = true
		if c.identifier == "elsif" && previous != "if" && previous != "elsif" {
			c.SetError("elsif is only permitted after if/elsif")
		}
	case "else":
		blk = true
		if previous != "if" && previous != "elsif" {
			c.SetError("else is only permitted after if/elsif")
		}
	case "require":
		c.parseRequire()
	case "stop", "keep", "discard":
	case "reject":
		if c.parser.opts.RejectReason {
			c.require("reject")
			c.arguments.TakeString()
		}
	case "fileinto":
		c.require("fileinto")
		c.parseFileinto()
	case "redirect":
		c.parseRedirect()
	case "":
	default:
		c.SetError("Command unknown: " + c.identifier)
	}

	c.arguments.FlagUnparsedAsBad()

	if test {
		if len(c.arguments.Tests()) != 1 {
			c.SetError("Command " + c.identifier + " requires one test")
		}
		for _, t := range c.arguments.Tests() {
			t.Parse()
		}
	} else {
		for _, t := range c.arguments.Tests() {
			t.SetError("Command " + c.identifier + " does not use tests")
		}
	}

	if blk {
		if c.block == nil {
			c.SetError("Command " + c.identifier + " requires a subsidiary {..} block")
		} else {
			prev := ""
			for _, sub := range c.block.Commands() {
				sub.Parse(prev)
				prev = sub.Identifier()
			}
		}
	} else if c.block != nil {
		c.block.SetError("Command " + c.identifier + " does not use a subsidiary command block")
	}
}

func (c *Command) parseRequire() {
	var unsupported []string
	for _, e := range c.arguments.TakeStringList() {
		if !c.parser.opts.supports(e) {
			unsupported = append(unsupported, strconv.Quote(e))
		}
	}
	if len(unsupported) > 0 {
		c.SetError("Each string must be a supported sieve extension. " +
			"These are not: " + strings.Join(unsupported, ", "))
	}
	if !c.requirePermitted {
		c.SetError("require is only permitted as the first command.")
	}
}

func (c *Command) parseFileinto() {
	mailbox := c.arguments.TakeString()
	valid := c.parser.opts.MailboxNameValid
	if !valid(mailbox) && !valid("/"+mailbox) {
		c.SetError("Expected mailbox name, but got: " + mailbox)
		return
	}
	if rest, ok := strings.CutPrefix(mailbox, "INBOX."); ok {
		suggested := strings.Join(strings.Split(rest, "."), "/")
		c.SetError(strconv.Quote(mailbox) + " is Cyrus syntax. Use " +
			strconv.Quote(suggested) + " instead")
	}
}

func (c *Command) parseRedirect() {
	s := c.arguments.TakeString()
	if _, err := c.parser.opts.ParseAddress(s); err != nil {
		c.SetError("Expected one normal address (local@domain), but got: " + s)
	}
}

// Declares returns the extension names listed by a require command, or nil
// for any other command.
func (c *Command) Declares() []string {
	if c.identifier != "require" || c.arguments == nil {
		return nil
	}
	for _, a := range c.arguments.Arguments() {
		if a.StringList() != nil {
			return a.StringList()
		}
	}
	return nil
}
