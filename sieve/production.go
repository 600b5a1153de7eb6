package sieve

// Kind identifies the concrete type of a Production.
type Kind int

const (
	KindArgument Kind = iota
	KindArgumentList
	KindBlock
	KindCommand
	KindTest
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindArgumentList:
		return "arguments"
	case KindBlock:
		return "block"
	case KindCommand:
		return "command"
	case KindTest:
		return "test"
	default:
		return "unknown"
	}
}

// Production is one node of the syntax tree. Every node knows where in the
// source it came from and carries at most one error.
type Production interface {
	Kind() Kind
	// Name is the grammar symbol this node was parsed from.
	Name() string
	Start() int
	End() int
	Parent() Production
	Error() string
	SetError(e string)
}

// production holds what all nodes share. self points back at the node that
// embeds it so the parser can register the node rather than this struct.
type production struct {
	kind   Kind
	start  int
	end    int
	parent Production
	err    string
	parser *Parser
	self   Production
}

func (p *production) init(kind Kind, self Production, parser *Parser) {
	p.kind = kind
	p.self = self
	p.parser = parser
}

func (p *production) Kind() Kind {
	return p.kind
}

func (p *production) Name() string {
	return p.kind.String()
}

// Start is the byte offset at which the production begins.
func (p *production) Start() int {
	return p.start
}

// End is the byte offset just past the production.
func (p *production) End() int {
	return p.end
}

func (p *production) setSpan(start, end int) {
	p.start = start
	p.end = end
}

// Parent returns the node holding this one, or nil for top-level commands.
// It is a back-reference only and is set once, when the node is attached.
func (p *production) Parent() Production {
	return p.parent
}

func (p *production) setParent(parent Production) {
	if p.parent == nil {
		p.parent = parent
	}
}

func (p *production) Error() string {
	return p.err
}

// SetError records e. The first non-empty error sticks; an empty e clears
// it. Nodes with an error are registered with their parser.
func (p *production) SetError(e string) {
	if p.err == "" || e == "" {
		p.err = e
	}
	if p.err != "" && p.parser != nil {
		p.parser.rememberBadProduction(p.self)
	}
}

// require notes that the script depends on extension.
func (p *production) require(extension string) {
	if p.parser != nil {
		p.parser.rememberNeededExtension(extension)
	}
}

// Argument models the "argument" production: a tag, a number or a string
// list. In well-formed use exactly one of the three is set.
type Argument struct {
	production
	tag       string
	number    uint32
	hasNumber bool
	list      []string
	calls     int
	parsed    bool
}

func newArgument(p *Parser) *Argument {
	a := &Argument{}
	a.init(KindArgument, a, p)
	return a
}

// SetTag records a tag, which should start with ':'.
func (a *Argument) SetTag(t string) {
	a.tag = t
	a.calls++
}

// Tag returns the tag including its leading ':', or "".
func (a *Argument) Tag() string {
	return a.tag
}

func (a *Argument) SetNumber(n uint32) {
	a.number = n
	a.hasNumber = true
	a.calls++
}

// IsNumber reports whether SetNumber was called, which matters for 0.
func (a *Argument) IsNumber() bool {
	return a.hasNumber
}

// Number returns the number, or 0 if the argument is not a number.
func (a *Argument) Number() uint32 {
	return a.number
}

// SetStringList records a string list. A nil list is ignored.
func (a *Argument) SetStringList(l []string) {
	if l == nil {
		return
	}
	a.list = l
	a.calls++
}

// StringList returns the strings, or nil if the argument isn't a list.
func (a *Argument) StringList() []string {
	return a.list
}

// Calls reports how many setters were used. More than one means the
// argument was built incorrectly.
func (a *Argument) Calls() int {
	return a.calls
}

func (a *Argument) SetParsed(p bool) {
	a.parsed = p
}

// Parsed reports whether semantic validation has consumed this argument.
func (a *Argument) Parsed() bool {
	return a.parsed
}

func (a *Argument) assertNumber() {
	if a.tag != "" {
		a.SetError("Expected a number here, not a tag")
	} else if a.list != nil {
		a.SetError("Expected a number here, not a string or string list")
	} else if !a.hasNumber {
		a.SetError("Expected a number here")
	}
}

func (a *Argument) assertString() {
	switch {
	case a.tag != "":
		a.SetError("Expected a string here, not a tag")
	case a.hasNumber:
		a.SetError("Expected a string here, not a number")
	case len(a.list) == 0:
		a.SetError("Expected a single string here")
	case len(a.list) != 1:
		a.SetError("Expected a single string here, not a string list")
	}
}

func (a *Argument) assertStringList() {
	switch {
	case a.tag != "":
		a.SetError("Expected a string list here, not a tag")
	case a.hasNumber:
		a.SetError("Expected a string list here, not a number")
	case len(a.list) == 0:
		a.SetError("Expected a single string here")
	}
}

// ArgumentList models the "arguments" production: positional arguments
// followed by either one test or a parenthesised test list.
type ArgumentList struct {
	production
	arguments []*Argument
	tests     []*Test
}

func newArgumentList(p *Parser) *ArgumentList {
	l := &ArgumentList{}
	l.init(KindArgumentList, l, p)
	return l
}

// Append adds a to the positional arguments. A nil a is ignored.
func (l *ArgumentList) Append(a *Argument) {
	if a == nil {
		return
	}
	l.arguments = append(l.arguments, a)
	a.setParent(l)
}

// AppendTest adds t to the tests. A nil t is ignored.
func (l *ArgumentList) AppendTest(t *Test) {
	if t == nil {
		return
	}
	l.tests = append(l.tests, t)
	t.setParent(l)
}

func (l *ArgumentList) Arguments() []*Argument {
	return l.arguments
}

func (l *ArgumentList) Tests() []*Test {
	return l.tests
}

// Block models a { ... } group of commands.
type Block struct {
	production
	commands []*Command
}

func newBlock(p *Parser) *Block {
	b := &Block{}
	b.init(KindBlock, b, p)
	return b
}

func (b *Block) Append(c *Command) {
	if c == nil {
		return
	}
	b.commands = append(b.commands, c)
	c.setParent(b)
}

func (b *Block) Commands() []*Command {
	return b.commands
}
