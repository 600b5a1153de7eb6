package sieve

import (
	"sort"
	"strconv"
	"strings"
)

// ScriptProduction is the production name used for diagnostics that
// concern the script as a whole rather than one node.
const ScriptProduction = "script"

// Diagnostic is one problem found in a script.
type Diagnostic struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Production string `json:"production"`
	Message    string `json:"message"`
}

// Script is the result of parsing and validating one script.
type Script struct {
	src        string
	parser     *Parser
	commands   []*Command
	declared   []string
	undeclared []string
	lines      []int
}

// Parse runs both phases over src: the grammar, then the semantic checks
// on every command. It never fails; problems are attached to the tree and
// reported by Diagnostics.
func Parse(src string, opts Options) *Script {
	p := NewParser(src, opts)
	s := &Script{src: src, parser: p}

	s.commands = p.commandsToEnd()
	if len(s.commands) > 0 {
		s.commands[0].SetRequirePermitted(true)
	}
	prev := ""
	for _, c := range s.commands {
		c.Parse(prev)
		prev = c.Identifier()
	}

	s.declared = []string{}
	if len(s.commands) > 0 && s.commands[0].Identifier() == "require" {
		s.declared = append(s.declared, s.commands[0].Declares()...)
	}

	s.undeclared = []string{}
	for _, e := range p.ExtensionsNeeded() {
		if !contains(s.declared, e) {
			s.undeclared = append(s.undeclared, e)
		}
	}
	return s
}

func contains(l []string, s string) bool {
	for _, x := range l {
		if x == s {
			return true
		}
	}
	return false
}

// Commands returns the top-level commands. Never nil.
func (s *Script) Commands() []*Command {
	return s.commands
}

// Parser returns the parser used, which holds the raw error registry.
func (s *Script) Parser() *Parser {
	return s.parser
}

// Bad returns every production with an error, in source order.
func (s *Script) Bad() []Production {
	r := []Production{}
	for _, c := range s.commands {
		r = append(r, s.parser.Bad(c)...)
	}
	sort.SliceStable(r, func(i, j int) bool { return r[i].Start() < r[j].Start() })
	return r
}

// ExtensionsNeeded returns the extensions the script uses.
func (s *Script) ExtensionsNeeded() []string {
	return s.parser.ExtensionsNeeded()
}

// Declared returns the extensions named by the require command that opens
// the script. Only that one is permitted; a later require is an error and
// declares nothing.
func (s *Script) Declared() []string {
	return s.declared
}

// Undeclared returns the extensions used without being declared.
func (s *Script) Undeclared() []string {
	return s.undeclared
}

// Diagnostics returns one entry per distinct problem. An error that spread
// from a node to its ancestors is reported once, on the innermost node.
// A missing require is reported last, as a script-level diagnostic.
func (s *Script) Diagnostics() []Diagnostic {
	bad := s.Bad()
	shadowed := make(map[Production]bool)
	for _, b := range bad {
		for a := b.Parent(); a != nil; a = a.Parent() {
			if a.Error() == b.Error() {
				shadowed[a] = true
			}
		}
	}

	r := []Diagnostic{}
	for _, b := range bad {
		if shadowed[b] {
			continue
		}
		line, col := s.position(b.Start())
		r = append(r, Diagnostic{
			Start:      b.Start(),
			End:        b.End(),
			Line:       line,
			Column:     col,
			Production: b.Name(),
			Message:    b.Error(),
		})
	}

	if len(s.undeclared) > 0 {
		q := make([]string, len(s.undeclared))
		for i, e := range s.undeclared {
			q[i] = strconv.Quote(e)
		}
		r = append(r, Diagnostic{
			Line:       1,
			Column:     1,
			Production: ScriptProduction,
			Message:    "Extension(s) used but not declared with require: " + strings.Join(q, ", "),
		})
	}
	return r
}

// Valid reports whether the script has no diagnostics at all.
func (s *Script) Valid() bool {
	return len(s.Diagnostics()) == 0
}

// position converts a byte offset to a 1-based line and column.
func (s *Script) position(offset int) (int, int) {
	if s.lines == nil {
		s.lines = []int{0}
		for i := 0; i < len(s.src); i++ {
			if s.src[i] == '\n' {
				s.lines = append(s.lines, i+1)
			}
		}
	}
	n := sort.Search(len(s.lines), func(i int) bool { return s.lines[i] > offset })
	return n, offset - s.lines[n-1] + 1
}
