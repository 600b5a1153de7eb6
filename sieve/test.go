package sieve

import (
	"fmt"
	"strings"
)

// MatchType says how a test compares a subject against its keys.
type MatchType int

const (
	Is MatchType = iota
	Matches
	Contains
)

// AddressPart says which part of an address a test examines.
type AddressPart int

const (
	NoAddressPart AddressPart = iota
	Localpart
	Domain
	User
	Detail
	All
)

// Comparator is a string comparison algorithm, see RFC 4790.
type Comparator int

const (
	IAsciiCasemap Comparator = iota
	IOctet
)

func (c Comparator) String() string {
	if c == IOctet {
		return "i;octet"
	}
	return "i;ascii-casemap"
}

// BodyMatchType says which form of the body a body test examines.
type BodyMatchType int

const (
	Text BodyMatchType = iota
	Rfc822
	SpecifiedTypes
)

// Test models the "test" production. Parse fills in the typed fields.
type Test struct {
	production
	identifier    string
	arguments     *ArgumentList
	matchType     MatchType
	addressPart   AddressPart
	comparator    Comparator
	bodyMatchType BodyMatchType
	headers       []string
	keys          []string
	envelopeParts []string
	contentTypes  []string
	sizeOver      bool
	sizeLimit     uint32
}

func newTest(p *Parser) *Test {
	t := &Test{}
	t.init(KindTest, t, p)
	return t
}

// SetIdentifier records the test name, lower-cased.
func (t *Test) SetIdentifier(i string) {
	t.identifier = toLower(i)
}

func (t *Test) Identifier() string {
	return t.identifier
}

func (t *Test) SetArguments(l *ArgumentList) {
	t.arguments = l
	if l != nil {
		l.setParent(t)
	}
}

func (t *Test) Arguments() *ArgumentList {
	return t.arguments
}

// Parse does the semantic checks for the test and its subsidiary tests.
func (t *Test) Parse() {
	if t.arguments == nil {
		l := newArgumentList(t.parser)
		l.setSpan(t.end, t.end)
		t.SetArguments(l)
	}
	args := t.arguments

	switch t.identifier {
	case "address":
		t.findComparator()
		t.findMatchType()
		t.findAddressPart()
		t.headers = t.takeHeaderFieldList()
		t.keys = args.TakeStringList()
	case "allof", "anyof":
		if len(args.Arguments()) > 0 {
			t.SetError("Test '" + t.identifier + "' does not accept arguments, only a list of tests")
		}
		if len(args.Tests()) == 0 {
			t.SetError("Need at least one subsidiary test")
		}
		for _, sub := range args.Tests() {
			sub.Parse()
		}
	case "envelope":
		t.require("envelope")
		t.findComparator()
		t.findMatchType()
		t.findAddressPart()
		t.parseEnvelopeParts()
		t.keys = args.TakeStringList()
	case "exists":
		t.headers = t.takeHeaderFieldList()
	case "false", "true":
	case "header":
		t.findComparator()
		t.findMatchType()
		t.headers = t.takeHeaderFieldList()
		t.keys = args.TakeStringList()
	case "not":
		if len(args.Arguments()) > 0 {
			t.SetError("Test 'not' does not accept arguments, only a test")
		}
		if len(args.Tests()) != 1 {
			t.SetError("Test 'not' needs exactly one subsidiary test")
		} else {
			args.Tests()[0].Parse()
		}
	case "size":
		args.AllowOneTag(":over", ":under")
		if args.FindTag(":over") != nil {
			t.sizeOver = true
			t.sizeLimit = args.TakeTaggedNumber(":over")
		} else if args.FindTag(":under") != nil {
			t.sizeOver = false
			t.sizeLimit = args.TakeTaggedNumber(":under")
		} else {
			t.SetError("Test 'size' needs either :over or :under")
		}
	case "body":
		t.require("body")
		t.findComparator()
		t.findMatchType()
		args.AllowOneTag(":raw", ":text", ":content")
		if args.FindTag(":raw") != nil {
			t.bodyMatchType = Rfc822
		} else if args.FindTag(":text") != nil {
			t.bodyMatchType = Text
		} else if args.FindTag(":content") != nil {
			t.bodyMatchType = SpecifiedTypes
			t.contentTypes = args.TakeTaggedStringList(":content")
		}
		t.keys = args.TakeStringList()
	default:
		t.SetError("Unknown test: " + t.identifier)
	}

	args.FlagUnparsedAsBad()
}

// parseEnvelopeParts takes the envelope part list and lower-cases it.
// "from" and "to" are the only parts known.
func (t *Test) parseEnvelopeParts() {
	a := t.arguments.firstUnparsed()
	parts := t.arguments.TakeStringList()
	for i, s := range parts {
		l := strings.ToLower(s)
		if l == "from" || l == "to" {
			parts[i] = l
		} else if a != nil {
			a.SetError("Unsupported envelope part: " + s)
		}
	}
	t.envelopeParts = parts
}

func (t *Test) findComparator() {
	a := t.arguments.ArgumentFollowingTag(":comparator")
	if a == nil {
		return
	}
	a.assertString()
	if len(a.list) != 1 {
		return
	}
	switch c := a.list[0]; {
	case c == "i;octet":
		t.comparator = IOctet
	case c == "i;ascii-casemap":
		t.comparator = IAsciiCasemap
	case !isASCII(c):
		a.SetError("Comparator name must be all-ASCII")
	case c != "":
		a.SetError("Unknown comparator: " + c)
	}
}

func (t *Test) findMatchType() {
	args := t.arguments
	args.AllowOneTag(":is", ":matches", ":contains")
	if args.FindTag(":is") != nil {
		t.matchType = Is
	} else if args.FindTag(":matches") != nil {
		t.matchType = Matches
	} else if args.FindTag(":contains") != nil {
		t.matchType = Contains
	}
}

func (t *Test) findAddressPart() {
	args := t.arguments
	args.AllowOneTag(":localpart", ":domain", ":user", ":detail", ":all")
	switch {
	case args.FindTag(":localpart") != nil:
		t.addressPart = Localpart
	case args.FindTag(":domain") != nil:
		t.addressPart = Domain
	case args.FindTag(":user") != nil:
		t.addressPart = User
	case args.FindTag(":detail") != nil:
		t.addressPart = Detail
	case args.FindTag(":all") != nil:
		t.addressPart = All
	}
	if t.addressPart == User || t.addressPart == Detail {
		t.require("subaddress")
	}
}

// takeHeaderFieldList consumes the first unparsed string list and checks
// that each string is a valid header field name (RFC 5322 section 3.6.8).
// For the address test each name must also be an address field. The names
// are returned in canonical case.
func (t *Test) takeHeaderFieldList() []string {
	var a *Argument
	for _, x := range t.arguments.Arguments() {
		if !x.parsed && x.list != nil {
			a = x
			break
		}
	}
	if a == nil {
		t.SetError("Missing string/list argument")
		return nil
	}
	a.SetParsed(true)

	for i, s := range a.list {
		if s == "" {
			a.SetError("Empty header field names are not allowed")
		}
		for j := 0; j < len(s); j++ {
			if s[j] < 33 || s[j] == ':' || s[j] > 126 {
				a.SetError(fmt.Sprintf("Illegal character (ASCII %d) seen in header field name: %s", s[j], s))
			}
		}
		if t.identifier == "address" {
			ft := FieldTypeOf(s)
			if ft == UnknownField || ft > LastAddressField {
				a.SetError("Not an address field: " + s)
			}
		}
		a.list[i] = CanonicalFieldName(s)
	}
	return a.list
}

func (t *Test) MatchType() MatchType {
	return t.matchType
}

// AddressPart returns the address part, or NoAddressPart if none was given.
func (t *Test) AddressPart() AddressPart {
	return t.addressPart
}

// Comparator returns the comparator, IAsciiCasemap by default.
func (t *Test) Comparator() Comparator {
	return t.comparator
}

// BodyMatchType is meaningful only for body tests. Text is the default.
func (t *Test) BodyMatchType() BodyMatchType {
	return t.bodyMatchType
}

// Headers returns the header names the test looks at, or nil.
func (t *Test) Headers() []string {
	return t.headers
}

// Keys returns the strings searched for, or nil for tests like exists.
func (t *Test) Keys() []string {
	return t.keys
}

func (t *Test) EnvelopeParts() []string {
	return t.envelopeParts
}

// ContentTypes returns the types given with :content, or nil.
func (t *Test) ContentTypes() []string {
	return t.contentTypes
}

// SizeOver is true for :over and false for :under.
func (t *Test) SizeOver() bool {
	return t.sizeOver
}

func (t *Test) SizeLimit() uint32 {
	return t.sizeLimit
}
