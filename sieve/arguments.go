package sieve

import (
	"fmt"
)

// The methods in this file implement the consumption protocol shared by
// the command and test validators. Every argument a validator looks at is
// marked parsed; FlagUnparsedAsBad then complains about the rest.

// ArgumentFollowingTag makes sure tag occurs at most once and returns the
// argument after it. Both are marked parsed. Returns nil if tag doesn't
// occur or is the last argument.
func (l *ArgumentList) ArgumentFollowingTag(tag string) *Argument {
	var first, result *Argument
	for i, a := range l.arguments {
		if a.tag == tag {
			if first != nil {
				first.SetError("Tag used twice: " + tag)
				a.SetError("Tag used twice: " + tag)
			} else {
				first = a
				first.SetParsed(true)
			}
		}
		if first != nil && result == nil {
			if i+1 < len(l.arguments) {
				result = l.arguments[i+1]
				result.SetParsed(true)
			} else {
				first.SetError("Tag not followed by argument: " + tag)
			}
		}
	}
	return result
}

// TakeTaggedString returns the single string following tag, or "" if the
// tag isn't there.
func (l *ArgumentList) TakeTaggedString(tag string) string {
	a := l.ArgumentFollowingTag(tag)
	if a == nil {
		return ""
	}
	a.assertString()
	if len(a.list) > 0 {
		return a.list[0]
	}
	return ""
}

// TakeTaggedStringList returns the string list following tag, or nil.
func (l *ArgumentList) TakeTaggedStringList(tag string) []string {
	a := l.ArgumentFollowingTag(tag)
	if a == nil {
		return nil
	}
	a.assertStringList()
	return a.list
}

// TakeTaggedNumber returns the number following tag, or 0.
func (l *ArgumentList) TakeTaggedNumber(tag string) uint32 {
	a := l.ArgumentFollowingTag(tag)
	if a == nil {
		return 0
	}
	a.assertNumber()
	return a.number
}

// FindTag returns the argument carrying tag, marked parsed. If the tag
// occurs more than once every occurrence is flagged and the first is
// returned.
func (l *ArgumentList) FindTag(tag string) *Argument {
	var r *Argument
	for _, a := range l.arguments {
		if a.tag != tag {
			continue
		}
		if r == nil {
			r = a
			continue
		}
		r.SetError("Tag occurs twice: " + tag)
		a.SetError("Tag occurs twice: " + tag)
	}
	if r != nil {
		r.SetParsed(true)
	}
	return r
}

// AllowOneTag asserts that at most one of tags occurs.
func (l *ArgumentList) AllowOneTag(tags ...string) {
	var seen []*Argument
	for _, a := range l.arguments {
		if a.tag == "" {
			continue
		}
		for _, t := range tags {
			if a.tag == t {
				seen = append(seen, a)
				break
			}
		}
	}
	if len(seen) < 2 {
		return
	}
	seen[0].SetError("Mutually exclusive tags used")
	for _, a := range seen[1:] {
		a.SetError(fmt.Sprintf("Tag %s conflicts with %s", seen[0].tag, a.tag))
	}
}

// FlagUnparsedAsBad marks every argument no validator consumed.
func (l *ArgumentList) FlagUnparsedAsBad() {
	for _, a := range l.arguments {
		switch {
		case a.parsed:
		case a.hasNumber:
			a.SetError("Why is this number here?")
		case a.list != nil:
			a.SetError("Why is this string/list here?")
		case a.tag != "":
			a.SetError("Unknown tag: " + a.tag)
		default:
			a.SetError("Unparsable argument")
		}
	}
}

func (l *ArgumentList) firstUnparsed() *Argument {
	for _, a := range l.arguments {
		if !a.parsed {
			return a
		}
	}
	return nil
}

// TakeStringList consumes the first unparsed argument as a string list.
// Returns nil and records an error if none is left.
func (l *ArgumentList) TakeStringList() []string {
	a := l.firstUnparsed()
	if a == nil {
		l.SetError("Missing string/list argument")
		return nil
	}
	a.assertStringList()
	a.SetParsed(true)
	return a.list
}

// TakeString consumes the first unparsed argument as a single string.
func (l *ArgumentList) TakeString() string {
	a := l.firstUnparsed()
	if a == nil {
		l.SetError("Missing string argument")
		return ""
	}
	a.assertString()
	a.SetParsed(true)
	if len(a.list) > 0 {
		return a.list[0]
	}
	return ""
}
