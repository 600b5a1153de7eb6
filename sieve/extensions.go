package sieve

import (
	"fmt"
	"strings"

	"github.com/migadu/sievelint/consts"
	"github.com/migadu/sievelint/helpers"
)

// KnownExtensions lists every extension the validators know how to check.
// Only these may be configured as supported.
var KnownExtensions = []string{
	"body",       // RFC 5173 - body test
	"envelope",   // RFC 5228 - envelope test
	"fileinto",   // RFC 5228 - fileinto command
	"reject",     // RFC 5429 - reject command
	"subaddress", // RFC 5233 - :user and :detail address parts
}

// DefaultSupportedExtensions is what a parser accepts in require when no
// list is configured.
var DefaultSupportedExtensions = []string{
	"envelope",
	"fileinto",
	"reject",
	"body",
	"subaddress",
}

// DefaultMaxNestingDepth bounds blocks within blocks and tests within
// tests.
const DefaultMaxNestingDepth = 64

// Options configures one parse.
type Options struct {
	// SupportedExtensions is the authoritative list of names require may
	// mention.
	SupportedExtensions []string
	// MailboxNameValid reports whether fileinto may target a mailbox name.
	MailboxNameValid func(name string) bool
	// ParseAddress must accept exactly one local@domain address.
	ParseAddress func(s string) (helpers.Address, error)
	// MaxNestingDepth is the deepest block or test nesting accepted.
	MaxNestingDepth int
	// RejectReason checks reject as RFC 5429 does: it needs the reject
	// extension and one reason string. Off, reject is a plain command
	// like discard.
	RejectReason bool
}

// DefaultOptions returns options backed by the helpers package.
func DefaultOptions() Options {
	exts := make([]string, len(DefaultSupportedExtensions))
	copy(exts, DefaultSupportedExtensions)
	return Options{
		SupportedExtensions: exts,
		MailboxNameValid:    helpers.IsValidMailboxName,
		ParseAddress:        helpers.ParseSingleNormalAddress,
		MaxNestingDepth:     DefaultMaxNestingDepth,
	}
}

// withDefaults fills unset fields. A nil extension list means the
// defaults; an empty non-nil list means nothing is supported.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SupportedExtensions == nil {
		o.SupportedExtensions = d.SupportedExtensions
	}
	if o.MailboxNameValid == nil {
		o.MailboxNameValid = d.MailboxNameValid
	}
	if o.ParseAddress == nil {
		o.ParseAddress = d.ParseAddress
	}
	if o.MaxNestingDepth <= 0 {
		o.MaxNestingDepth = d.MaxNestingDepth
	}
	return o
}

func (o Options) supports(extension string) bool {
	for _, e := range o.SupportedExtensions {
		if e == extension {
			return true
		}
	}
	return false
}

// ValidateExtensions checks that every name is one of KnownExtensions.
func ValidateExtensions(extensions []string) error {
	known := make(map[string]bool, len(KnownExtensions))
	for _, ext := range KnownExtensions {
		known[ext] = true
	}

	var invalid []string
	for _, ext := range extensions {
		if !known[ext] {
			invalid = append(invalid, ext)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s (known: %s)", consts.ErrInvalidExtension,
			strings.Join(invalid, ", "), strings.Join(KnownExtensions, ", "))
	}
	return nil
}
