package helpers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

// DomainNameRegex matches a dot-separated host name.
const DomainNameRegex = `^(?i)(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)*[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`

var domainNameRe = regexp.MustCompile(DomainNameRegex)

// Address is a normal local@domain address.
type Address struct {
	fullAddress string
	localPart   string
	domain      string
	detail      string
}

func (a Address) FullAddress() string {
	return a.fullAddress
}

func (a Address) LocalPart() string {
	return a.localPart
}

func (a Address) Domain() string {
	return a.domain
}

// Detail returns the part of the local part after the first "+", or "".
func (a Address) Detail() string {
	return a.detail
}

// User returns the local part without the detail (RFC 5233).
func (a Address) User() string {
	if plusIndex := strings.Index(a.localPart, "+"); plusIndex != -1 {
		return a.localPart[:plusIndex]
	}
	return a.localPart
}

// ParseSingleNormalAddress parses s as exactly one address with a
// non-empty local part and domain. Display names are allowed, groups and
// lists are not.
func ParseSingleNormalAddress(s string) (Address, error) {
	if strings.TrimSpace(s) == "" {
		return Address{}, fmt.Errorf("address is empty")
	}

	list, err := mail.ParseAddressList(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address '%s': %w", s, err)
	}
	if len(list) != 1 {
		return Address{}, fmt.Errorf("expected one address, got %d in '%s'", len(list), s)
	}

	addr := list[0].Address
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return Address{}, fmt.Errorf("address missing local part or domain: '%s'", addr)
	}
	localPart := addr[:at]
	domain := addr[at+1:]

	if !domainNameRe.MatchString(domain) && !isDomainLiteral(domain) {
		return Address{}, fmt.Errorf("unacceptable domain: '%s'", domain)
	}

	detail := ""
	if plusIndex := strings.Index(localPart, "+"); plusIndex != -1 {
		detail = localPart[plusIndex+1:]
	}

	return Address{
		fullAddress: addr,
		localPart:   localPart,
		domain:      domain,
		detail:      detail,
	}, nil
}

func isDomainLiteral(s string) bool {
	return len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']'
}
