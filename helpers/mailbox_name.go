package helpers

import (
	"strings"

	"github.com/migadu/sievelint/consts"
)

// IsValidMailboxName reports whether name is acceptable as a mailbox
// name. A single leading delimiter is allowed, empty hierarchy levels are
// not.
func IsValidMailboxName(name string) bool {
	if name == "" || len(name) > consts.MaxMailboxNameLength {
		return false
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return false
	}

	delimiter := string(consts.MailboxDelimiter)
	for _, level := range strings.Split(strings.TrimPrefix(name, delimiter), delimiter) {
		if level == "" {
			return false
		}
	}
	return true
}
