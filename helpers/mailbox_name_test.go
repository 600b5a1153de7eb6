package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMailboxName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "Work", true},
		{"leading delimiter", "/Work", true},
		{"hierarchy", "Work/Projects/2024", true},
		{"dots are plain characters", "INBOX.Work", true},
		{"unicode", "Входящие", true},
		{"empty", "", false},
		{"only delimiter", "/", false},
		{"double delimiter", "/Work//Old", false},
		{"double leading delimiter", "//Work", false},
		{"trailing delimiter", "Work/", false},
		{"NUL", "Wo\x00rk", false},
		{"CR", "Work\r", false},
		{"LF", "Wo\nrk", false},
		{"max length", strings.Repeat("a", 255), true},
		{"too long", strings.Repeat("a", 256), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidMailboxName(tt.input))
		})
	}
}
