package sievecheck

import (
	"fmt"
	"strings"

	"github.com/foxcpp/go-sieve"
)

// goSieveExtensions are the extensions of ours that go-sieve also
// implements. Scripts using any other one are not cross-checked.
var goSieveExtensions = map[string]bool{
	"envelope": true,
	"fileinto": true,
}

// CrossCheckResult compares the verdict with go-sieve's.
type CrossCheckResult struct {
	Engine  string `json:"engine"`
	Skipped string `json:"skipped,omitempty"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Agrees  bool   `json:"agrees"`
}

// loadFunc loads a script with the given extensions enabled.
type loadFunc func(script string, extensions []string) error

func goSieveLoad(script string, extensions []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go-sieve panicked: %v", r)
		}
	}()
	options := sieve.DefaultOptions()
	options.EnabledExtensions = extensions
	_, err = sieve.Load(strings.NewReader(script), options)
	return err
}

// crossCheck loads script with load. used lists the extensions the script
// declares or needs; supported is what the checker accepts.
func crossCheck(load loadFunc, script string, valid bool, used, supported []string) *CrossCheckResult {
	r := &CrossCheckResult{Engine: "go-sieve"}
	for _, e := range used {
		if !goSieveExtensions[e] {
			r.Skipped = fmt.Sprintf("extension %q is not implemented by go-sieve", e)
			r.Agrees = true
			return r
		}
	}

	var enabled []string
	for _, e := range supported {
		if goSieveExtensions[e] {
			enabled = append(enabled, e)
		}
	}
	if enabled == nil {
		enabled = []string{}
	}

	if err := load(script, enabled); err != nil {
		r.Error = err.Error()
	} else {
		r.Valid = true
	}
	r.Agrees = r.Valid == valid
	return r
}
