// Package sievecheck runs the sieve parser on behalf of the command line
// tool and the HTTP API.
//
// A Checker enforces the size limits, caches reports by script digest,
// optionally loads each script with go-sieve as a second opinion, and
// records metrics for every check.
//
//	checker, err := sievecheck.New(sievecheck.Options{
//		MaxScriptSize: 16 * 1024,
//		StrictRequire: true,
//	})
//	report, err := checker.Check(ctx, "vacation.sieve", script)
//	if err == nil && !report.Valid {
//		for _, d := range report.Diagnostics {
//			fmt.Printf("%d:%d: %s\n", d.Line, d.Column, d.Message)
//		}
//	}
package sievecheck
