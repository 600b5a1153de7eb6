// Package sieve parses and validates Sieve mail filtering scripts
// (RFC 5228 plus the body, envelope, reject and subaddress extensions).
//
// Parsing happens in two phases. The grammar phase builds a tree of
// productions (commands, blocks, argument lists, arguments and tests) and
// attaches lexical and structural errors to the nodes where they occur.
// The semantic phase, Command.Parse and Test.Parse, checks each command and
// test against the language rules and records the extensions used.
//
// Nothing in this package returns a Go error for a bad script. Every
// problem is an error string on some node, and Script.Diagnostics lists
// them all with line and column. A Parser is good for one parse only.
package sieve
