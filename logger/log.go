// Package logger provides the stdlib-log-backed implementation of
// engine.Logger used by CLI entry points that don't wire in anything
// fancier.
package logger

import "log"

// Std is a minimal engine.Logger backed by the standard library's log
// package, prefixing each line by severity.
type Std struct{}

// New returns a Std logger. The name is accepted for call-site symmetry
// with the teacher's scheduler.Logger construction but is not used to tag
// output; a single process only ever runs one engine.
func New(_ string) *Std { return &Std{} }

func (*Std) Infof(format string, v ...any)  { log.Printf("INFO: "+format, v...) }
func (*Std) Warnf(format string, v ...any)  { log.Printf("WARN: "+format, v...) }
func (*Std) Errorf(format string, v ...any) { log.Printf("ERROR: "+format, v...) }
