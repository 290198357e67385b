// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"fmt"
	"sort"
	"sync"
)

// Program is a catalogue entry: a program name and the names of its passes,
// indexed by pass number.
type Program struct {
	Name   string
	Passes []string
}

// PassName returns the name of pass i, or "" when out of range.
func (p Program) PassName(i int) string {
	if i < 0 || i >= len(p.Passes) {
		return ""
	}
	return p.Passes[i]
}

// Len returns the number of passes.
func (p Program) Len() int { return len(p.Passes) }

// globalCatalogue is the default catalogue. Engine packages register their
// programs from init.
var globalCatalogue = &Catalogue{}

// Catalogue maps program names to their pass tables.
//
// Catalogue is safe for concurrent use.
type Catalogue struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewCatalogue creates an empty catalogue.
// Most code should use the global catalogue via Register and Lookup.
func NewCatalogue() *Catalogue {
	return &Catalogue{programs: make(map[string]Program)}
}

// Register adds a program to the global catalogue.
// Registering a name that already exists replaces the previous entry.
func Register(p Program) { globalCatalogue.Register(p) }

// Lookup returns a program from the global catalogue.
func Lookup(name string) (Program, bool) { return globalCatalogue.Lookup(name) }

// Programs returns the names of all globally registered programs, sorted.
func Programs() []string { return globalCatalogue.Programs() }

// Validate checks a pass against the global catalogue.
func Validate(p Pass) error { return globalCatalogue.Validate(p) }

// Register adds a program to this catalogue.
func (c *Catalogue) Register(p Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.programs == nil {
		c.programs = make(map[string]Program)
	}
	passes := make([]string, len(p.Passes))
	copy(passes, p.Passes)
	c.programs[p.Name] = Program{Name: p.Name, Passes: passes}
}

// Lookup returns the program registered under name.
func (c *Catalogue) Lookup(name string) (Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.programs[name]
	return p, ok
}

// Programs returns all registered program names, sorted.
func (c *Catalogue) Programs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.programs))
	for name := range c.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate returns ErrUnknownProgram or ErrUnknownPass when p is not in the
// catalogue.
func (c *Catalogue) Validate(p Pass) error {
	prog, ok := c.Lookup(p.Program)
	if !ok {
		return &ProgramError{Program: p.Program, Err: ErrUnknownProgram}
	}
	if p.Index < 0 || p.Index >= prog.Len() {
		return &ProgramError{
			Program: p.Program,
			Err:     fmt.Errorf("%w: %d not in [0,%d)", ErrUnknownPass, p.Index, prog.Len()),
		}
	}
	return nil
}

// ProgramBlit is the shared copy program used by passthrough paths.
const ProgramBlit = "blit"

func init() {
	Register(Program{Name: ProgramBlit, Passes: []string{"Copy"}})
}
