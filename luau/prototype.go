package luau

import "sort"

// Prototype is the decoded representation of one compiled function, independent
// of its textual form. Anonymous prototypes keep an empty Name; they stay in the
// module's list for positional bookkeeping but are never annotated.
type Prototype struct {
	Name      string
	Locals    []Local
	Upvalues  []string
	FileScope *FileScope
}

// Local is one named slot from the debug-info block. ScopeStart == 0 marks a
// parameter (present at function entry); ScopeStart > 0 marks a true local.
type Local struct {
	Name       string
	ScopeStart int
	ScopeEnd   int
	Register   byte
}

// FileScope anchors a prototype to its defining lines in the original source.
// Only Start is reliable; see the line-info handling in the decoder.
type FileScope struct {
	Start int
	End   int
}

// Parameters returns the names of the prototype's parameters, ordered by
// ascending register.
func (p *Prototype) Parameters() []string {
	var params []Local
	for _, local := range p.Locals {
		if local.ScopeStart == 0 {
			params = append(params, local)
		}
	}

	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Register < params[j].Register
	})

	names := make([]string, len(params))
	for i, local := range params {
		names[i] = local.Name
	}
	return names
}

// LocalNames returns the names of the prototype's true locals, ordered by
// ascending scope start.
func (p *Prototype) LocalNames() []string {
	var locals []Local
	for _, local := range p.Locals {
		if local.ScopeStart > 0 {
			locals = append(locals, local)
		}
	}

	sort.SliceStable(locals, func(i, j int) bool {
		return locals[i].ScopeStart < locals[j].ScopeStart
	})

	names := make([]string, len(locals))
	for i, local := range locals {
		names[i] = local.Name
	}
	return names
}

// Module is the decoded structural model of one bytecode file.
type Module struct {
	MainIndex   int
	Prototypes  []*Prototype
	SymbolTable []string
}

// Main returns the top-level prototype, or nil if the main index is out of
// range (a malformed but decodable stream).
func (m *Module) Main() *Prototype {
	if m.MainIndex < 0 || m.MainIndex >= len(m.Prototypes) {
		return nil
	}
	return m.Prototypes[m.MainIndex]
}
