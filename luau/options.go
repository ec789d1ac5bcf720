package luau

// Options toggles the optional reattachment steps. The zero value disables
// everything; callers opt in explicitly.
type Options struct {
	// EmitSymbolTable prefixes the output with a dump of the raw string table.
	EmitSymbolTable bool
	// EmitLineNumbers inserts a starting-line comment above each located function.
	EmitLineNumbers bool
	// EmitVariableComments inserts local/upvalue comment lines above each
	// located function.
	EmitVariableComments bool
}
