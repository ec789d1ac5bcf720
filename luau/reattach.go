package luau

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// unresolvedUpvalue matches the placeholder names the external decompiler
// generates for captured variables it could not resolve.
var unresolvedUpvalue = regexp.MustCompile(`\bv_u_\d+_\b`)

// Reattach splices the debug information recovered from bytecode back into the
// decompiled text: parameter renames, method-call rewrites and the optional
// comment annotations. The pass is strictly linear over the prototypes in
// decode order; each prototype's edits are independent and a prototype that
// cannot be located or verified is skipped without touching the text.
func Reattach(buf []byte, mod *Module, opts Options) []byte {
	// First successfully located definition, used as the insertion anchor for
	// the main-chunk fallback and as the search bound for the placeholder pass.
	nearest := 0

	for i, proto := range mod.Prototypes {
		site, next, ok := newFunctionSite(buf, proto)
		buf = next

		if ok {
			buf = site.renameParameters(buf)
			buf = site.renameSelf(buf)

			if nearest == 0 {
				nearest = site.position
			}
		}

		if opts.EmitVariableComments {
			localNames := proto.LocalNames()
			locals := commentLine("Local values", localNames)
			upvalues := commentLine("Upvalues", proto.Upvalues)

			switch {
			case ok:
				if len(localNames) > 0 {
					buf = splice(buf, site.position, locals)
				}
				if len(proto.Upvalues) > 0 {
					buf = splice(buf, site.position, upvalues)
				}
			case i == mod.MainIndex && len(proto.Locals) > 0:
				// No locatable site for the top-level chunk; its locals go at
				// the very start of the text.
				buf = splice(buf, 0, locals)
				nearest += len(locals)
			}
		}

		if opts.EmitLineNumbers && ok && proto.FileScope != nil {
			comment := fmt.Sprintf("-- Starts at line %d\n", proto.FileScope.Start)
			buf = splice(buf, site.position, []byte(comment))
		}
	}

	buf = renameNearestUpvalues(buf, mod, nearest)

	if opts.EmitSymbolTable && len(mod.SymbolTable) > 0 {
		buf = splice(buf, 0, symbolBlock(mod.SymbolTable))
	}

	return buf
}

// renameNearestUpvalues is a best-effort pass over the text preceding the
// first located function: unresolved captured-variable placeholders are
// renamed, in order of appearance, after the main prototype's locals in
// scope-start order. The decompiled text before the first function belongs to
// the top-level chunk, so its locals are the best available guess. Mismatched
// counts just stop the pass early.
func renameNearestUpvalues(buf []byte, mod *Module, nearest int) []byte {
	if len(mod.Prototypes) == 1 {
		return buf
	}
	main := mod.Main()
	if main == nil {
		return buf
	}
	if nearest < 0 || nearest > len(buf) {
		return buf
	}

	head := buf[:nearest]
	if !utf8.Valid(head) {
		return buf
	}

	locals := main.LocalNames()
	for i, placeholder := range unresolvedUpvalue.FindAllString(string(head), -1) {
		if i >= len(locals) {
			break
		}
		buf = findAndReplace(buf, []byte(placeholder), []byte(locals[i]), 0)
	}

	return buf
}

func commentLine(prefix string, list []string) []byte {
	return []byte(fmt.Sprintf("-- %s: %s\r\n", prefix, strings.Join(list, ", ")))
}

func symbolBlock(list []string) []byte {
	return []byte(fmt.Sprintf("--[[ Symbol table:\r\n\t%s\r\n]]\r\n", strings.Join(list, "\r\n\t")))
}
