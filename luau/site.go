package luau

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	signatureParams = regexp.MustCompile(`\((.*?)\)`)
	classPath       = regexp.MustCompile(`\b(\w+\.\w+)\(`)
)

// functionSite is the located textual definition of one prototype: where it
// starts, what the decompiler named its parameters, and what the bytecode says
// they should be called. It lives only for the duration of one rewrite.
type functionSite struct {
	name       string
	position   int
	parameters []string // recovered from bytecode debug info
	definition string   // signature line as produced by the decompiler
	defParams  []string // textual parameter tokens
	rawParams  string   // textual parameter list, verbatim
	hasSelf    bool
}

// newFunctionSite locates proto's definition inside buf and captures its
// signature. It returns the (possibly respliced) buffer and false when the
// prototype cannot be annotated: anonymous, parameterless, unlocatable, or the
// textual parameter list does not agree with the bytecode (in which case the
// text is left untouched rather than partially rewritten). On success a line
// separator has been inserted before the definition so that following
// annotations land on their own line.
func newFunctionSite(buf []byte, proto *Prototype) (*functionSite, []byte, bool) {
	parameters := proto.Parameters()
	if proto.Name == "" || len(parameters) == 0 {
		return nil, buf, false
	}

	position, ok := findFunction(buf, proto.Name, 0)
	if !ok {
		return nil, buf, false
	}

	lineLen := bytes.IndexByte(buf[position:], '\n')
	if lineLen < 0 {
		return nil, buf, false
	}

	definition := buf[position : position+lineLen]
	if !utf8.Valid(definition) {
		return nil, buf, false
	}

	m := signatureParams.FindSubmatch(definition)
	if m == nil {
		return nil, buf, false
	}
	rawParams := string(m[1])
	defParams := strings.Split(rawParams, ",")

	if len(rawParams) == 0 || len(defParams) != len(parameters) {
		return nil, buf, false
	}

	// Annotations inserted at the site must start on their own line.
	buf = splice(buf, position, []byte("\r\n"))
	position += 2

	return &functionSite{
		name:       proto.Name,
		position:   position,
		parameters: parameters,
		definition: string(definition),
		defParams:  defParams,
		rawParams:  rawParams,
	}, buf, true
}

// renameParameters rewrites the parenthesized parameter list with the
// bytecode-recovered names and then renames each textual parameter throughout
// the function's extent. A textual `_` denotes an intentionally unreferenced
// binding and is never substring-replaced.
func (s *functionSite) renameParameters(buf []byte) []byte {
	search := "(" + s.rawParams + ")"
	replace := "(" + strings.Join(s.parameters, ", ") + ")"
	buf = replaceFirst(buf, []byte(search), []byte(replace), s.position)

	for i, token := range s.defParams {
		textual := strings.TrimSpace(token)
		recovered := s.parameters[i]

		if textual == "self" || recovered == "self" {
			s.hasSelf = true
		}

		if textual != "_" {
			buf = findAndReplace(buf, []byte(textual), []byte(recovered), s.position)
		}
	}

	return buf
}

// renameSelf converts a `Table.member(self, ...)` definition into method-call
// syntax: the explicit self parameter is dropped and the separator switches
// from `.` to `:`.
func (s *functionSite) renameSelf(buf []byte) []byte {
	if !s.hasSelf {
		return buf
	}

	m := classPath.FindStringSubmatch(s.definition)
	if m == nil {
		return buf
	}
	path := m[1]

	var search, replace string
	if len(s.defParams) == 1 {
		search = "function " + path + "(self)"
		replace = "function " + strings.ReplaceAll(path, ".", ":") + "()"
	} else {
		search = "function " + path + "(self, "
		replace = "function " + strings.ReplaceAll(path, ".", ":") + "("
	}

	return findAndReplace(buf, []byte(search), []byte(replace), s.position)
}
