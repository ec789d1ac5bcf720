package pipeline

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Decompiler turns a de-obfuscated bytecode buffer into source-like text. Its
// internals are a black box to this package; it either returns text or fails
// loudly.
type Decompiler interface {
	Decompile(bytecode []byte, indent int) ([]byte, error)
}

// ExecDecompiler runs an external decompiler binary, feeding it the bytecode
// on stdin and capturing the text from stdout.
type ExecDecompiler struct {
	// Name of the binary, resolved next to the executable, under bin/, or
	// under the working directory.
	Name string
}

func (d *ExecDecompiler) Decompile(bytecode []byte, indent int) ([]byte, error) {
	path, err := commandPath(d.Name)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, "--indent", strconv.Itoa(indent))
	cmd.Stdin = bytes.NewReader(bytecode)

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, errors.Errorf("error (code %d) when executing command: %s", exitErr.ExitCode(), path)
		}
		return nil, errors.Wrapf(err, "failed to execute command: %s", path)
	}

	return out, nil
}

// commandPath locates an auxiliary binary. Lookup order: beside the running
// executable, in its bin/ subdirectory, then the same two spots under the
// working directory.
func commandPath(name string) (string, error) {
	var candidates []string

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, name), filepath.Join(dir, "bin", name))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, name), filepath.Join(wd, "bin", name))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Errorf("failed to locate '%s'", name)
}
