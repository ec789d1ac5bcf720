package main

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vasdmi666/Deobfuscator-Luau/config"
	"github.com/vasdmi666/Deobfuscator-Luau/luajit"
	"github.com/vasdmi666/Deobfuscator-Luau/pipeline"
	"github.com/vasdmi666/Deobfuscator-Luau/runner"
)

type flags struct {
	recursive  bool
	silent     bool
	decodeOnly bool
	lineInfo   bool
	variables  bool
	symbols    bool
	numThreads int
	configPath string
	decompiler string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fsdec",
		Short:         "Decode and decompile obfuscated script bytecode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newLuauCmd(), newLuajitCmd(), newConfigCmd())
	return root
}

func addCommonFlags(cmd *cobra.Command, f *flags) {
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "recursive mode if folder input")
	cmd.Flags().BoolVarP(&f.silent, "silent", "s", false, "suppress output")
	cmd.Flags().IntVar(&f.numThreads, "num-threads", 0, "thread pool size when processing folders (0 = auto)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to config file")
}

func newLuauCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "luau <input> [output]",
		Short: "Decode and decompile Luau .l64 bytecode files",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			opts := cfg.Options()
			if cmd.Flags().Changed("line-info") {
				opts.EmitLineNumbers = f.lineInfo
			}
			if cmd.Flags().Changed("variables") {
				opts.EmitVariableComments = f.variables
			}
			if cmd.Flags().Changed("symbols") {
				opts.EmitSymbolTable = f.symbols
			}

			p := pipeline.New(&pipeline.ExecDecompiler{Name: cfg.Decompiler}, opts)

			process := p.Run
			if f.decodeOnly {
				process = p.DecodeOnly
			}

			r := &runner.Runner{
				Process:    process,
				NumThreads: f.numThreads,
				Recursive:  f.recursive,
				Silent:     f.silent,
				Logger:     newLogger(),
			}
			if !f.decodeOnly {
				r.RenameExt = ".lua"
			}

			return run(r, args)
		},
	}

	addCommonFlags(cmd, f)
	cmd.Flags().BoolVarP(&f.decodeOnly, "decode-only", "d", false, "only decode files")
	cmd.Flags().BoolVarP(&f.lineInfo, "line-info", "l", false, "include line number info for functions when applicable")
	cmd.Flags().BoolVar(&f.variables, "variables", false, "include local/upvalue comments for functions")
	cmd.Flags().BoolVar(&f.symbols, "symbols", false, "prefix output with the decoded symbol table")
	cmd.Flags().StringVar(&f.decompiler, "decompiler", "", "name of the external decompiler binary")

	return cmd
}

func newLuajitCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "luajit <input> [output]",
		Short: "Decode and decompile LuaJIT .l64 bytecode files",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, f); err != nil {
				return err
			}

			dec := &pipeline.ExecDecompiler{Name: "luajit-decompiler"}
			if cmd.Flags().Changed("decompiler") && f.decompiler != "" {
				dec.Name = f.decompiler
			}

			process := func(buf []byte) ([]byte, error) {
				if !luajit.IsValid(buf) {
					return nil, errors.New("unsupported bytecode file")
				}
				if luajit.IsEncoded(buf) {
					if err := luajit.Decode(buf); err != nil {
						return nil, err
					}
				}
				if f.decodeOnly {
					return buf, nil
				}
				return dec.Decompile(buf, 1)
			}

			r := &runner.Runner{
				Process:    process,
				NumThreads: f.numThreads,
				Recursive:  f.recursive,
				Silent:     f.silent,
				Logger:     newLogger(),
			}
			if !f.decodeOnly {
				r.RenameExt = ".lua"
			}

			return run(r, args)
		},
	}

	addCommonFlags(cmd, f)
	cmd.Flags().BoolVarP(&f.decodeOnly, "decode-only", "d", false, "only decode files")
	cmd.Flags().StringVar(&f.decompiler, "decompiler", "", "name of the external decompiler binary")

	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the fsdec config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return config.WriteDefault(path)
		},
	})

	return cmd
}

func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("decompiler") && f.decompiler != "" {
		cfg.Decompiler = f.decompiler
	}
	if cmd.Flags().Changed("num-threads") {
		cfg.NumThreads = f.numThreads
	}
	if f.numThreads == 0 {
		f.numThreads = cfg.NumThreads
	}
	return cfg, nil
}

// run dispatches on whether the input is a file or a directory, mirroring the
// input subtree under the output path for directories.
func run(r *runner.Runner, args []string) error {
	input := args[0]
	output := input
	if len(args) == 2 {
		output = args[1]
	}

	info, err := os.Stat(input)
	if err != nil {
		return errors.Wrap(err, input)
	}

	if !info.IsDir() {
		report := r.RunFile(input, output)
		return report.Err
	}

	if out, err := os.Stat(output); err == nil && !out.IsDir() {
		return errors.New("output path is a file")
	}

	reports, err := r.RunDir(input, output)
	if err != nil {
		return err
	}

	failed := runner.Failed(reports)
	for _, report := range failed {
		slog.Error(report.Err.Error(), "job", report.ID.String())
	}
	if len(failed) > 0 {
		return errors.Errorf("%d of %d files failed", len(failed), len(reports))
	}

	return nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
