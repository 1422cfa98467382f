package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/kartiknair/kaleido/pkg/ast"
	"github.com/kartiknair/kaleido/pkg/engine"
	"github.com/kartiknair/kaleido/pkg/gen"
	"github.com/kartiknair/kaleido/pkg/lexer"
	"github.com/kartiknair/kaleido/pkg/parser"
	"github.com/kartiknair/kaleido/pkg/repl"
)

const historyFile = ".kaleido_history"

var CC_EXECUTABLE_PATH = "cc"

func main() {
	var outputFile string

	app := &cli.App{
		Name:  "kaleido",
		Usage: "An interactive compiler for the Kaleidoscope language.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-jit",
				Usage: "Print the IR of top-level expressions instead of running them.",
			},
			&cli.BoolFlag{
				Name:  "no-opt",
				Usage: "Do not optimize emitted functions.",
			},
			&cli.BoolFlag{
				Name:  "edit",
				Usage: "Line editing and history when reading from a terminal.",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log every top-level form to stderr.",
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Value: engine.DefaultMaxDepth,
				Usage: "Maximum call depth of executed code.",
			},
		},
		Before: setupLogging,
		Action: replAct,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Runs the provided source files through the top-level loop.",
				ArgsUsage: "FILE...",
				Action:    runAct,
			},
			{
				Name:      "ir",
				Usage:     "Prints the LLVM IR module of the provided source files.",
				ArgsUsage: "FILE...",
				Action:    irAct,
			},
			{
				Name:      "c",
				Usage:     "Translates the provided source files to C.",
				ArgsUsage: "FILE...",
				Action:    cAct,
			},
			{
				Name:      "build",
				Usage:     "Builds the provided source files to an executable printing every top-level expression.",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "output",
						Aliases:     []string{"o"},
						Value:       "a.out",
						Usage:       "Name of the executable.",
						Destination: &outputFile,
					},
				},
				Action: func(c *cli.Context) error {
					return buildAct(c, outputFile)
				},
			},
			{
				Name:      "ast",
				Usage:     "Prints the syntax tree of every top-level form.",
				ArgsUsage: "FILE...",
				Action:    astAct,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func setupLogging(c *cli.Context) error {
	if c.Bool("verbose") {
		tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))
	} else {
		tlog.DefaultLogger = tlog.New(io.Discard)
	}

	return nil
}

func newDriver(c *cli.Context, out io.Writer, opts ...repl.Option) *repl.Driver {
	if c.Bool("no-jit") {
		opts = append(opts, repl.WithoutJIT())
	}
	if c.Bool("no-opt") {
		opts = append(opts, repl.WithoutOptimization())
	}
	opts = append(opts, repl.WithMaxDepth(c.Int("max-depth")))

	return repl.New(out, os.Stderr, opts...)
}

func rootContext() context.Context {
	return tlog.ContextWithSpan(context.Background(), tlog.Root())
}

func replAct(c *cli.Context) error {
	ctx := rootContext()

	if !c.Bool("edit") || !liner.TerminalSupported() {
		return newDriver(c, os.Stdout).Run(ctx, os.Stdin)
	}

	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}

	editor := repl.NewEditor(history)

	// the editor shows the prompt itself
	d := newDriver(c, os.Stdout, repl.WithPrompt(""))
	err := d.Run(ctx, repl.NewLineReader(editor, repl.DefaultPrompt))
	fmt.Println()

	if cerr := editor.Close(); err == nil {
		err = cerr
	}

	return err
}

func sourceFiles(c *cli.Context) ([]string, error) {
	if c.Args().Len() == 0 {
		return nil, errors.New("Source file not provided.")
	}

	return c.Args().Slice(), nil
}

// eachFile feeds every source file to the driver in order.
func eachFile(ctx context.Context, d *repl.Driver, files []string) error {
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open %v", path)
		}

		tlog.SpanFromContext(ctx).Printw("source file", "name", path)

		err = d.Run(ctx, f)
		_ = f.Close()
		if err != nil {
			return errors.Wrap(err, "read %v", path)
		}
	}

	return nil
}

func runAct(c *cli.Context) error {
	files, err := sourceFiles(c)
	if err != nil {
		return err
	}

	d := newDriver(c, os.Stdout, repl.WithPrompt(""))
	return eachFile(rootContext(), d, files)
}

func irAct(c *cli.Context) error {
	files, err := sourceFiles(c)
	if err != nil {
		return err
	}

	forms, err := parseFiles(files)
	if err != nil {
		return err
	}

	ir, errs := gen.LLVM(filepath.Base(files[0]), forms, !c.Bool("no-opt"))
	reportAll(errs)

	fmt.Print(ir)
	return nil
}

// parseFiles parses every form of the given files. Forms that fail to parse
// are reported and skipped.
func parseFiles(files []string) ([]ast.Form, error) {
	var forms []ast.Form

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open %v", path)
		}

		l := lexer.New(f)
		fileForms, errs := parser.New(l).ParseAll()
		_ = f.Close()

		if l.Err() != nil {
			return nil, errors.Wrap(l.Err(), "read %v", path)
		}

		reportAll(errs)

		forms = append(forms, fileForms...)
	}

	return forms, nil
}

func translate(files []string) (string, error) {
	forms, err := parseFiles(files)
	if err != nil {
		return "", err
	}

	src, errs := gen.C(forms)
	reportAll(errs)

	return src, nil
}

func reportAll(errs []error) {
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}
}

func cAct(c *cli.Context) error {
	files, err := sourceFiles(c)
	if err != nil {
		return err
	}

	src, err := translate(files)
	if err != nil {
		return err
	}

	fmt.Print(src)
	return nil
}

func buildAct(c *cli.Context, output string) error {
	files, err := sourceFiles(c)
	if err != nil {
		return err
	}

	src, err := translate(files)
	if err != nil {
		return err
	}

	if cc := os.Getenv("KALEIDO_CC"); cc != "" {
		CC_EXECUTABLE_PATH = cc
	}

	compileCommand := exec.Command(
		CC_EXECUTABLE_PATH,
		"-x",
		"c",
		"-o",
		output,
		"-",
		"-lm",
	)

	compileCommand.Stdout = os.Stdout
	compileCommand.Stderr = os.Stderr
	compileCommand.Stdin = strings.NewReader(src)

	tlog.Root().Printw("compile", "cc", CC_EXECUTABLE_PATH, "output", output)

	err = compileCommand.Run()
	if err != nil {
		return errors.Wrap(err, "compile %v", output)
	}

	return nil
}

func astAct(c *cli.Context) error {
	files, err := sourceFiles(c)
	if err != nil {
		return err
	}

	forms, err := parseFiles(files)
	if err != nil {
		return err
	}

	for _, form := range forms {
		fmt.Println(repr.String(form, repr.Indent("  "), repr.OmitEmpty(true)))
	}

	return nil
}
