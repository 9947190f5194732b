// Ember CLI - extracts and runs ember script blocks from files or stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/emberscript/ember/compiler"
	"github.com/emberscript/ember/config"
	"github.com/emberscript/ember/lib/runtime"
	"github.com/emberscript/ember/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configPath := flag.String("config", "", "Path to ember.toml (default: search upward from cwd)")
	sessionID := flag.String("session", "", "Session ID (default: a fresh random session)")
	dbPath := flag.String("db", "", "Session database path (enables persistence)")
	stripMode := flag.Bool("strip", false, "Print the input with all script blocks removed")
	disasmMode := flag.Bool("disasm", false, "Disassemble each block instead of executing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ember [options] [file...]\n\n")
		fmt.Fprintf(os.Stderr, "Extracts @em{...} script blocks from the given files (or stdin) and runs them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ember script.txt                 # Run all blocks in script.txt\n")
		fmt.Fprintf(os.Stderr, "  cat log.txt | ember              # Run blocks found in stdin\n")
		fmt.Fprintf(os.Stderr, "  ember -session build script.txt  # Run against a named persistent session\n")
		fmt.Fprintf(os.Stderr, "  ember -strip log.txt             # Show log.txt without its blocks\n")
		fmt.Fprintf(os.Stderr, "  ember -disasm script.txt         # Show compiled bytecode\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(verbosity, logPath)

	input, err := readInput(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *stripMode {
		fmt.Println(runtime.Strip(input))
		return
	}

	if *disasmMode {
		if err := disassemble(input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var store *runtime.ContextStore
	storePath := *dbPath
	if storePath == "" && cfg.Store.Enabled {
		storePath = cfg.Store.Path
	}
	if storePath != "" {
		store, err = runtime.NewContextStore(storePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	engine := runtime.NewEngine(cfg.VMLimits(), store)

	var session *runtime.Session
	if *sessionID != "" {
		session = engine.Sessions().Session(*sessionID)
	} else {
		session = engine.Sessions().NewSession()
	}
	if *verbose {
		fmt.Printf("Session: %s\n", session.ID())
	}

	failed := false
	for i, report := range engine.RunText(session.ID(), input) {
		for _, perr := range report.ParseErrors {
			fmt.Fprintf(os.Stderr, "block %d: %v\n", i+1, perr)
		}
		result := report.Result
		if !result.Success {
			fmt.Fprintf(os.Stderr, "block %d: %s\n", i+1, result.Error)
			failed = true
			continue
		}
		if result.Returned {
			fmt.Println(result.ReturnValue.AsString())
		}
	}
	if failed {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	return config.FindAndLoad(cwd)
}

// readInput concatenates the given files, or reads stdin when none are given.
func readInput(paths []string) (string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	var input []byte
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		input = append(input, data...)
		input = append(input, '\n')
	}
	return string(input), nil
}

func disassemble(input string) error {
	blocks := compiler.ExtractBlocks(input)
	for i, tokens := range blocks {
		prog, parseErrs := compiler.Parse(tokens)
		for _, perr := range parseErrs {
			fmt.Fprintf(os.Stderr, "block %d: %v\n", i+1, perr)
		}
		chunk, err := bytecode.Compile(prog)
		if err != nil {
			return fmt.Errorf("block %d: %w", i+1, err)
		}
		fmt.Printf("-- block %d --\n%s", i+1, bytecode.Disassemble(chunk))
	}
	return nil
}
