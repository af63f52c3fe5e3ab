package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/clr-bridge/bridge"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/nativehost"
	"github.com/wippyai/clr-bridge/wasmhost"
)

type options struct {
	assemblies  []string
	contextName string
	find        string
	perContext  bool
}

func main() {
	var (
		libFile     = flag.String("lib", "", "Path to the native runtime host shim")
		wasmFile    = flag.String("wasm", "", "Path to a WebAssembly build of the runtime host")
		asmList     = flag.String("asm", "", "Assemblies to load (comma-separated paths)")
		ctxName     = flag.String("context", "default", "Load context name")
		find        = flag.String("find", "", "Type name to look up")
		charset     = flag.String("charset", "native", "Boundary string encoding for -lib (native, utf8, utf16)")
		perContext  = flag.Bool("context-cache", false, "Cache types per load context")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if (*libFile == "") == (*wasmFile == "") || *asmList == "" {
		fmt.Fprintln(os.Stderr, "Usage: clr-inspect -lib <shim> -asm a.dll[,b.dll] [-find Type.Name]")
		fmt.Fprintln(os.Stderr, "       clr-inspect -wasm <runtime.wasm> -asm a.dll[,b.dll]")
		fmt.Fprintln(os.Stderr, "       clr-inspect ... -i  (interactive mode)")
		os.Exit(1)
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	bridge.SetLogger(log.Named("bridge"))
	nativehost.SetLogger(log.Named("nativehost"))
	wasmhost.SetLogger(log.Named("wasmhost"))

	cs, err := parseCharSet(*charset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	table, closeTable, err := openTable(*libFile, *wasmFile, cs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeTable()

	opts := options{
		assemblies:  splitList(*asmList),
		contextName: *ctxName,
		find:        *find,
		perContext:  *perContext,
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(table, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Stdout, table, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func parseCharSet(name string) (interop.CharSet, error) {
	switch strings.ToLower(name) {
	case "native", "":
		return interop.NativeCharSet(), nil
	case "utf8", "utf-8":
		return interop.CharSetUTF8, nil
	case "utf16", "utf-16", "wide":
		return interop.CharSetWide, nil
	}
	return 0, fmt.Errorf("unknown charset %q", name)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// openTable binds the runtime selected on the command line.
func openTable(libFile, wasmFile string, cs interop.CharSet) (*functable.Table, func(), error) {
	if libFile != "" {
		lib, err := nativehost.Open(libFile)
		if err != nil {
			return nil, nil, err
		}
		table, err := lib.Table(cs)
		if err != nil {
			lib.Close()
			return nil, nil, err
		}
		return table, func() { lib.Close() }, nil
	}

	ctx := context.Background()
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	h, err := wasmhost.New(ctx, data, nil)
	if err != nil {
		return nil, nil, err
	}
	return h.Table(), func() { h.Close(ctx) }, nil
}

// loadAll creates a host and context and loads every requested assembly.
func loadAll(table *functable.Table, opts options) (*bridge.Host, *bridge.LoadContext, error) {
	cfg := bridge.DefaultConfig()
	if opts.perContext {
		cfg.CacheScope = bridge.CacheScopeContext
	}
	host, err := bridge.New(table, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create host: %w", err)
	}
	alc, err := host.CreateLoadContext(opts.contextName)
	if err != nil {
		host.Close()
		return nil, nil, fmt.Errorf("create load context: %w", err)
	}
	for _, path := range opts.assemblies {
		alc.LoadAssembly(path)
	}
	return host, alc, nil
}

func run(w io.Writer, table *functable.Table, opts options) error {
	host, alc, err := loadAll(table, opts)
	if err != nil {
		return err
	}
	defer host.Close()

	fmt.Fprintf(w, "Load context: %s (id %d)\n", alc.Name(), alc.ID())

	failed := 0
	for _, asm := range alc.Assemblies() {
		fmt.Fprintf(w, "\n%s\n", asm.Path())
		if !asm.Loaded() {
			failed++
			fmt.Fprintf(w, "  status: %s\n", asm.LoadStatus())
			continue
		}
		types := asm.GetTypes()
		fmt.Fprintf(w, "  assembly: %s (id %d)\n", asm.Name(), asm.ID())
		fmt.Fprintf(w, "  types: %d\n", len(types))
		for _, t := range types {
			fmt.Fprintf(w, "    %s\n", t.Name())
		}
	}

	if opts.find != "" {
		t := alc.GetType(opts.find)
		if t.IsNull() {
			fmt.Fprintf(w, "\nType %s: not found\n", opts.find)
		} else {
			fmt.Fprintf(w, "\nType %s: id %#x\n", t.Name(), uint64(t.ID()))
		}
	}

	if failed == len(opts.assemblies) && failed > 0 {
		return fmt.Errorf("no assembly loaded")
	}
	return nil
}
