package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/ejb-bridge/bridge"
	"github.com/wippyai/ejb-bridge/bridge/wasmhost"
	"github.com/wippyai/ejb-bridge/config"
	"github.com/wippyai/ejb-bridge/handle"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to bridge configuration (YAML)")
		wasmFile    = flag.String("wasm", "", "Guest module importing \"ejb\" to run against the bridge")
		funcName    = flag.String("func", "_start", "Guest function to call with -wasm")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	cfg := &config.Config{}
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := newLogger(cfg.Handles.LogLevel, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	bridge.SetLogger(log)
	handle.SetLogger(log.Named("handles"))

	if *configFile != "" {
		args, err := cfg.JVM.Args()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Debug("vm arguments", zap.Strings("args", args), zap.Int("port", cfg.Service.Port))
	}

	rt, err := bridge.New(cfg.Handles, bridge.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			os.Exit(1)
		}
		err = runInteractive(rt)
	} else if *wasmFile != "" {
		err = runGuest(rt, *wasmFile, *funcName)
	} else {
		err = runSession(rt)
	}

	summary, cerr := shutdown(rt)
	if cerr != nil && err == nil {
		err = cerr
	}
	fmt.Print(summary)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// shutdown closes the runtime and reports counters taken after the sweep.
func shutdown(rt *bridge.Runtime) (string, error) {
	live := rt.Registry().Len()
	err := rt.Close()
	s := rt.Registry().Stats()
	return fmt.Sprintf("\nHandles: minted=%d dropped=%d revoked=%d leaked=%d (live at shutdown=%d)\n",
		s.Minted, s.Dropped, s.Revoked, s.Leaked, live), err
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	} else if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}

// runSession drives the bridge the way a client binding would: every object
// is reached through its raw handle and freed explicitly.
func runSession(rt *bridge.Runtime) error {
	db := rt.NewMemoryDB()
	fork, err := rt.CreateFork(db)
	if err != nil {
		return fmt.Errorf("fork: %w", err)
	}
	list, err := rt.NewList(fork, "blocks")
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	for _, v := range []string{"genesis", "block-1", "block-2"} {
		if err := rt.ListAdd(list, []byte(v)); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}
	if err := rt.Merge(db, fork); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	snap, err := rt.CreateSnapshot(db)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	snapList, err := rt.NewList(snap, "blocks")
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	n, err := rt.ListSize(snapList)
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}
	fmt.Printf("Session: db=%d fork=%d snapshot=%d, %d items merged\n", db, fork, snap, n)

	printHandles(rt.Registry())

	// A stale handle is reported, not dereferenced.
	_ = rt.FreeView(fork)
	err = rt.FreeView(fork)
	fmt.Printf("Second free of fork %d: status %d (%v)\n", fork, bridge.Status(err), err)

	for _, free := range []func() error{
		func() error { return rt.FreeList(list) },
		func() error { return rt.FreeList(snapList) },
		func() error { return rt.FreeView(snap) },
		func() error { return rt.FreeDB(db) },
	} {
		if err := free(); err != nil {
			return err
		}
	}
	return nil
}

func runGuest(rt *bridge.Runtime, path, funcName string) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := wasmhost.Instantiate(ctx, r, rt); err != nil {
		return fmt.Errorf("host module: %w", err)
	}
	guest, err := r.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	fn := guest.ExportedFunction(funcName)
	if fn == nil {
		return fmt.Errorf("guest does not export %q", funcName)
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("%s returned %v\n", funcName, results)
	printHandles(rt.Registry())
	return nil
}

func printHandles(reg *handle.Registry) {
	fmt.Printf("\nLive handles (%d):\n", reg.Len())
	reg.Each(func(h handle.Handle, tag handle.TypeTag, _ any) bool {
		fmt.Printf("  %-12s %s\n", h, tag)
		return true
	})
}
