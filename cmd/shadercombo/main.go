// Command shadercombo drives the combo engine against a manifest file and
// writes one .vcs container per shader entry. This front end wires the
// flags through to an Engine and reports progress; plugging in a real
// compiler adapter is left to the embedder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/shadercombo"
)

func main() {
	var (
		partialPrecision  = flag.Bool("partial-precision", false, "relax FP precision")
		noValidation      = flag.Bool("no-validation", false, "bypass bytecode validation")
		disablePreshader  = flag.Bool("disable-preshader", false, "disable CPU preshader extraction")
		noFlowControl     = flag.Bool("no-flow-control", false, "prefer unrolling")
		preferFlowControl = flag.Bool("prefer-flow-control", false, "prefer branches")
		disableOptimize   = flag.Bool("disable-optimization", false, "emit unoptimised code")
		threads           = flag.Int("threads", env.Int("SHADERCOMBO_THREADS", runtime.NumCPU()), "worker count")
		shaderPath        = flag.String("shaderpath", env.Str("SHADERCOMBO_PATH", "."), "directory containing manifest.txt and source files")
		outDir            = flag.String("outdir", env.Str("SHADERCOMBO_OUTDIR", ""), "directory for .vcs output (defaults to shaderpath)")
		verbose           = flag.Bool("verbose", false, "log every completed command")
	)
	flag.Parse()

	if *noFlowControl && *preferFlowControl {
		log.Fatal("--no-flow-control and --prefer-flow-control are mutually exclusive")
	}
	if *outDir == "" {
		*outDir = *shaderPath
	}

	var flags shadercombo.CompileFlag
	if *partialPrecision {
		flags |= shadercombo.FlagPartialPrecision
	}
	if *noValidation {
		flags |= shadercombo.FlagSkipValidation
	}
	if *disablePreshader {
		flags |= shadercombo.FlagNoPreshader
	}
	if *noFlowControl {
		flags |= shadercombo.FlagAvoidFlowControl
	}
	if *preferFlowControl {
		flags |= shadercombo.FlagPreferFlowControl
	}
	if *disableOptimize {
		flags |= shadercombo.FlagSkipOptimization
	}

	manifestPath := filepath.Join(*shaderPath, "manifest.txt")
	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		log.Fatalf("opening manifest: %v", err)
	}
	defer manifestFile.Close()

	store, err := shadercombo.LoadConfig(manifestFile)
	if err != nil {
		log.Fatalf("parsing manifest: %v", err)
	}

	files := shadercombo.DirFileReader{Root: *shaderPath}
	cache, err := loadIncludeCache(*shaderPath, files)
	if err != nil {
		log.Fatalf("loading include manifest: %v", err)
	}

	reporter := cliReporter{verbose: *verbose}
	compiler := shadercombo.UnimplementedCompiler{}
	eng := shadercombo.NewEngine(store, compiler, files, cache, flags, *threads, reporter)

	byteCode, diags, err := eng.Run(context.Background())
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	failures := 0
	for _, entry := range store.Entries() {
		table, _ := byteCode.TakeShader(entry.Name)
		hadError := byteCode.HadError(entry.Name)
		if hadError {
			failures++
		}
		sourceCRC, err := shadercombo.HashSource(files, entry.SourceFile)
		if err != nil {
			sourceCRC = 0
		}
		path := filepath.Join(*outDir, entry.Name+".vcs")
		staticCount, aliasCount, err := shadercombo.WriteShader(shadercombo.OSFileWriter{}, path, entry, table, hadError, sourceCRC)
		if err != nil {
			log.Printf("writing %s: %v", entry.Name, err)
			failures++
			continue
		}
		if !hadError {
			reporter.ShaderWritten(entry.Name, aliasCount, staticCount)
		}
	}

	for name, table := range diags {
		for _, d := range table.Entries() {
			fmt.Printf("%s: %s (first at command %d, x%d)\n", name, d.Message, d.FirstCommand, d.Count)
		}
	}

	os.Exit(failures)
}

func loadIncludeCache(root string, files shadercombo.DirFileReader) (*shadercombo.IncludeCache, error) {
	cache := shadercombo.NewIncludeCache()
	manifestPath := filepath.Join(root, "uniquefilestocopy.txt")
	f, err := os.Open(manifestPath)
	if os.IsNotExist(err) {
		return cache, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	paths, err := shadercombo.LoadIncludeManifest(f)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		data, err := files.ReadFile(p)
		if err != nil {
			return nil, err
		}
		cache.Put(p, data)
	}
	return cache, nil
}

type cliReporter struct {
	verbose bool
}

func (r cliReporter) CommandCompleted(shader string, commandNumber uint64) {
	if r.verbose {
		fmt.Printf("%s: command %d complete\n", shader, commandNumber)
	}
}

func (cliReporter) ShaderWritten(shader string, aliasCount, staticCount int) {
	fmt.Printf("%s: wrote %d static combos (%d aliased)\n", shader, staticCount, aliasCount)
}
