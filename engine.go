package shadercombo

import (
	"context"
	"sync"
)

// locker is the engine's mode switch: a real mutex under multi-threaded
// execution, a no-op under single-threaded execution, so the engine never
// duplicates its loop for the two cases.
type locker interface {
	Lock()
	Unlock()
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// workerState is the per-worker record: the command number it is currently
// processing, or none.
type workerState struct {
	running  bool
	runningN uint64
}

// Engine is the parallel work engine: it owns the global cursor, the
// byte-code store, the diagnostic tables, and the per-worker records, all
// guarded by the one lock mu.
type Engine struct {
	store    *ConfigStore
	compiler Compiler
	files    FileReader
	cache    *IncludeCache
	flags    CompileFlag
	reporter ProgressReporter

	mu      locker
	bytes   *ByteCodeStore
	diags   map[string]*DiagnosticTable
	workers []workerState

	cursorCmd    uint64
	endCmd       uint64
	lastPackaged uint64
}

// NewEngine builds an engine over store, ready to run with workerCount
// goroutines. A workerCount of 1 installs the no-op locker; anything
// greater installs a real mutex.
func NewEngine(store *ConfigStore, compiler Compiler, files FileReader, cache *IncludeCache, flags CompileFlag, workerCount int, reporter ProgressReporter) *Engine {
	if workerCount < 1 {
		workerCount = 1
	}
	var mu locker
	if workerCount == 1 {
		mu = noopLocker{}
	} else {
		mu = &sync.Mutex{}
	}
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &Engine{
		store:    store,
		compiler: compiler,
		files:    files,
		cache:    cache,
		flags:    flags,
		reporter: reporter,
		mu:       mu,
		bytes:    NewByteCodeStore(),
		diags:    make(map[string]*DiagnosticTable),
		workers:  make([]workerState, workerCount),
		endCmd:   store.TotalCommands(),
	}
}

// Run drives every worker goroutine to completion, then returns the
// populated byte-code store and diagnostic tables for the output writer.
// It blocks until the entire command space has been consumed and every
// static combo has been packaged.
func (e *Engine) Run(ctx context.Context) (*ByteCodeStore, map[string]*DiagnosticTable, error) {
	var wg sync.WaitGroup
	errs := make([]error, len(e.workers))

	for i := range e.workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			errs[worker] = e.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	// A skip-pruned tail advances the cursor without a completion event, so
	// the barrier may stop short of endCmd; with every worker joined the
	// whole space is accounted for and the rest can be packaged.
	e.mu.Lock()
	pending := e.collectPackable(e.endCmd)
	e.mu.Unlock()
	e.packPending(pending)

	return e.bytes, e.diags, nil
}

// claim pulls the next unskipped command for worker under mu: advance the
// cursor, record the worker's running command, release. It returns false
// once the command space is exhausted.
func (e *Engine) claim(worker int) (*ShaderEntry, Combo, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.cursorCmd < e.endCmd {
		n := e.cursorCmd
		entry, combo, ok := e.store.ComboAtCommand(n)
		e.cursorCmd++
		if !ok {
			continue
		}
		if entry.SkipExpression.Evaluate(entry.gen.envFor(combo)) != 0 {
			continue
		}
		e.workers[worker] = workerState{running: true, runningN: n}
		return entry, combo, n, true
	}
	e.workers[worker] = workerState{running: false}
	return nil, Combo{}, 0, false
}

// workerLoop claims, compiles, and deposits until the cursor runs dry.
func (e *Engine) workerLoop(ctx context.Context, worker int) error {
	for {
		entry, combo, n, ok := e.claim(worker)
		if !ok {
			return nil
		}

		source, err := e.files.ReadFile(entry.SourceFile)
		var result CompileResult
		var compileErr error
		if err != nil {
			compileErr = &IncludeMissingError{Name: entry.SourceFile}
		} else {
			req := newCompileRequest(entry, combo, source, e.cache, e.flags)
			result, compileErr = e.compiler.Compile(ctx, req)
		}

		e.deposit(entry, combo, n, result, compileErr)
		e.finishCommand(worker)
	}
}

// deposit records a compile's outcome into the byte-code store and
// diagnostic table, one short critical section per compile exit.
func (e *Engine) deposit(entry *ShaderEntry, combo Combo, n uint64, result CompileResult, compileErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	diag := e.diagnosticsFor(entry.Name)
	if compileErr != nil {
		e.bytes.MarkError(entry.Name)
		diag.Record(compileErr.Error(), n, SeverityError)
		return
	}
	if result.Listing != "" {
		diag.Record(result.Listing, n, SeverityWarning)
	}
	crc := crc32Of(result.Bytecode)
	e.bytes.AddDynamicBlock(entry.Name, combo.StaticIndex, combo.DynamicIndex, result.Bytecode, crc)
	e.reporter.CommandCompleted(entry.Name, n)
}

func (e *Engine) diagnosticsFor(name string) *DiagnosticTable {
	d, ok := e.diags[name]
	if !ok {
		d = NewDiagnosticTable()
		e.diags[name] = d
	}
	return d
}

// finishCommand runs the ordered-completion barrier: clear the worker's
// running record, recompute the completion frontier, and package
// everything that frontier newly covers. Collection happens under mu;
// the LZMA compression itself runs with the lock released.
func (e *Engine) finishCommand(worker int) {
	e.mu.Lock()
	e.workers[worker] = workerState{}
	pending := e.collectPackable(e.frontier())
	e.mu.Unlock()

	e.packPending(pending)
}

// packJob is one static combo claimed for packaging, carrying its blocks
// out of the critical section.
type packJob struct {
	name     string
	staticID uint64
	blocks   []ByteCodeBlock
}

// packPending compresses each claimed combo outside the lock and seals the
// result back into the store.
func (e *Engine) packPending(pending []packJob) {
	for _, job := range pending {
		packed := PackStaticCombo(job.blocks)
		e.mu.Lock()
		e.bytes.SealStatic(job.name, job.staticID, packed)
		e.mu.Unlock()
	}
}

// frontier is the smallest command number that is not yet known complete.
// Commands are handed out monotonically, so every command below cursorCmd
// has been claimed (or skip-pruned); of those, only the ones a worker still
// reports as running are outstanding.
func (e *Engine) frontier() uint64 {
	f := e.cursorCmd
	for _, w := range e.workers {
		if w.running && w.runningN < f {
			f = w.runningN
		}
	}
	return f
}

// collectPackable advances lastPackaged to frontier and claims every
// static combo whose last dynamic command lies strictly before it, across
// every entry the frontier has reached — a frontier crossing an entry
// boundary must still package the tail of the earlier entry. Claimed
// combos are flagged so overlapping calls cannot claim them twice. Caller
// holds mu.
func (e *Engine) collectPackable(frontier uint64) []packJob {
	if frontier <= e.lastPackaged {
		return nil
	}
	e.lastPackaged = frontier

	var pending []packJob
	for _, entry := range e.store.Entries() {
		if entry.CommandStart >= frontier {
			break
		}
		table, ok := e.bytes.shaders[entry.Name]
		if !ok {
			continue
		}
		dyn := entry.NumDynamic
		if dyn == 0 {
			continue
		}
		for _, staticID := range table.sortedStaticIDs() {
			sc := table[staticID]
			if sc.Sealed() || sc.packing {
				continue
			}
			lastDynamicCmd := entry.CommandStart + staticID*dyn + (dyn - 1)
			if lastDynamicCmd >= frontier {
				continue
			}
			sc.packing = true
			pending = append(pending, packJob{name: entry.Name, staticID: staticID, blocks: sc.Blocks})
		}
	}
	return pending
}
