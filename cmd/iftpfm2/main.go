package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/burbilog/iftpfm2/config"
	"github.com/burbilog/iftpfm2/engine"
	"github.com/burbilog/iftpfm2/instance"
	"github.com/burbilog/iftpfm2/logging"
	"github.com/burbilog/iftpfm2/provider"
	"github.com/burbilog/iftpfm2/store"
)

const version = "2.0.0"

const (
	defaultGraceSeconds   = 30
	defaultTimeoutSeconds = 30
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		deleteSource bool
		logFile      string
		logStdout    bool
		workers      int
		randomize    bool
		graceSec     int
		timeoutSec   int
		scratchDir   string
		ramThreshold int64
		skipVerify   bool
		debug        bool
		journalPath  string
		showVersion  bool
	)

	flag.BoolVar(&deleteSource, "d", false, "Delete source files after a verified transfer")
	flag.StringVar(&logFile, "l", "", "Log file (default: stdout)")
	flag.BoolVar(&logStdout, "s", false, "Log to stdout (mutually exclusive with -l)")
	flag.IntVar(&workers, "p", 1, "Number of entries processed in parallel")
	flag.BoolVar(&randomize, "r", false, "Randomize the order of config entries")
	flag.IntVar(&graceSec, "g", defaultGraceSeconds, "Grace period in seconds for a previous instance to exit")
	flag.IntVar(&timeoutSec, "t", defaultTimeoutSeconds, "Connection timeout in seconds")
	flag.StringVar(&scratchDir, "T", "", "Scratch directory for large-file buffering (default: system temp)")
	flag.Int64Var(&ramThreshold, "ram-threshold", engine.DefaultMemoryThreshold, "Largest file buffered in memory, in bytes; 0 buffers everything in memory")
	flag.BoolVar(&skipVerify, "insecure-skip-verify", false, "Skip TLS certificate verification for ftps")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&journalPath, "journal", "", "Record transfer outcomes in a journal database at this path")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("iftpfm2 version %s\n", version)
		return 0
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: iftpfm2 [options] <config file>\n\nOptions:\n")
		flag.PrintDefaults()
		return 2
	}
	if logFile != "" && logStdout {
		fmt.Fprintln(os.Stderr, "-l and -s are mutually exclusive")
		return 2
	}

	log, err := logging.New(logFile, debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Close()

	entries, err := config.Parse(flag.Arg(0))
	if err != nil {
		log.Printf("ERROR: %v", err)
		return 1
	}
	if len(entries) == 0 {
		log.Printf("ERROR: config file %s has no entries", flag.Arg(0))
		return 1
	}

	buffers := &engine.BufferFactory{Threshold: ramThreshold, ScratchDir: scratchDir}
	if err := buffers.CheckScratch(); err != nil {
		log.Printf("ERROR: %v", err)
		return 1
	}

	guard, err := instance.Acquire(filepath.Join(os.TempDir(), "iftpfm2.pid"),
		time.Duration(graceSec)*time.Second, log)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return 1
	}
	defer guard.Release()

	var journal *store.Journal
	if journalPath != "" {
		journal, err = store.Open(journalPath)
		if err != nil {
			log.Printf("ERROR: %v", err)
			return 1
		}
		defer journal.Close()
	}

	var shutdown engine.Shutdown
	shutdown.Install()

	log.Printf("iftpfm2 %s starting, %d entries, %d workers", version, len(entries), workers)
	started := time.Now()

	opts := provider.Options{
		Timeout:            time.Duration(timeoutSec) * time.Second,
		InsecureSkipVerify: skipVerify,
	}

	var fatal atomic.Bool
	scheduler := &engine.Scheduler{
		Workers:   workers,
		Randomize: randomize,
		Shutdown:  &shutdown,
		Log:       log,
	}
	total := scheduler.Run(entries, func(worker int, e *config.Entry) int {
		p := &engine.Pipeline{
			Entry:    e,
			Dial:     provider.Dial,
			Opts:     opts,
			Buffers:  buffers,
			Shutdown: &shutdown,
			Log:      log,
			Delete:   deleteSource,
			Worker:   worker,
		}
		if journal != nil {
			p.Journal = journal
		}
		moved, err := p.Run()
		var fe *engine.FatalError
		if errors.As(err, &fe) {
			log.Printf("FATAL: %v", err)
			fatal.Store(true)
			shutdown.Request()
		}
		return moved
	})

	log.Printf("iftpfm2 %s finished in %s, %d files transferred, shutdown cause: %s",
		version, time.Since(started).Round(time.Second), total, shutdown.Cause())

	if journal != nil {
		err := journal.RecordRun(store.RunRecord{
			Started:  started.Unix(),
			Finished: time.Now().Unix(),
			Files:    total,
			Cause:    shutdown.Cause(),
		})
		if err != nil {
			log.Printf("WARNING: journal run record failed: %v", err)
		}
	}

	if fatal.Load() {
		return 1
	}
	return 0
}
