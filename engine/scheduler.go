package engine

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/burbilog/iftpfm2/config"
	"github.com/burbilog/iftpfm2/logging"
)

// EntryFunc processes one configuration entry on the given worker and
// returns the number of files it transferred.
type EntryFunc func(worker int, e *config.Entry) int

// Scheduler fans the entry list out over a fixed set of workers. Entries
// are read-only after load, so workers share nothing but the feed channel.
type Scheduler struct {
	// Workers is the pool size. Values below 1 run a single worker.
	Workers int

	// Randomize shuffles the entry order once before dispatch, so a
	// slow endpoint at the top of the file does not starve the rest on
	// every run.
	Randomize bool

	Shutdown *Shutdown
	Log      *logging.Logger
}

// Run dispatches entries to the pool and returns the total number of files
// transferred across all entries. It blocks until every worker has drained.
func (s *Scheduler) Run(entries []*config.Entry, handle EntryFunc) int {
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	if s.Randomize {
		entries = append([]*config.Entry(nil), entries...)
		rand.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})
	}

	feed := make(chan *config.Entry)
	var total atomic.Int64
	var wg sync.WaitGroup

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for e := range feed {
				total.Add(int64(handle(worker, e)))
			}
		}(w)
	}

	for _, e := range entries {
		if s.Shutdown != nil && s.Shutdown.Requested() {
			s.Log.Printf("shutdown requested, skipping remaining entries")
			break
		}
		feed <- e
	}
	close(feed)
	wg.Wait()

	return int(total.Load())
}
