package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls journal buffering and batching.
type Config struct {
	Enabled bool
	// BufferSize bounds the events waiting to be written.
	BufferSize int
	// BatchSize is the most events handed to the sink at once.
	BatchSize int
	// FlushInterval writes a partial batch once it has waited this long.
	FlushInterval time.Duration
	// DropIfFull drops new events while the buffer is full instead of
	// waiting for room.
	DropIfFull bool
}

// Journal batches events and writes them to a Sink from one goroutine.
// A nil *Journal discards everything.
type Journal struct {
	cfg   Config
	sink  Sink
	rec   Recorder
	queue chan Event

	mu      sync.RWMutex
	closed  bool
	stop    chan struct{}
	stopped chan struct{}
	dropped atomic.Uint64
}

// NewJournal starts a journal, or returns nil when cfg is disabled. A nil
// rec ignores outcomes.
func NewJournal(cfg Config, sink Sink, rec Recorder) *Journal {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if sink == nil {
		sink = discard{}
	}
	if rec == nil {
		rec = discard{}
	}

	j := &Journal{
		cfg:     cfg,
		sink:    sink,
		rec:     rec,
		queue:   make(chan Event, cfg.BufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go j.run()
	return j
}

// Append queues e. Without DropIfFull it waits for room or for ctx.
// Events appended after Close are dropped.
func (j *Journal) Append(ctx context.Context, e Event) {
	if j == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.drop(e)
		return
	}

	if j.cfg.DropIfFull {
		select {
		case j.queue <- e:
		default:
			j.drop(e)
		}
		return
	}
	select {
	case j.queue <- e:
	case <-ctx.Done():
		j.drop(e)
	}
}

func (j *Journal) drop(e Event) {
	j.dropped.Add(1)
	j.rec.Record(e.Type, Dropped)
}

func (j *Journal) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, j.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		j.write(batch)
		batch = make([]Event, 0, j.cfg.BatchSize)
	}

	for {
		select {
		case e := <-j.queue:
			batch = append(batch, e)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-j.stop:
			for {
				select {
				case e := <-j.queue:
					batch = append(batch, e)
					if len(batch) >= j.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (j *Journal) write(batch []Event) {
	outcome := Delivered
	if err := j.sink.Write(context.Background(), batch); err != nil {
		outcome = Failed
	}
	for _, e := range batch {
		j.rec.Record(e.Type, outcome)
	}
}

// Close stops accepting events, writes what is buffered and waits for the
// sink to finish.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.stopped
		return
	}
	j.closed = true
	close(j.stop)
	j.mu.Unlock()
	<-j.stopped
}

// Dropped returns how many events never reached the sink.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}
