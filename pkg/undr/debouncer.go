package undr

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
)

// Debouncer batches index writes. Directories registered with a debouncer
// mark themselves dirty instead of rewriting their index on every change;
// the debouncer saves dirty directories once per period and on Close.
type Debouncer struct {
	period time.Duration
	clock  clockwork.Clock

	mu     sync.Mutex
	dirty  map[*Directory]struct{}
	order  []*Directory
	errs   []error
	closed bool

	stop chan struct{}
	done chan struct{}
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithPeriod sets the interval between two flushes.
func WithPeriod(period time.Duration) DebouncerOption {
	return func(d *Debouncer) {
		if period > 0 {
			d.period = period
		}
	}
}

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock clockwork.Clock) DebouncerOption {
	return func(d *Debouncer) {
		d.clock = clock
	}
}

// NewDebouncer starts a debouncer. Close must be called to stop its goroutine.
func NewDebouncer(opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		period: constants.DebouncePeriod,
		clock:  clockwork.NewRealClock(),
		dirty:  make(map[*Directory]struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	ticker := d.clock.NewTicker(d.period)
	go d.run(ticker)
	return d
}

// Period returns the flush interval.
func (d *Debouncer) Period() time.Duration {
	return d.period
}

// set marks a directory dirty. It returns false once the debouncer is closed,
// in which case the caller must save the index itself.
func (d *Debouncer) set(directory *Directory) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if _, ok := d.dirty[directory]; !ok {
		d.dirty[directory] = struct{}{}
		d.order = append(d.order, directory)
	}
	return true
}

func (d *Debouncer) run(ticker clockwork.Ticker) {
	defer close(d.done)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			d.flush()
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush saves the directories marked dirty since the previous flush, in the
// order they were first marked.
func (d *Debouncer) flush() {
	d.mu.Lock()
	directories := d.order
	d.order = nil
	clear(d.dirty)
	d.mu.Unlock()

	if len(directories) == 0 {
		return
	}
	logging.Debug().Int("directories", len(directories)).Msg("Flushing debounced indexes")
	for _, directory := range directories {
		if err := directory.SaveIndex(); err != nil {
			logging.Err(err).Str("path", directory.IndexPath()).Msg("Failed to save index")
			d.mu.Lock()
			d.errs = append(d.errs, err)
			d.mu.Unlock()
		}
	}
}

// Close stops the debouncer, saves every pending index and returns the
// errors met by all flushes. Calling Close again returns ErrClosed.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stop)
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.errs...)
}
