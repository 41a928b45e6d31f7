package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Op is what happened to a path.
type Op int

const (
	// Changed means the document was created or modified.
	Changed Op = iota
	// Removed means the document was deleted or moved away.
	Removed
	// Rescan asks for a full rebuild (e.g. after the watcher lost events).
	Rescan
)

func (o Op) String() string {
	switch o {
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	case Rescan:
		return "rescan"
	default:
		return "unknown"
	}
}

// Event is an inbound "something changed on disk" message. The watcher,
// an editor's save hook, or a test all reduce to this.
type Event struct {
	Path string
	Op   Op
}

// UpdateKind says what produced an Update.
type UpdateKind string

const (
	KindFull    UpdateKind = "full"
	KindChanged UpdateKind = "changed"
	KindRemoved UpdateKind = "removed"
	KindSchema  UpdateKind = "schema"
)

// Update is published to subscribers after every swap.
type Update struct {
	BuildID    string     `json:"build_id"`
	Kind       UpdateKind `json:"kind"`
	Paths      []string   `json:"paths,omitempty"`
	Entities   int        `json:"entities"`
	References int        `json:"references"`
	Failed     int        `json:"failed"`
	At         time.Time  `json:"at"`
}

// subscriberBuffer is how many updates a slow subscriber may lag behind
// before updates to it are dropped.
const subscriberBuffer = 32

// Subscribe returns a channel receiving every subsequent Update, and a
// function that unsubscribes and closes it. Updates are dropped for a
// subscriber whose buffer is full.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	s.subsMu.Lock()
	if s.closed.Load() {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(u Update) {
	if u.At.IsZero() {
		u.At = time.Now().UTC()
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- u:
		default:
			s.logger.Debug("dropping update for slow subscriber", slog.String("build_id", u.BuildID))
		}
	}
}

// Run consumes events until ctx is done or events is closed. Changed and
// Removed events rebuild one document synchronously; Rescan starts a full
// build in the background so single-document events keep flowing, and a
// later Rescan supersedes an earlier one.
func (s *Session) Run(ctx context.Context, events <-chan Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Op {
			case Rescan:
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.RebuildIndex(ctx)
					if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
						s.logger.Error("index rebuild failed", slog.Any("error", err))
					}
				}()
			default:
				if _, err := s.RebuildOne(ev.Path); err != nil {
					if errors.Is(err, ErrClosed) {
						return err
					}
					s.logger.Warn("failed to rebuild document",
						slog.String("path", ev.Path),
						slog.String("op", ev.Op.String()),
						slog.Any("error", err),
					)
				}
			}
		}
	}
}
