package console

import (
	"bufio"
	"io"
	"log"
	"sync"
	"time"
)

// Line is one unit of console output from the server child.
type Line struct {
	Seq       int64     `json:"seq"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultSubscriberBuffer bounds how far a subscriber may lag before
// its oldest pending line is dropped.
const DefaultSubscriberBuffer = 256

// Relay reads a server child's output stream line by line and fans
// each line out to the current subscribers. One relay serves exactly
// one process instance; a new process gets a fresh relay.
//
// The reader is never blocked by a subscriber: a subscriber that
// falls behind has its oldest buffered line dropped to make room.
// With no subscribers attached, lines are discarded.
type Relay struct {
	mu          sync.Mutex
	subscribers map[chan Line]struct{}
	closed      bool

	seq  int64
	done chan struct{}
}

// NewRelay creates an idle relay; Run attaches it to a stream.
func NewRelay() *Relay {
	return &Relay{
		subscribers: make(map[chan Line]struct{}),
		done:        make(chan struct{}),
	}
}

// Run drains the stream until EOF or a read error, then closes the
// relay. It blocks; the supervisor runs it in its own goroutine.
func (r *Relay) Run(stream io.Reader) {
	scanner := bufio.NewScanner(stream)
	scanner.Split(splitOnNewlineOrCarriageReturn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		r.publish(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		log.Printf("[Relay] Output stream closed with error: %v", err)
	}

	r.close()
}

// Done is closed when the child's output stream has ended. The
// supervisor uses this as an exit signal alongside process wait.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Subscribe registers a consumer. The returned cancel func must be
// called when the consumer is finished; the channel is closed either
// by cancel or when the stream ends.
func (r *Relay) Subscribe() (<-chan Line, func()) {
	ch := make(chan Line, DefaultSubscriberBuffer)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, active := r.subscribers[ch]; active {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
}

// publish fans the line out under the mutex. Every send is
// non-blocking, so the lock is never held for long, and holding it
// here means a subscriber channel can never be closed mid-send.
func (r *Relay) publish(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.seq++
	line := Line{Seq: r.seq, Text: text, Timestamp: time.Now()}

	for ch := range r.subscribers {
		select {
		case ch <- line:
		default:
			// Subscriber is full: drop its oldest line, then try once
			// more. If it is still full the new line is dropped for
			// this subscriber only.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- line:
			default:
			}
		}
	}
}

func (r *Relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = make(map[chan Line]struct{})
	close(r.done)
}

// LineCount reports how many lines the relay has published so far.
func (r *Relay) LineCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Minecraft servers emit progress with bare carriage returns, so a
// line ends at either byte.
func splitOnNewlineOrCarriageReturn(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
