package replica

import "github.com/vczyh/mysql-cdc/binlog"

// Streamer yields the events of a Replica. The replica reads the next
// event only when HasNext asks for it, and the transaction boundary
// delivered last is accepted, advancing the replica position, at the same
// moment. A Streamer is meant for one consumer goroutine.
type Streamer struct {
	requests chan struct{}
	events   chan binlog.Event
	done     chan struct{}

	// err is written by the read loop before done is closed.
	err error

	e     binlog.Event
	ended bool
}

func newStreamer() *Streamer {
	return &Streamer{
		requests: make(chan struct{}),
		events:   make(chan binlog.Event),
		done:     make(chan struct{}),
	}
}

// HasNext blocks until the next event is available or the stream ends.
func (s *Streamer) HasNext() bool {
	if s.ended {
		return false
	}

	select {
	case s.requests <- struct{}{}:
	case <-s.done:
		return s.end()
	}

	select {
	case e := <-s.events:
		s.e = e
		return true
	case <-s.done:
		return s.end()
	}
}

func (s *Streamer) end() bool {
	s.ended = true
	s.e = nil
	return false
}

func (s *Streamer) Next() binlog.Event {
	return s.e
}

// Err returns the error that ended the stream. It is nil when the stream
// was closed or a non-blocking dump reached the end of the binlog.
func (s *Streamer) Err() error {
	if !s.ended {
		return nil
	}
	return s.err
}
