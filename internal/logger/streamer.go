// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package logger

import (
	"container/ring"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Streamer is an [io.Writer] that keeps the last logged lines in memory. It
// serves them as plain text, or follows new lines as server-sent events when
// the client accepts text/event-stream.
type Streamer struct {
	mu        sync.RWMutex
	size      int
	remainder string
	r         *ring.Ring
	streams   map[chan string]struct{}
}

// NewStreamer returns a new Streamer keeping up to size lines.
func NewStreamer(size int) *Streamer {
	return &Streamer{
		size:    size,
		r:       ring.New(size),
		streams: make(map[chan string]struct{}),
	}
}

func (s *Streamer) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.remainder + string(b)
	for {
		idx := strings.IndexByte(text, '\n')
		if idx == -1 {
			break
		}
		line := text[:idx+1]
		s.r.Value = line
		s.r = s.r.Next()
		for stream := range s.streams {
			select {
			case stream <- line:
			default:
				// Slow readers miss lines.
			}
		}
		text = text[idx+1:]
	}
	s.remainder = text
	return len(b), nil
}

// Lines returns the buffered lines, oldest first.
func (s *Streamer) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]string, 0, s.size)
	s.r.Do(func(x any) {
		if x != nil {
			lines = append(lines, x.(string))
		}
	})
	return lines
}

// Stream returns a channel receiving newly logged lines. Call the returned
// function to stop streaming.
func (s *Streamer) Stream() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := make(chan string, s.size+1)
	s.streams[stream] = struct{}{}
	return stream, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.streams, stream)
		close(stream)
	}
}

func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	if !strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, line := range s.Lines() {
			fmt.Fprint(w, line)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	flush()

	stream, stop := s.Stream()
	defer stop()
	for {
		select {
		case line := <-stream:
			fmt.Fprintf(w, "event: logline\ndata: %s\n\n", strings.TrimSuffix(line, "\n"))
			flush()
		case <-r.Context().Done():
			return
		}
	}
}
