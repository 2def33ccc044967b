package supervisor

import (
	"bytes"
	"sync"
)

// maxPartialLine bounds an unterminated line; longer runs are flushed as a line.
const maxPartialLine = 64 << 10

// lineRing keeps the last size complete lines written to it.
type lineRing struct {
	mu      sync.Mutex
	lines   [][]byte
	next    int
	full    bool
	partial []byte
}

func newLineRing(size int) *lineRing {
	if size <= 0 {
		size = 200
	}
	return &lineRing{lines: make([][]byte, size)}
}

func (r *lineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := append(r.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		r.push(data[:i+1])
		data = data[i+1:]
	}
	for len(data) > maxPartialLine {
		r.push(data[:maxPartialLine])
		data = data[maxPartialLine:]
	}
	r.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (r *lineRing) push(line []byte) {
	r.lines[r.next] = append([]byte(nil), line...)
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Tail returns up to n of the most recent lines, oldest first.
func (r *lineRing) Tail(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.next
	if r.full {
		count = len(r.lines)
	}
	if n <= 0 || n > count {
		n = count
	}
	var out bytes.Buffer
	for i := count - n; i < count; i++ {
		idx := i
		if r.full {
			idx = (r.next + i) % len(r.lines)
		}
		out.Write(r.lines[idx])
	}
	out.Write(r.partial)
	return out.Bytes()
}
