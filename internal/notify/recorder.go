package notify

import "sync"

// Recorder keeps every emitted message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Emit(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
