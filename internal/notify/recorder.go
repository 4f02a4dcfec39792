package notify

import "sync"

// Recorder keeps every message in memory. Tests and the keys CLI use it in
// place of a webhook.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the recorded messages in arrival order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Titles returns the title of each recorded message.
func (r *Recorder) Titles() []string {
	msgs := r.Messages()
	titles := make([]string, len(msgs))
	for i, m := range msgs {
		titles[i] = m.Title
	}
	return titles
}
