// Package transcript keeps the ordered conversation shown to the user.
package transcript

import (
	"strings"
	"sync"
)

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

type Entry struct {
	Text    string
	Speaker Speaker
}

// Transcript is append-only for the lifetime of the process.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

func (t *Transcript) AppendUser(text string) Entry {
	e := Entry{Text: text, Speaker: SpeakerUser}
	t.Append(e)
	return e
}

func (t *Transcript) AppendAI(text string) Entry {
	e := Entry{Text: text, Speaker: SpeakerAI}
	t.Append(e)
	return e
}

func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Export renders every entry's text separated by a blank line.
func (t *Transcript) Export() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	texts := make([]string, len(t.entries))
	for i, e := range t.entries {
		texts[i] = e.Text
	}
	return strings.Join(texts, "\n\n")
}
