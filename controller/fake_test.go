package controller

import (
	"context"
	"sync"

	"jarvis/audio"
	"jarvis/interact"
	"jarvis/meter"
	"jarvis/recorder"
	"jarvis/transcript"
)

type fakeView struct {
	mu        sync.Mutex
	statuses  []string
	capturing bool
	levels    []float64
	entries   []transcript.Entry
	enabled   map[Action]bool
	notices   []string
}

func newFakeView() *fakeView {
	return &fakeView{enabled: make(map[Action]bool)}
}

func (v *fakeView) SetLevel(l float64) {
	v.mu.Lock()
	v.levels = append(v.levels, l)
	v.mu.Unlock()
}

func (v *fakeView) SetStatus(s string) {
	v.mu.Lock()
	v.statuses = append(v.statuses, s)
	v.mu.Unlock()
}

func (v *fakeView) SetCapturing(on bool) {
	v.mu.Lock()
	v.capturing = on
	v.mu.Unlock()
}

func (v *fakeView) AppendEntry(e transcript.Entry) {
	v.mu.Lock()
	v.entries = append(v.entries, e)
	v.mu.Unlock()
}

func (v *fakeView) SetActionEnabled(a Action, on bool) {
	v.mu.Lock()
	v.enabled[a] = on
	v.mu.Unlock()
}

func (v *fakeView) Notify(msg string) {
	v.mu.Lock()
	v.notices = append(v.notices, msg)
	v.mu.Unlock()
}

func (v *fakeView) status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return ""
	}
	return v.statuses[len(v.statuses)-1]
}

func (v *fakeView) notifications() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.notices...)
}

func (v *fakeView) shown() []transcript.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]transcript.Entry(nil), v.entries...)
}

func (v *fakeView) isEnabled(a Action) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled[a]
}

func (v *fakeView) isCapturing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capturing
}

type fakeMeter struct {
	mu       sync.Mutex
	attached bool
	attaches int
	detaches int
}

func (m *fakeMeter) Attach(meter.Source) {
	m.mu.Lock()
	m.attached = true
	m.attaches++
	m.mu.Unlock()
}

func (m *fakeMeter) Detach() {
	m.mu.Lock()
	m.attached = false
	m.detaches++
	m.mu.Unlock()
}

func (m *fakeMeter) isAttached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}

type sendCall struct {
	payload  []byte
	filename string
	mimeType string
}

type fakeExchanger struct {
	mu      sync.Mutex
	result  interact.Result
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   []sendCall
}

func (e *fakeExchanger) Send(ctx context.Context, payload []byte, filename, mimeType string) (interact.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, sendCall{payload, filename, mimeType})
	block, entered := e.block, e.entered
	e.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	return e.result, e.err
}

func (e *fakeExchanger) sent() []sendCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sendCall(nil), e.calls...)
}

type fakePlayer struct {
	mu   sync.Mutex
	err  error
	urls []string
}

func (p *fakePlayer) Play(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return p.err
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

type fakeSharer struct {
	available bool
	err       error
	title     string
	text      string
	calls     int
}

func (s *fakeSharer) Available() bool { return s.available }

func (s *fakeSharer) Share(_ context.Context, title, text string) error {
	s.calls++
	s.title, s.text = title, text
	return s.err
}

// gatedRecorder holds Start until release is closed.
type gatedRecorder struct {
	started chan struct{}
	release chan struct{}
	stops   int
}

func (r *gatedRecorder) Start(context.Context) (*audio.Tap, error) {
	close(r.started)
	<-r.release
	return audio.NewTap(512), nil
}

func (r *gatedRecorder) Stop() (recorder.Payload, error) {
	r.stops++
	return recorder.Payload{}, nil
}
