package interact

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

type TracedClient struct {
	client *http.Client
}

func NewTracedClient(timeout time.Duration) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// traceTimes collects httptrace callbacks. The transport may invoke hooks
// from its read and write loops concurrently, so every access holds mu.
type traceTimes struct {
	mu      sync.Mutex
	metrics NetworkMetrics

	getConnStart, dnsStart, tcpStart, tlsStart     time.Time
	gotConn, wroteHeaders, wroteRequest, firstByte time.Time
}

func (t *traceTimes) with(f func()) {
	t.mu.Lock()
	f()
	t.mu.Unlock()
}

func (t *traceTimes) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(_ string) {
			t.with(func() { t.getConnStart = time.Now() })
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.with(func() {
				t.gotConn = time.Now()
				t.metrics.ConnWait = t.gotConn.Sub(t.getConnStart)
				t.metrics.ConnReused = info.Reused
			})
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			t.with(func() { t.dnsStart = time.Now() })
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			t.with(func() { t.metrics.DNS = time.Since(t.dnsStart) })
		},
		ConnectStart: func(_, _ string) {
			t.with(func() { t.tcpStart = time.Now() })
		},
		ConnectDone: func(_, _ string, _ error) {
			t.with(func() { t.metrics.TCP = time.Since(t.tcpStart) })
		},
		TLSHandshakeStart: func() {
			t.with(func() { t.tlsStart = time.Now() })
		},
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			t.with(func() {
				t.metrics.TLS = time.Since(t.tlsStart)
				t.metrics.TLSProtocol = cs.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			t.with(func() {
				t.wroteHeaders = time.Now()
				t.metrics.ReqHeaders = t.wroteHeaders.Sub(t.gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			t.with(func() {
				t.wroteRequest = time.Now()
				t.metrics.ReqBody = t.wroteRequest.Sub(t.wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			t.with(func() {
				t.firstByte = time.Now()
				t.metrics.TTFB = t.firstByte.Sub(t.wroteRequest)
			})
		},
	}
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	times := &traceTimes{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), times.clientTrace()))
	reqStart := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	times.mu.Lock()
	metrics := times.metrics
	metrics.Download = time.Since(times.firstByte)
	times.mu.Unlock()
	metrics.Total = time.Since(reqStart)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    &metrics,
	}, nil
}

// Get fetches url without tracing. Used for response audio.
func (c *TracedClient) Get(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}
