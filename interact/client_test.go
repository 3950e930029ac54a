package interact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return c, srv
}

func TestSendSuccess(t *testing.T) {
	var gotName, gotFile, gotType string
	var gotBody []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, InteractPath, r.URL.Path)
		mr, err := r.MultipartReader()
		require.NoError(t, err)
		part, err := mr.NextPart()
		require.NoError(t, err)
		gotName, gotFile, gotType = part.FormName(), part.FileName(), part.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(part)
		_, err = mr.NextPart()
		assert.ErrorIs(t, err, io.EOF)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"user_text":"hi","ai_response":"hello","audio_url":"/a/1.wav"}`)
	})

	res, err := c.Send(context.Background(), []byte("RIFFdata"), "", "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.UserText)
	assert.Equal(t, "hello", res.AIText)
	assert.Equal(t, "/a/1.wav", res.AudioURL)
	assert.NotNil(t, res.Metrics)

	assert.Equal(t, FieldName, gotName)
	assert.Equal(t, DefaultFilename, gotFile)
	assert.Equal(t, "audio/wav", gotType)
	assert.Equal(t, []byte("RIFFdata"), gotBody)
}

func TestSendPartialResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ai_response":"only ai"}`)
	})
	res, err := c.Send(context.Background(), []byte{1}, "clip.wav", "audio/wav")
	require.NoError(t, err)
	assert.Empty(t, res.UserText)
	assert.Equal(t, "only ai", res.AIText)
	assert.Empty(t, res.AudioURL)
}

func TestSendServerErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"detail", 429, `{"detail":"Rate limited"}`, 429, "Rate limited"},
		{"unparseable", 500, `<html>boom</html>`, 500, "Server error"},
		{"non-string detail", 422, `{"detail":[{"loc":["body"]}]}`, 422, "Server error"},
		{"empty body", 502, ``, 502, "Server error"},
		{"undecodable success", 200, `not json`, 200, "Server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.Send(context.Background(), []byte{1, 2}, "", "")
			var se *ServerError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantStatus, se.Status)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(addr, time.Second)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), []byte{1}, "", "")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestSendCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, []byte{1}, "", "")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), []byte{1}, "", "")
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestSendRejectsOverlap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		io.WriteString(w, `{"user_text":"a","ai_response":"b"}`)
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), []byte{1}, "", "")
		done <- err
	}()
	<-entered

	_, err := c.Send(context.Background(), []byte{2}, "", "")
	assert.ErrorIs(t, err, ErrExchangeInFlight)

	close(release)
	require.NoError(t, <-done)

	// guard is released once the first exchange completes
	c2err := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), []byte{3}, "", "")
		c2err <- err
	}()
	assert.NotErrorIs(t, <-c2err, ErrExchangeInFlight)
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HealthPath, r.URL.Path)
		io.WriteString(w, `{"status":"ok","components":{"speech_recognition":true,"pyttsx3":false}}`)
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.Components["speech_recognition"])
	assert.False(t, h.Components["pyttsx3"])
	assert.False(t, h.Ready())
}

func TestFetchResolvesRelative(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/reply.wav" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"Not Found"}`)
			return
		}
		io.WriteString(w, "wavbytes")
	})
	data, err := c.Fetch(context.Background(), "/audio/reply.wav")
	require.NoError(t, err)
	assert.Equal(t, "wavbytes", string(data))

	_, err = c.Fetch(context.Background(), "/missing.wav")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Not Found", se.Detail)
}

func TestResolveURL(t *testing.T) {
	c, err := New("http://localhost:8000/", time.Second)
	require.NoError(t, err)

	tests := []struct {
		ref  string
		want string
	}{
		{"/audio/x.wav", "http://localhost:8000/audio/x.wav"},
		{"https://cdn.example.com/x.wav", "https://cdn.example.com/x.wav"},
	}
	for _, tt := range tests {
		got, err := c.ResolveURL(tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", time.Second)
	assert.Error(t, err)
	_, err = New("::", time.Second)
	assert.Error(t, err)
}
