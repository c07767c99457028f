package cover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coverServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string

	detail     func(w http.ResponseWriter, r *http.Request)
	picture    func(w http.ResponseWriter, r *http.Request)
	pictureErr int // number of leading picture requests answered with 500
}

func newCoverServer(t *testing.T) *coverServer {
	s := &coverServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/song/detail/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if s.detail != nil {
			s.detail(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, `{"songs":[{"album":{"picUrl":"%s/pic/1.jpg"}}],"code":200}`, s.URL)
	})
	mux.HandleFunc("/pic/1.jpg", func(w http.ResponseWriter, r *http.Request) {
		n := s.record(r)
		if s.picture != nil {
			s.picture(w, r)
			return
		}
		if n <= s.pictureErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("picture:" + r.URL.RawQuery))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// record stores the request and returns how many picture requests were seen.
func (s *coverServer) record(r *http.Request) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.URL.RequestURI())
	n := 0
	for _, u := range s.requests {
		if len(u) >= 5 && u[:5] == "/pic/" {
			n++
		}
	}
	return n
}

func (s *coverServer) fetcher() *Fetcher {
	return NewFetcher(WithBaseURL(s.URL+"/"), WithClient(s.Client()))
}

func TestFetch(t *testing.T) {
	s := newCoverServer(t)

	data, err := s.fetcher().Fetch(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, "picture:", string(data))
	assert.Equal(t, []string{"/api/song/detail/?ids=%5B123%5D", "/pic/1.jpg"}, s.requests)
}

func TestFetchRetriesOnceWithHighResolution(t *testing.T) {
	s := newCoverServer(t)
	s.pictureErr = 1

	data, err := s.fetcher().Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "picture:param=3000y3000", string(data))
	assert.Equal(t, []string{"/api/song/detail/?ids=%5B5%5D", "/pic/1.jpg", "/pic/1.jpg?param=3000y3000"}, s.requests)
}

func TestFetchGivesUpAfterRetry(t *testing.T) {
	s := newCoverServer(t)
	s.pictureErr = 10

	_, err := s.fetcher().Fetch(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCover)

	var coverErr *Error
	require.True(t, errors.As(err, &coverErr))
	assert.Equal(t, "download", coverErr.Op)
	assert.Equal(t, int64(5), coverErr.MusicID)
	assert.Len(t, s.requests, 3)
}

func TestFetchLookupFailures(t *testing.T) {
	tests := []struct {
		name   string
		detail func(w http.ResponseWriter, r *http.Request)
	}{
		{name: "status", detail: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{name: "bad json", detail: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) }},
		{name: "no songs", detail: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"songs":[],"code":200}`)) }},
		{name: "no picture", detail: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"songs":[{"album":{}}],"code":200}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newCoverServer(t)
			s.detail = tt.detail

			_, err := s.fetcher().Fetch(context.Background(), 1)
			assert.ErrorIs(t, err, ErrCover)
			var coverErr *Error
			require.True(t, errors.As(err, &coverErr))
			assert.Equal(t, "lookup", coverErr.Op)
			assert.Len(t, s.requests, 1)
		})
	}
}

func TestFetchEmptyPicture(t *testing.T) {
	s := newCoverServer(t)
	s.picture = func(w http.ResponseWriter, r *http.Request) {}

	_, err := s.fetcher().Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCover)
	assert.Len(t, s.requests, 3)
}

func TestWithParam(t *testing.T) {
	assert.Equal(t, "http://a/b.jpg?param=3000y3000", withParam("http://a/b.jpg", hiResParam))
	assert.Equal(t, "http://a/b.jpg?x=1&param=3000y3000", withParam("http://a/b.jpg?x=1", hiResParam))
}
