package cover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://music.163.com/"
	DefaultTimeout = 5 * time.Second

	// hiResParam is appended to the picture URL when the first download fails.
	hiResParam = "param=3000y3000"
	// maxImageSize bounds a single picture download.
	maxImageSize = 32 << 20
)

type songDetailResponse struct {
	Songs []struct {
		Album struct {
			PicURL string `json:"picUrl"`
		} `json:"album"`
	} `json:"songs"`
	Code int `json:"code"`
}

// Fetcher downloads album art from the song detail API.
type Fetcher struct {
	baseUrl *url.URL
	client  *http.Client
	log     *log.Entry
}

type Option func(*Fetcher)

func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithBaseURL overrides the API host. Invalid URLs are ignored.
func WithBaseURL(raw string) Option {
	return func(f *Fetcher) {
		if u, err := url.Parse(raw); err == nil {
			f.baseUrl = u
		}
	}
}

func WithLogger(entry *log.Entry) Option {
	return func(f *Fetcher) {
		f.log = entry
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	baseUrl, err := url.Parse(DefaultBaseURL)
	if err != nil {
		panic("invalid cover base URL")
	}

	f := &Fetcher{
		baseUrl: baseUrl,
		client:  &http.Client{Timeout: DefaultTimeout},
		log:     log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves the picture URL of musicID and downloads it. A failed download
// is retried once with the high resolution query parameter.
func (f *Fetcher) Fetch(ctx context.Context, musicID int64) ([]byte, error) {
	picUrl, err := f.lookup(ctx, musicID)
	if err != nil {
		return nil, newError("lookup", musicID, err)
	}

	urls := []string{picUrl, withParam(picUrl, hiResParam)}
	attempt := 0
	var data []byte
	op := func() error {
		u := urls[attempt]
		attempt++
		data, err = f.download(ctx, u)
		if err != nil {
			f.log.WithError(err).Debugf("failed downloading cover %s", u)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(len(urls)-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, newError("download", musicID, err)
	}
	return data, nil
}

func (f *Fetcher) lookup(ctx context.Context, musicID int64) (string, error) {
	reqUrl := f.baseUrl.JoinPath("api", "song", "detail") // drops the trailing slash
	reqUrl.Path += "/"
	reqUrl.RawQuery = "ids=" + url.QueryEscape(fmt.Sprintf("[%d]", musicID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed requesting song detail: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("invalid status code from song detail: %d", resp.StatusCode)
	}

	var detail songDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return "", fmt.Errorf("failed unmarshalling song detail: %w", err)
	}
	if len(detail.Songs) == 0 || detail.Songs[0].Album.PicURL == "" {
		return "", fmt.Errorf("no picture for song")
	}
	return detail.Songs[0].Album.PicURL, nil
}

func (f *Fetcher) download(ctx context.Context, picUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, picUrl, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid status code from picture host: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty picture")
	}
	return data, nil
}

func withParam(raw, param string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw + "?" + param
	}
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String()
}
