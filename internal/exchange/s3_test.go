package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves Head/Get/Put for path-style requests against one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return respond(http.StatusForbidden, nil), nil
	}
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodHead:
		if body, ok := f.objects[key]; ok {
			resp := respond(http.StatusOK, nil)
			resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
			return resp, nil
		}
		return respond(http.StatusNotFound, nil), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		return respond(http.StatusOK, nil), nil
	case http.MethodGet:
		if body, ok := f.objects[key]; ok {
			resp := respond(http.StatusOK, body)
			resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
			return resp, nil
		}
		resp := respond(http.StatusNotFound, []byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`))
		resp.Header.Set("Content-Type", "application/xml")
		return resp, nil
	}
	return respond(http.StatusNotImplemented, nil), nil
}

func respond(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{},
	}
}

func setupS3(t *testing.T) (*fakeS3, S3Config) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	cfg := S3Config{
		Bucket:          "beats",
		Endpoint:        "https://mock.s3.local",
		Prefix:          "exports/",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	}
	return fake, cfg
}

func TestS3Sink(t *testing.T) {
	ctx := context.Background()
	fake, cfg := setupS3(t)
	client, err := NewS3Client(ctx, cfg)
	require.NoError(t, err)
	sink := NewS3Sink(client, cfg.Bucket, cfg.Prefix)

	t.Run("uploads under the prefix", func(t *testing.T) {
		loc, err := sink.Offer(ctx, "Groove1.json", []byte(`{"kit":"808"}`))
		require.NoError(t, err)
		assert.Equal(t, "s3://beats/exports/Groove1.json", loc)
		assert.Equal(t, `{"kit":"808"}`, string(fake.objects["exports/Groove1.json"]))
	})

	t.Run("suffixes taken keys", func(t *testing.T) {
		loc, err := sink.Offer(ctx, "Groove1.json", []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, "s3://beats/exports/Groove1 (1).json", loc)
		assert.Equal(t, `{"kit":"808"}`, string(fake.objects["exports/Groove1.json"]))
	})

	t.Run("server errors surface", func(t *testing.T) {
		fake.fail = true
		defer func() { fake.fail = false }()
		_, err := sink.Offer(ctx, "Other.json", []byte(`{}`))
		assert.Error(t, err)
	})
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	_, cfg := setupS3(t)
	client, err := NewS3Client(ctx, cfg)
	require.NoError(t, err)

	x := New(Options{})
	a, err := x.Export(ctx, fixture(), NewS3Sink(client, cfg.Bucket, cfg.Prefix))
	require.NoError(t, err)

	bucket, key, ok := ParseS3URI(a.Location)
	require.True(t, ok)
	assert.Equal(t, "beats", bucket)

	d, err := x.ImportS3(ctx, NewS3Source(client, bucket), key)
	require.NoError(t, err)
	assert.Equal(t, "808", d.Kit)
	assert.JSONEq(t, `{"beats":[1,0,1,0]}`, string(d.Pattern))

	t.Run("missing object is storage unavailable", func(t *testing.T) {
		d, err := x.ImportS3(ctx, NewS3Source(client, bucket), "exports/nope.json")
		assert.Nil(t, d)
		assert.ErrorIs(t, err, patterns.ErrStorageUnavailable)
	})
}

func TestParseS3URI(t *testing.T) {
	bucket, key, ok := ParseS3URI("s3://beats/exports/My Beat.json")
	assert.True(t, ok)
	assert.Equal(t, "beats", bucket)
	assert.Equal(t, "exports/My Beat.json", key)

	for _, bad := range []string{"beats/x.json", "s3://", "s3://beats", "s3://beats/", "s3:///x.json"} {
		_, _, ok := ParseS3URI(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewS3Client(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket")
}
