package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-netlog/internal/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    any
		wantErr bool
	}{
		{name: "default", opts: Options{}, want: &Random{}},
		{name: "static", opts: Options{Kind: "static", Label: "abnormal"}, want: &Static{}},
		{name: "static bad label", opts: Options{Kind: "static", Label: "attack"}, wantErr: true},
		{name: "remote", opts: Options{Kind: "remote", Endpoint: "http://model/predict"}, want: &Remote{}},
		{name: "remote no endpoint", opts: Options{Kind: "remote"}, wantErr: true},
		{name: "unknown", opts: Options{Kind: "forest"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestStatic(t *testing.T) {
	label, err := NewStatic(models.LabelAbnormal).Classify(context.Background(), models.LogRecord{})
	require.NoError(t, err)
	assert.Equal(t, models.LabelAbnormal, label)
}

func TestRandomSeeded(t *testing.T) {
	a, b := NewRandom(42), NewRandom(42)
	seen := make(map[models.Label]bool)
	for i := 0; i < 64; i++ {
		la, err := a.Classify(context.Background(), nil)
		require.NoError(t, err)
		lb, err := b.Classify(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, la, lb)
		seen[la] = true
	}
	assert.True(t, seen[models.LabelNormal])
	assert.True(t, seen[models.LabelAbnormal])
}

func TestRandomCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRandom(1).Classify(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteClassify(t *testing.T) {
	client, err := NewRemote("http://model.local/predict", 0)
	require.NoError(t, err)

	var received map[string]map[string]string
	client.httpClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/predict", req.URL.Path)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		return jsonResponse(http.StatusOK, `{"prediction":"abnormal"}`), nil
	})}

	label, err := client.Classify(context.Background(), models.LogRecord{models.FieldService: "telnet"})
	require.NoError(t, err)
	assert.Equal(t, models.LabelAbnormal, label)
	assert.Equal(t, "telnet", received["record"][models.FieldService])
}

func TestRemoteClassifyErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "unknown label", status: http.StatusOK, body: `{"prediction":"maybe"}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRemote("http://model.local/predict", 0)
			require.NoError(t, err)
			client.httpClient = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})}

			_, err = client.Classify(context.Background(), models.LogRecord{})
			assert.Error(t, err)
		})
	}
}
