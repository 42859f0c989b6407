package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-netlog/internal/classifier"
	"github.com/miradorstack/mirador-netlog/internal/models"
)

func TestPredict(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]string
		want string
	}{
		{name: "quiet", rec: map[string]string{"flag": "SF", "num_failed_logins": "0", "count": "5", "srv_count": "5"}, want: "normal"},
		{name: "failed logins", rec: map[string]string{"flag": "SF", "num_failed_logins": "2"}, want: "abnormal"},
		{name: "half open", rec: map[string]string{"flag": "S0"}, want: "abnormal"},
		{name: "scan", rec: map[string]string{"flag": "SF", "count": "250", "srv_count": "1"}, want: "abnormal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, predict(tt.rec))
		})
	}
}

func TestRemoteClassifierAgainstMock(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	remote, err := classifier.NewRemote(srv.URL+"/predict", time.Second)
	require.NoError(t, err)

	label, err := remote.Classify(context.Background(), models.LogRecord{models.FieldFlag: "REJ"})
	require.NoError(t, err)
	assert.Equal(t, models.LabelAbnormal, label)

	label, err = remote.Classify(context.Background(), models.LogRecord{models.FieldFlag: "SF"})
	require.NoError(t, err)
	assert.Equal(t, models.LabelNormal, label)
}
