package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-netlog/internal/detectors"
	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

const referenceHeader = "duration,protocol_type,service,flag,src_bytes,dst_bytes,num_failed_logins,count,srv_count,binary_attack\n"

// referenceData builds 90 normal rows (duration alternating 0 and 2) and 10 abnormal rows.
func referenceData(abnormal int) string {
	var b strings.Builder
	b.WriteString(referenceHeader)
	for i := 0; i < 90; i++ {
		fmt.Fprintf(&b, "%d,tcp,http,SF,100,200,0,5,5,normal\n", (i%2)*2)
	}
	for i := 0; i < abnormal; i++ {
		b.WriteString("6000,tcp,telnet,S0,0,0,5,100,1,abnormal\n")
	}
	return b.String()
}

func uploadRecord(overrides map[string]string) models.LogRecord {
	rec := models.LogRecord{
		models.FieldDuration:        "1",
		models.FieldProtocolType:    "tcp",
		models.FieldService:         "http",
		models.FieldFlag:            "SF",
		models.FieldSrcBytes:        "100",
		models.FieldDstBytes:        "200",
		models.FieldNumFailedLogins: "0",
		models.FieldCount:           "5",
		models.FieldSrvCount:        "5",
	}
	for k, v := range overrides {
		rec[k] = v
	}
	return rec
}

func TestExplainerLongDuration(t *testing.T) {
	explainer := NewExplainer(mustDataset(t, referenceData(10)))

	got, ok, err := explainer.ExplainIfAbnormal(uploadRecord(map[string]string{models.FieldDuration: "6000"}), models.LabelAbnormal)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Explanation{
		models.FieldDuration: "Unusually long connection duration",
	}, got)
}

func TestExplainerConcatMerge(t *testing.T) {
	explainer := NewExplainer(mustDataset(t, referenceData(10)), WithMergePolicy(MergeConcat))

	got, err := explainer.Explain(uploadRecord(map[string]string{models.FieldDuration: "6000"}))
	require.NoError(t, err)
	reason := got[models.FieldDuration]
	assert.True(t, strings.HasPrefix(reason, "duration value 6000 deviates from normal traffic"), reason)
	assert.True(t, strings.HasSuffix(reason, "; Unusually long connection duration"), reason)
}

func TestExplainerRareCategories(t *testing.T) {
	explainer := NewExplainer(mustDataset(t, referenceData(10)))

	got, err := explainer.Explain(uploadRecord(map[string]string{
		models.FieldService: "telnet",
		models.FieldFlag:    "S0",
	}))
	require.NoError(t, err)
	assert.Equal(t, "service 'telnet' is rare in normal traffic (0.00%) but common in abnormal traffic (100.00%)", got[models.FieldService])
	assert.Contains(t, got, models.FieldFlag)
	assert.NotContains(t, got, models.FieldProtocolType)
	assert.NotContains(t, got, models.FieldDuration)
}

func TestExplainerUnremarkableRecord(t *testing.T) {
	explainer := NewExplainer(mustDataset(t, referenceData(10)))

	got, err := explainer.Explain(uploadRecord(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExplainerCustomRules(t *testing.T) {
	rules := []detectors.ThresholdRule{{Field: models.FieldCount, Above: 4, Reason: "busy host"}}
	explainer := NewExplainer(mustDataset(t, referenceData(10)), WithThresholdRules(rules))

	got, err := explainer.Explain(uploadRecord(map[string]string{models.FieldDuration: "6000"}))
	require.NoError(t, err)
	assert.Equal(t, "busy host", got[models.FieldCount])
	assert.Contains(t, got[models.FieldDuration], "deviates from normal traffic")
}

func TestExplainIfAbnormalSkipsNormal(t *testing.T) {
	explainer := NewExplainer(nil)

	got, ok, err := explainer.ExplainIfAbnormal(models.LogRecord{}, models.LabelNormal)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestExplainerErrors(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		explainer := NewExplainer(mustDataset(t, referenceData(10)))
		rec := uploadRecord(nil)
		delete(rec, models.FieldSrcBytes)

		_, err := explainer.Explain(rec)
		var missing *utils.MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, models.FieldSrcBytes, missing.Field)
	})

	t.Run("no abnormal rows", func(t *testing.T) {
		explainer := NewExplainer(mustDataset(t, referenceData(0)))

		_, _, err := explainer.ExplainIfAbnormal(uploadRecord(nil), models.LabelAbnormal)
		assert.ErrorIs(t, err, utils.ErrEmptyDataset)
	})
}

type fixedDetector struct {
	name   string
	result models.Explanation
}

func (d fixedDetector) Name() string { return d.name }

func (d fixedDetector) Detect(models.LogRecord) (models.Explanation, error) {
	return d.result, nil
}

func TestExplainerMergeOrder(t *testing.T) {
	first := fixedDetector{name: "first", result: models.Explanation{"a": "one", "b": "first"}}
	second := fixedDetector{name: "second", result: models.Explanation{"b": "second"}}

	tests := []struct {
		policy MergePolicy
		want   models.Explanation
	}{
		{policy: MergeOverwrite, want: models.Explanation{"a": "one", "b": "second"}},
		{policy: MergeConcat, want: models.Explanation{"a": "one", "b": "first; second"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got, err := NewExplainerWithDetectors(tt.policy, first, second).Explain(models.LogRecord{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMergePolicy(t *testing.T) {
	got, err := ParseMergePolicy("")
	require.NoError(t, err)
	assert.Equal(t, MergeOverwrite, got)

	got, err = ParseMergePolicy("Concat")
	require.NoError(t, err)
	assert.Equal(t, MergeConcat, got)

	_, err = ParseMergePolicy("append")
	assert.Error(t, err)
}
