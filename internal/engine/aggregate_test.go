package engine

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

const aggregateCSV = `duration,protocol_type,service,flag,src_bytes,dst_bytes,num_failed_logins,count,srv_count,binary_attack
0,tcp,http,SF,100,200,0,1,1,normal
10,tcp,http,SF,150,0,0,2,2,normal
20,udp,domain_u,SF,50,60,,3,3,normal
100,tcp,telnet,S0,0,0,5,100,1,abnormal
60,icmp,ecr_i,SF,300,400,4,90,1,abnormal
`

func mustDataset(t *testing.T, input string) *repo.Dataset {
	t.Helper()
	table, err := repo.ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	ds, err := repo.NewDataset("test", table)
	require.NoError(t, err)
	return ds
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func TestAggregatorAttackTypes(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	got, err := agg.AttackTypes()
	require.NoError(t, err)
	assert.Equal(t, []string{"normal", "abnormal"}, got.Labels)
	assert.InDeltaSlice(t, []float64{60, 40}, got.Data, 1e-9)
	assert.InDelta(t, 100, sum(got.Data), 1e-9)
}

func TestAggregatorFailedLoginsCountsPresence(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	got, err := agg.FailedLogins()
	require.NoError(t, err)
	assert.Equal(t, []string{"abnormal", "normal"}, got.Labels)
	assert.InDeltaSlice(t, []float64{50, 50}, got.Data, 1e-9)
}

func TestAggregatorFailedLoginsAllNull(t *testing.T) {
	input := strings.NewReplacer(",0,1,1,", ",,1,1,", ",0,2,2,", ",,2,2,", ",5,100,", ",,100,", ",4,90,", ",,90,").Replace(aggregateCSV)
	agg := NewAggregator(mustDataset(t, input))

	got, err := agg.FailedLogins()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, got.Data)
}

func TestAggregatorDurations(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	got, err := agg.Durations()
	require.NoError(t, err)
	assert.Equal(t, []string{"abnormal", "normal"}, got.Labels)
	assert.InDeltaSlice(t, []float64{0.8, 0.1}, got.Data, 1e-9)
	for _, v := range got.Data {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestAggregatorDurationsSeparatesLabels(t *testing.T) {
	var b strings.Builder
	b.WriteString("duration,protocol_type,service,flag,src_bytes,dst_bytes,num_failed_logins,count,srv_count,binary_attack\n")
	for i := 0; i < 90; i++ {
		fmt.Fprintf(&b, "%d,tcp,http,SF,100,200,0,5,5,normal\n", i*100/89)
	}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d,tcp,telnet,S0,0,0,5,100,1,abnormal\n", 4000+i*2000/9)
	}
	agg := NewAggregator(mustDataset(t, b.String()))

	got, err := agg.Durations()
	require.NoError(t, err)
	require.Equal(t, []string{"abnormal", "normal"}, got.Labels)
	assert.Greater(t, got.Data[0], 0.5)
	assert.Less(t, got.Data[1], 0.05)
	assert.Greater(t, got.Data[0]-got.Data[1], 0.5)
}

func TestAggregatorServices(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	counts, err := agg.ServiceCounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"http", "domain_u", "telnet", "ecr_i"}, counts.Labels)
	assert.Equal(t, []int{2, 1, 1, 1}, counts.Values)

	split, err := agg.ServiceByLabel()
	require.NoError(t, err)
	assert.Equal(t, counts.Labels, split.Labels)
	assert.Equal(t, []int{2, 1, 0, 0}, split.Normal)
	assert.Equal(t, []int{0, 0, 1, 1}, split.Abnormal)
}

func TestAggregatorServicesTopTen(t *testing.T) {
	var b strings.Builder
	b.WriteString("duration,protocol_type,service,flag,src_bytes,dst_bytes,num_failed_logins,count,srv_count,binary_attack\n")
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			b.WriteString("1,tcp,svc")
			b.WriteString(string(rune('a' + i)))
			b.WriteString(",SF,1,1,0,1,1,normal\n")
		}
	}
	agg := NewAggregator(mustDataset(t, b.String()))

	counts, err := agg.ServiceCounts()
	require.NoError(t, err)
	require.Len(t, counts.Labels, DefaultTopServices)
	assert.Equal(t, "svcl", counts.Labels[0])
	assert.Equal(t, 12, counts.Values[0])
	assert.Equal(t, "svcc", counts.Labels[9])
}

func TestAggregatorProtocolByLabel(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	got, err := agg.ProtocolByLabel()
	require.NoError(t, err)
	assert.Equal(t, []string{"icmp", "tcp", "udp"}, got.Labels)
	require.Len(t, got.Datasets, 2)
	assert.Equal(t, "normal", got.Datasets[0].Label)
	assert.Equal(t, []int{0, 2, 1}, got.Datasets[0].Data)
	assert.Equal(t, "abnormal", got.Datasets[1].Label)
	assert.Equal(t, []int{1, 1, 0}, got.Datasets[1].Data)
}

func TestAggregatorTrafficScatter(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	all, err := agg.TrafficScatter(0)
	require.NoError(t, err)
	require.Len(t, all.Points, 3)
	assert.Equal(t, models.TrafficPoint{SrcBytes: 100, DstBytes: 200, Label: models.LabelNormal}, all.Points[0])
	assert.Equal(t, models.TrafficPoint{SrcBytes: 300, DstBytes: 400, Label: models.LabelAbnormal}, all.Points[2])

	capped, err := agg.TrafficScatter(2)
	require.NoError(t, err)
	assert.Equal(t, all.Points[:2], capped.Points)
}

func TestAggregatorCompute(t *testing.T) {
	agg := NewAggregator(mustDataset(t, aggregateCSV))

	stats, err := agg.Compute()
	require.NoError(t, err)
	assert.Len(t, stats.AttackTypes.Labels, 2)
	assert.Len(t, stats.ServiceCounts.Labels, 4)
	assert.Len(t, stats.Protocols.Labels, 3)
}

func TestAggregatorEmptyDataset(t *testing.T) {
	agg := NewAggregator(nil)

	_, err := agg.Compute()
	assert.ErrorIs(t, err, utils.ErrEmptyDataset)
	_, err = agg.TrafficScatter(10)
	assert.ErrorIs(t, err, utils.ErrEmptyDataset)
}

func TestNormalizeMinMax(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{name: "range", values: []float64{0, 5, 10}, want: []float64{0, 0.5, 1}},
		{name: "constant", values: []float64{3, 3, 3}, want: []float64{0, 0, 0}},
		{name: "negative", values: []float64{-2, 0, 2}, want: []float64{0, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, NormalizeMinMax(tt.values), 1e-9)
		})
	}

	got := NormalizeMinMax([]float64{1, math.NaN(), 3})
	assert.Equal(t, 0.0, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 1.0, got[2])
}
