package engine

import (
	"math"
	"sort"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// DefaultTopServices bounds the service blocks of the dashboard.
const DefaultTopServices = 10

// Aggregator computes dashboard statistics over the reference dataset. Every method is a
// pure function of the dataset.
type Aggregator struct {
	ds          *repo.Dataset
	topServices int
}

// NewAggregator constructs an Aggregator over ds.
func NewAggregator(ds *repo.Dataset) *Aggregator {
	return &Aggregator{ds: ds, topServices: DefaultTopServices}
}

// Compute returns every dashboard block.
func (a *Aggregator) Compute() (models.DashboardStats, error) {
	if err := a.ensureRows(); err != nil {
		return models.DashboardStats{}, err
	}

	var stats models.DashboardStats
	var err error
	if stats.AttackTypes, err = a.AttackTypes(); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.FailedLogins, err = a.FailedLogins(); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Durations, err = a.Durations(); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.ServiceCounts, err = a.ServiceCounts(); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.ServiceByLabel, err = a.ServiceByLabel(); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Protocols, err = a.ProtocolByLabel(); err != nil {
		return models.DashboardStats{}, err
	}
	return stats, nil
}

// AttackTypes returns the share of rows per label in percent, most frequent first.
func (a *Aggregator) AttackTypes() (models.Series, error) {
	if err := a.ensureRows(); err != nil {
		return models.Series{}, err
	}
	labels := a.ds.Labels()
	raw := make([]string, len(labels))
	for i, l := range labels {
		raw[i] = string(l)
	}

	counts := valueCounts(raw)
	total := float64(len(labels))
	out := models.Series{}
	for _, c := range counts {
		out.Labels = append(out.Labels, c.value)
		out.Data = append(out.Data, float64(c.count)/total*100)
	}
	return out, nil
}

// FailedLogins returns, per label, the share of rows with a recorded num_failed_logins
// value. It measures presence, not the number of failed logins.
func (a *Aggregator) FailedLogins() (models.Series, error) {
	if err := a.ensureRows(); err != nil {
		return models.Series{}, err
	}
	col, err := a.numeric(models.FieldNumFailedLogins)
	if err != nil {
		return models.Series{}, err
	}

	present := a.presentLabels()
	counts := make(map[models.Label]int, len(present))
	total := 0
	for i, label := range a.ds.Labels() {
		if math.IsNaN(col[i]) {
			continue
		}
		counts[label]++
		total++
	}

	out := models.Series{}
	for _, label := range present {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[label]) / float64(total) * 100
		}
		out.Labels = append(out.Labels, string(label))
		out.Data = append(out.Data, pct)
	}
	return out, nil
}

// Durations returns the mean min-max normalised duration per label.
func (a *Aggregator) Durations() (models.Series, error) {
	if err := a.ensureRows(); err != nil {
		return models.Series{}, err
	}
	col, err := a.numeric(models.FieldDuration)
	if err != nil {
		return models.Series{}, err
	}
	scaled := NormalizeMinMax(col)

	sums := make(map[models.Label]float64)
	counts := make(map[models.Label]int)
	for i, label := range a.ds.Labels() {
		if math.IsNaN(scaled[i]) {
			continue
		}
		sums[label] += scaled[i]
		counts[label]++
	}

	out := models.Series{}
	for _, label := range a.presentLabels() {
		mean := 0.0
		if counts[label] > 0 {
			mean = sums[label] / float64(counts[label])
		}
		out.Labels = append(out.Labels, string(label))
		out.Data = append(out.Data, mean)
	}
	return out, nil
}

// ServiceCounts returns the most frequent services with raw counts.
func (a *Aggregator) ServiceCounts() (models.CountSeries, error) {
	top, err := a.topServiceCounts()
	if err != nil {
		return models.CountSeries{}, err
	}
	out := models.CountSeries{}
	for _, c := range top {
		out.Labels = append(out.Labels, c.value)
		out.Values = append(out.Values, c.count)
	}
	return out, nil
}

// ServiceByLabel splits the most frequent services into normal and abnormal counts,
// ordered by descending total.
func (a *Aggregator) ServiceByLabel() (models.LabelSplit, error) {
	top, err := a.topServiceCounts()
	if err != nil {
		return models.LabelSplit{}, err
	}
	services, _ := a.ds.Categorical(models.FieldService)
	split := splitByLabel(services, a.ds.Labels())

	out := models.LabelSplit{}
	for _, c := range top {
		out.Labels = append(out.Labels, c.value)
		out.Normal = append(out.Normal, split[c.value][models.LabelNormal])
		out.Abnormal = append(out.Abnormal, split[c.value][models.LabelAbnormal])
	}
	return out, nil
}

// ProtocolByLabel splits every protocol into normal and abnormal counts, protocols in
// sorted order.
func (a *Aggregator) ProtocolByLabel() (models.StackedSeries, error) {
	if err := a.ensureRows(); err != nil {
		return models.StackedSeries{}, err
	}
	protocols, ok := a.ds.Categorical(models.FieldProtocolType)
	if !ok {
		return models.StackedSeries{}, &utils.MissingFieldError{Field: models.FieldProtocolType}
	}
	split := splitByLabel(protocols, a.ds.Labels())

	names := make([]string, 0, len(split))
	for name := range split {
		names = append(names, name)
	}
	sort.Strings(names)

	normal := models.LabelDataset{Label: string(models.LabelNormal), Data: make([]int, 0, len(names))}
	abnormal := models.LabelDataset{Label: string(models.LabelAbnormal), Data: make([]int, 0, len(names))}
	for _, name := range names {
		normal.Data = append(normal.Data, split[name][models.LabelNormal])
		abnormal.Data = append(abnormal.Data, split[name][models.LabelAbnormal])
	}
	return models.StackedSeries{
		Labels:   names,
		Datasets: []models.LabelDataset{normal, abnormal},
	}, nil
}

// TrafficScatter returns up to limit (src_bytes, dst_bytes) points for rows that moved
// data in both directions, in dataset order. limit <= 0 means no cap.
func (a *Aggregator) TrafficScatter(limit int) (models.TrafficScatter, error) {
	if err := a.ensureRows(); err != nil {
		return models.TrafficScatter{}, err
	}
	src, err := a.numeric(models.FieldSrcBytes)
	if err != nil {
		return models.TrafficScatter{}, err
	}
	dst, err := a.numeric(models.FieldDstBytes)
	if err != nil {
		return models.TrafficScatter{}, err
	}

	out := models.TrafficScatter{Label: "Source vs Destination Bytes", Points: []models.TrafficPoint{}}
	for i, label := range a.ds.Labels() {
		if !(src[i] > 0 && dst[i] > 0) {
			continue
		}
		out.Points = append(out.Points, models.TrafficPoint{SrcBytes: src[i], DstBytes: dst[i], Label: label})
		if limit > 0 && len(out.Points) == limit {
			break
		}
	}
	return out, nil
}

// NormalizeMinMax rescales values to [0,1] using their own minimum and maximum. NaN
// entries stay NaN. When every value is equal the result is all zeros.
func NormalizeMinMax(values []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	span := hi - lo
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case span == 0:
			out[i] = 0
		default:
			out[i] = (v - lo) / span
		}
	}
	return out
}

func (a *Aggregator) ensureRows() error {
	if a == nil || a.ds.Len() == 0 {
		return utils.ErrEmptyDataset
	}
	return nil
}

func (a *Aggregator) numeric(field string) ([]float64, error) {
	col, ok := a.ds.Numeric(field)
	if !ok {
		return nil, &utils.MissingFieldError{Field: field}
	}
	return col, nil
}

func (a *Aggregator) topServiceCounts() ([]categoryCount, error) {
	if err := a.ensureRows(); err != nil {
		return nil, err
	}
	services, ok := a.ds.Categorical(models.FieldService)
	if !ok {
		return nil, &utils.MissingFieldError{Field: models.FieldService}
	}
	counts := valueCounts(services)
	if len(counts) > a.topServices {
		counts = counts[:a.topServices]
	}
	return counts, nil
}

// presentLabels returns the labels that occur in the dataset, sorted.
func (a *Aggregator) presentLabels() []models.Label {
	seen := make(map[models.Label]struct{})
	for _, l := range a.ds.Labels() {
		seen[l] = struct{}{}
	}
	out := make([]models.Label, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type categoryCount struct {
	value string
	count int
}

// valueCounts counts non-empty values, most frequent first; ties keep first-occurrence order.
func valueCounts(values []string) []categoryCount {
	index := make(map[string]int)
	var counts []categoryCount
	for _, v := range values {
		if v == "" {
			continue
		}
		i, ok := index[v]
		if !ok {
			i = len(counts)
			index[v] = i
			counts = append(counts, categoryCount{value: v})
		}
		counts[i].count++
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	return counts
}

func splitByLabel(values []string, labels []models.Label) map[string]map[models.Label]int {
	out := make(map[string]map[models.Label]int)
	for i, v := range values {
		if v == "" {
			continue
		}
		byLabel, ok := out[v]
		if !ok {
			byLabel = make(map[models.Label]int, 2)
			out[v] = byLabel
		}
		byLabel[labels[i]]++
	}
	return out
}

