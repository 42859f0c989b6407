package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/miradorstack/mirador-netlog/internal/detectors"
	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
)

// MergePolicy decides what happens when two detectors report the same field.
type MergePolicy string

const (
	// MergeOverwrite keeps the reason of the detector that ran last.
	MergeOverwrite MergePolicy = "overwrite"
	// MergeConcat joins colliding reasons with "; " in detector order.
	MergeConcat MergePolicy = "concat"
)

// ParseMergePolicy validates a configured merge policy; empty means overwrite.
func ParseMergePolicy(raw string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MergeOverwrite:
		return MergeOverwrite, nil
	case MergeConcat:
		return MergeConcat, nil
	default:
		return "", fmt.Errorf("unknown explanation merge policy %q", raw)
	}
}

// Explainer produces field-level reasons for records classified as abnormal. Detectors run
// in order numeric, categorical, threshold.
type Explainer struct {
	ds         *repo.Dataset
	rules      []detectors.ThresholdRule
	zThreshold float64
	merge      MergePolicy

	once      sync.Once
	detectors []detectors.Detector
	initErr   error
}

// ExplainerOption customises an Explainer.
type ExplainerOption func(*Explainer)

// WithThresholdRules replaces the built-in threshold rules.
func WithThresholdRules(rules []detectors.ThresholdRule) ExplainerOption {
	return func(e *Explainer) {
		e.rules = rules
	}
}

// WithZThreshold overrides the numeric detector's |z| limit.
func WithZThreshold(z float64) ExplainerOption {
	return func(e *Explainer) {
		e.zThreshold = z
	}
}

// WithMergePolicy sets how colliding reasons are combined.
func WithMergePolicy(policy MergePolicy) ExplainerOption {
	return func(e *Explainer) {
		e.merge = policy
	}
}

// NewExplainer builds an Explainer over the reference dataset. Baselines are computed on
// first use and reused afterwards.
func NewExplainer(ds *repo.Dataset, opts ...ExplainerOption) *Explainer {
	e := &Explainer{
		ds:         ds,
		zThreshold: detectors.DefaultZThreshold,
		merge:      MergeOverwrite,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewExplainerWithDetectors wires a fixed detector chain, bypassing the dataset.
func NewExplainerWithDetectors(policy MergePolicy, chain ...detectors.Detector) *Explainer {
	e := &Explainer{merge: policy, detectors: chain}
	e.once.Do(func() {})
	return e
}

// Ready builds the baselines if needed and reports whether the explainer can run.
func (e *Explainer) Ready() error {
	e.once.Do(e.init)
	return e.initErr
}

func (e *Explainer) init() {
	if e.ds == nil {
		e.initErr = fmt.Errorf("explainer has no reference dataset")
		return
	}
	normal := e.ds.Partition(models.LabelNormal)
	abnormal := e.ds.Partition(models.LabelAbnormal)

	numeric, err := detectors.NewNumericDetector(normal, e.zThreshold, models.NumericFields...)
	if err != nil {
		e.initErr = err
		return
	}
	categorical, err := detectors.NewCategoricalDetector(normal, abnormal, models.CategoricalFields...)
	if err != nil {
		e.initErr = err
		return
	}
	e.detectors = []detectors.Detector{
		numeric,
		categorical,
		detectors.NewThresholdDetector(e.rules),
	}
}

// Explain runs every detector on rec and merges their findings.
func (e *Explainer) Explain(rec models.LogRecord) (models.Explanation, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	out := make(models.Explanation)
	for _, d := range e.detectors {
		found, err := d.Detect(rec)
		if err != nil {
			return nil, fmt.Errorf("%s detector: %w", d.Name(), err)
		}
		for field, reason := range found {
			if prev, ok := out[field]; ok && e.merge == MergeConcat {
				out[field] = prev + "; " + reason
				continue
			}
			out[field] = reason
		}
	}
	return out, nil
}

// ExplainIfAbnormal explains rec only when label is abnormal. For any other label it
// returns (nil, false, nil) without looking at the record.
func (e *Explainer) ExplainIfAbnormal(rec models.LogRecord, label models.Label) (models.Explanation, bool, error) {
	if label != models.LabelAbnormal {
		return nil, false, nil
	}
	explanation, err := e.Explain(rec)
	if err != nil {
		return nil, false, err
	}
	return explanation, true, nil
}
