package detectors

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// ThresholdRule flags a field whose value is strictly above a fixed limit.
type ThresholdRule struct {
	Field  string  `yaml:"field"`
	Above  float64 `yaml:"above"`
	Reason string  `yaml:"reason"`
	// Optional rules are skipped when the field is absent or null.
	Optional bool `yaml:"optional"`
}

// RuleFile is the YAML root of a threshold rule pack.
type RuleFile struct {
	Rules []ThresholdRule `yaml:"rules"`
}

// DefaultThresholdRules are the built-in business rules.
func DefaultThresholdRules() []ThresholdRule {
	return []ThresholdRule{
		{Field: models.FieldNumFailedLogins, Above: 3, Reason: "High number of failed login attempts"},
		{Field: models.FieldDuration, Above: 5000, Reason: "Unusually long connection duration"},
		{Field: models.FieldRerrorRate, Above: 0.5, Reason: "High rate of rejected connection errors", Optional: true},
	}
}

// LoadThresholdRules reads a rule pack. An empty or missing path yields the defaults.
func LoadThresholdRules(path string) ([]ThresholdRule, error) {
	if path == "" {
		return DefaultThresholdRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultThresholdRules(), nil
		}
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	for i, rule := range file.Rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("rule pack: rule %d has no field", i)
		}
		if rule.Reason == "" {
			return nil, fmt.Errorf("rule pack: rule %d (%s) has no reason", i, rule.Field)
		}
	}
	return file.Rules, nil
}

// ThresholdDetector applies fixed rules that do not depend on the reference dataset.
type ThresholdDetector struct {
	rules []ThresholdRule
}

// NewThresholdDetector builds a detector from rules; nil rules means the defaults.
func NewThresholdDetector(rules []ThresholdRule) *ThresholdDetector {
	if rules == nil {
		rules = DefaultThresholdRules()
	}
	return &ThresholdDetector{rules: append([]ThresholdRule(nil), rules...)}
}

// Name implements Detector.
func (d *ThresholdDetector) Name() string { return "threshold" }

// Detect implements Detector.
func (d *ThresholdDetector) Detect(rec models.LogRecord) (models.Explanation, error) {
	out := make(models.Explanation)
	for _, rule := range d.rules {
		value, ok, err := rec.Float(rule.Field)
		if err != nil {
			return nil, &utils.InputFormatError{Err: err}
		}
		if !ok {
			if rule.Optional {
				continue
			}
			return nil, &utils.MissingFieldError{Field: rule.Field}
		}
		if value > rule.Above {
			out[rule.Field] = rule.Reason
		}
	}
	return out, nil
}
