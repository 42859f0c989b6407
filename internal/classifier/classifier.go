// Package classifier provides the row labelling adapters used by the analysis pipeline.
package classifier

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/miradorstack/mirador-netlog/internal/models"
)

// Classifier assigns a label to one record.
type Classifier interface {
	Classify(ctx context.Context, rec models.LogRecord) (models.Label, error)
}

// Options selects and configures an adapter.
type Options struct {
	Kind     string
	Label    string
	Seed     int64
	Endpoint string
	Timeout  time.Duration
}

// New builds the adapter named by opts.Kind: "static", "random" or "remote".
func New(opts Options) (Classifier, error) {
	switch strings.ToLower(opts.Kind) {
	case "", "random":
		return NewRandom(opts.Seed), nil
	case "static":
		label := models.LabelNormal
		if opts.Label != "" {
			parsed, err := models.ParseLabel(opts.Label)
			if err != nil {
				return nil, fmt.Errorf("static classifier: %w", err)
			}
			label = parsed
		}
		return NewStatic(label), nil
	case "remote":
		return NewRemote(opts.Endpoint, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", opts.Kind)
	}
}

// Static returns the same label for every record.
type Static struct {
	label models.Label
}

// NewStatic constructs a Static classifier.
func NewStatic(label models.Label) *Static {
	return &Static{label: label}
}

// Classify implements Classifier.
func (s *Static) Classify(ctx context.Context, _ models.LogRecord) (models.Label, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.label, nil
}

// Random picks normal or abnormal with equal probability. It stands in for a trained model
// during development; a fixed seed makes runs reproducible.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom constructs a Random classifier. A zero seed uses the current time.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Classify implements Classifier.
func (r *Random) Classify(ctx context.Context, _ models.LogRecord) (models.Label, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	n := r.rng.Intn(2)
	r.mu.Unlock()
	if n == 1 {
		return models.LabelAbnormal, nil
	}
	return models.LabelNormal, nil
}
