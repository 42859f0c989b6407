package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// Classifier assigns a label to one uploaded record.
type Classifier interface {
	Classify(ctx context.Context, rec models.LogRecord) (models.Label, error)
}

// Pipeline classifies uploaded rows and explains the abnormal ones.
type Pipeline struct {
	logger     *slog.Logger
	classifier Classifier
	explainer  *Explainer
	now        func() time.Time
}

// NewPipeline constructs the row analysis pipeline.
func NewPipeline(logger *slog.Logger, classifier Classifier, explainer *Explainer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:     logger,
		classifier: classifier,
		explainer:  explainer,
		now:        time.Now,
	}
}

// Analyze runs every row of table through the classifier and the explainer.
//
// A row with a null required field is reported with its error and skipped; the rest of the
// batch continues. Classifier failures and an unusable reference dataset abort the batch.
func (p *Pipeline) Analyze(ctx context.Context, table *repo.Table) (models.AnalysisReport, error) {
	if p.classifier == nil {
		return models.AnalysisReport{}, fmt.Errorf("classifier not configured")
	}
	if p.explainer == nil {
		return models.AnalysisReport{}, fmt.Errorf("explainer not configured")
	}
	if table == nil || table.Len() == 0 {
		return models.AnalysisReport{}, &utils.InputFormatError{Err: errors.New("no data rows")}
	}

	start := p.now()
	report := models.AnalysisReport{
		AnalysisID: uuid.NewString(),
		TotalRows:  table.Len(),
		Results:    make([]models.RowResult, 0, table.Len()),
		StartedAt:  start.UTC(),
	}

	for i, rec := range table.Records {
		if err := ctx.Err(); err != nil {
			return models.AnalysisReport{}, err
		}
		result, err := p.AnalyzeRecord(ctx, i+1, rec)
		if err != nil {
			return models.AnalysisReport{}, err
		}
		switch {
		case result.Err != nil:
			report.SkippedRows++
			p.logger.Debug("row skipped", slog.String("analysis_id", report.AnalysisID), slog.Int("row", result.Row), slog.Any("error", result.Err))
		case result.Prediction == models.LabelAbnormal:
			report.AbnormalRows++
		}
		report.Results = append(report.Results, result)
	}

	report.Duration = p.now().Sub(start).Seconds()
	p.logger.Info("log analysed",
		slog.String("analysis_id", report.AnalysisID),
		slog.Int("rows", report.TotalRows),
		slog.Int("abnormal", report.AbnormalRows),
		slog.Int("skipped", report.SkippedRows),
	)
	return report, nil
}

// AnalyzeRecord processes one row. Row-level problems are returned inside the result;
// the error return is reserved for failures that invalidate the whole batch.
func (p *Pipeline) AnalyzeRecord(ctx context.Context, row int, rec models.LogRecord) (models.RowResult, error) {
	result := models.RowResult{Row: row, Record: rec}

	for _, field := range models.InputColumns() {
		if _, ok := rec.Value(field); !ok {
			result.Err = &utils.MissingFieldError{Field: field, Row: row}
			return result, nil
		}
	}

	label, err := p.classifier.Classify(ctx, rec)
	if err != nil {
		return result, utils.NewAppError("classify", fmt.Sprintf("row %d", row), err)
	}
	result.Prediction = label

	explanation, _, err := p.explainer.ExplainIfAbnormal(rec, label)
	if err != nil {
		var missing *utils.MissingFieldError
		if errors.As(err, &missing) {
			result.Err = &utils.MissingFieldError{Field: missing.Field, Row: row}
			return result, nil
		}
		if utils.IsInputFormat(err) {
			result.Err = err
			return result, nil
		}
		return result, err
	}
	result.Explanation = explanation
	return result, nil
}
