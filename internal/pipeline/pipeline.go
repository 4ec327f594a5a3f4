// Package pipeline sequences the analysis stages: classification,
// computation, and reporting. Each run is stateless end-to-end; a fresh
// entity graph is built per invocation and no stage retries.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/taxease/rentadvisor/internal/tax"
)

var tracer = otel.Tracer("rentadvisor.pipeline")

// State is a pipeline execution state.
type State string

const (
	StateInit       State = "init"
	StateClassified State = "classified"
	StateComputed   State = "computed"
	StateReported   State = "reported"
	StateDone       State = "done"

	// Failure terminal states.
	StateClassificationFailed State = "classification_failed"
	StateComputationFailed    State = "computation_failed"
	StateReportFailed         State = "report_failed"
)

// RunError is a pipeline failure carrying the terminal state it
// occurred in. The wrapped cause stays matchable with errors.Is/As.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ExpenseClassifier is the classification stage.
type ExpenseClassifier interface {
	ClassifyAll(ctx context.Context, props []tax.Property) ([]tax.ClassifiedProperty, error)
}

// StrategyAdvisor is the reporting stage.
type StrategyAdvisor interface {
	Advise(ctx context.Context, actual, simplified tax.AggregateResult) (tax.AnalysisReport, error)
}

// Pipeline orchestrates one analysis run.
type Pipeline struct {
	classifier ExpenseClassifier
	engine     *tax.Engine
	advisor    StrategyAdvisor
	logger     *zap.Logger
}

// New creates a pipeline over the three stages.
func New(classifier ExpenseClassifier, engine *tax.Engine, advisor StrategyAdvisor, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier: classifier,
		engine:     engine,
		advisor:    advisor,
		logger:     logger,
	}
}

// Run executes init → classified → computed → reported → done and
// returns the report. Input validation happens before any external
// dependency is touched; failures surface as a *RunError naming the
// terminal state and, for classification, the affected property IDs.
func (p *Pipeline) Run(ctx context.Context, props []tax.Property) (*tax.AnalysisReport, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.Int("properties", len(props)))

	if err := tax.ValidateProperties(props); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &RunError{State: StateInit, Err: err}
	}
	p.logger.Info("pipeline started", zap.Int("properties", len(props)))

	classified, err := p.classifier.ClassifyAll(ctx, props)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return nil, &RunError{State: StateClassificationFailed, Err: err}
	}
	p.logger.Debug("pipeline state", zap.String("state", string(StateClassified)))

	actual, simplified, err := p.engine.Compute(classified)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "computation failed")
		return nil, &RunError{State: StateComputationFailed, Err: err}
	}
	p.logger.Debug("pipeline state", zap.String("state", string(StateComputed)))

	report, err := p.advisor.Advise(ctx, actual, simplified)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		return nil, &RunError{State: StateReportFailed, Err: err}
	}
	p.logger.Info("pipeline completed",
		zap.String("state", string(StateDone)),
		zap.String("recommended", string(report.Recommended)),
	)
	return &report, nil
}

// IsClassificationFailed reports whether err is a classification-stage
// pipeline failure.
func IsClassificationFailed(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.State == StateClassificationFailed
}
