package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-sleepeval/infrastructure/units"
	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

// Report operation names used for logging, tracing and metrics.
const (
	OpTable          = "table"
	OpAttentionTable = "att-table"
	OpConfusion      = "cm"
	OpHypnogram      = "hypnogram"
	OpExperts        = "experts"
	OpVoters         = "voters"
)

// Operations lists every report operation in CLI order.
var Operations = []string{OpTable, OpAttentionTable, OpConfusion, OpHypnogram, OpExperts, OpVoters}

// ModelConfusion is the confusion report of one model over all subjects.
type ModelConfusion struct {
	Model      string                 `json:"model"`
	Matrix     domain.ConfusionMatrix `json:"matrix"`
	Normalized [][]float64            `json:"normalized"`
	PerClass   domain.PerClassMetrics `json:"per_class"`
	Accuracy   float64                `json:"acc"`
}

// TableReport is an accuracy or attention table with its column
// aggregates.
type TableReport struct {
	Table   domain.AccuracyTable `json:"table"`
	Summary domain.TableSummary  `json:"summary"`
}

// VoterReport describes the ensemble result sets written by the voters
// operation. Table holds the ensemble accuracies, subjects × voters.
type VoterReport struct {
	BaseModels []string    `json:"base_models"`
	Table      TableReport `json:"table"`
}

// ExpertReport describes the result sets written by the experts
// operation.
type ExpertReport struct {
	Source  string      `json:"source"`
	Experts []string    `json:"experts"`
	Table   TableReport `json:"table"`
}

// Evaluation runs report operations over one experiment directory.
// Every operation reads the directory afresh, so results reflect result
// sets written by earlier operations.
type Evaluation struct {
	store    ports.RecordStore
	plan     *ReportPlan
	models   []string
	logger   *slog.Logger
	metrics  ports.MetricsCollector
	observer ports.ReportObserver
}

// EvaluationOption configures optional Evaluation collaborators.
type EvaluationOption func(*Evaluation)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) EvaluationOption {
	return func(e *Evaluation) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) EvaluationOption {
	return func(e *Evaluation) { e.metrics = metrics }
}

// WithObserver sets the operation observer, typically a tracer.
func WithObserver(observer ports.ReportObserver) EvaluationOption {
	return func(e *Evaluation) { e.observer = observer }
}

// WithModels restricts the read operations to the named models, in the
// given order. Unknown names fail when an operation runs.
func WithModels(models []string) EvaluationOption {
	return func(e *Evaluation) { e.models = append([]string(nil), models...) }
}

// NewEvaluation creates an Evaluation reading from and writing to store.
func NewEvaluation(store ports.RecordStore, plan *ReportPlan, opts ...EvaluationOption) (*Evaluation, error) {
	if store == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}
	if plan == nil || plan.Voters == nil {
		return nil, fmt.Errorf("report plan cannot be nil")
	}

	e := &Evaluation{
		store:  store,
		plan:   plan,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// opRun carries per-operation metadata into the operation body.
type opRun struct {
	id     string
	op     string
	logger *slog.Logger
}

// runOp wraps an operation with a run ID, logging, tracing and metrics.
func runOp[T any](ctx context.Context, e *Evaluation, op string, fn func(context.Context, *opRun) (T, error)) (T, error) {
	run := &opRun{id: uuid.NewString(), op: op}
	run.logger = e.logger.With("run_id", run.id, "op", op)

	if e.observer != nil {
		ctx = e.observer.Start(ctx, op, map[string]string{"run_id": run.id})
	}
	start := time.Now()
	run.logger.Info("operation started")

	result, err := fn(ctx, run)

	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		run.logger.Error("operation failed", "error", err, "elapsed", elapsed)
	} else {
		run.logger.Info("operation finished", "elapsed", elapsed)
	}
	if e.metrics != nil {
		labels := map[string]string{"status": status}
		e.metrics.RecordLatency("operation_"+op, elapsed, labels)
		e.metrics.RecordCounter("operations", 1, labels)
	}
	if e.observer != nil {
		e.observer.Finish(ctx, op, elapsed, err)
	}
	return result, err
}

func (e *Evaluation) event(ctx context.Context, name string, attrs map[string]string) {
	if e.observer != nil {
		e.observer.Event(ctx, name, attrs)
	}
}

// Models returns the models the read operations use: every model of the
// experiment directory, or the WithModels selection.
func (e *Evaluation) Models(ctx context.Context) ([]string, error) {
	available, err := e.store.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: experiment directory has no models", domain.ErrInvalidInput)
	}
	return SelectModels(available, e.models)
}

// Subjects returns the subjects of the first model of models.
func (e *Evaluation) Subjects(ctx context.Context, models []string) ([]string, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no models", domain.ErrInvalidInput)
	}
	subjects, err := e.store.ListSubjects(ctx, models[0])
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("%w: model %q has no subjects", domain.ErrInvalidInput, models[0])
	}
	return subjects, nil
}

// loadBundle reads the subject's record for every model, with at most
// Workers reads in flight. Records are returned in model order.
func (e *Evaluation) loadBundle(ctx context.Context, models []string, subject string) ([]domain.ResultRecord, error) {
	bundle := make([]domain.ResultRecord, len(models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.plan.Config.Workers)
	for i, model := range models {
		g.Go(func() error {
			rec, err := e.store.Read(gctx, model, subject)
			if err != nil {
				return err
			}
			bundle[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Table builds the subjects × models accuracy table and its per-model
// mean and population standard deviation.
func (e *Evaluation) Table(ctx context.Context) (TableReport, error) {
	return runOp(ctx, e, OpTable, func(ctx context.Context, run *opRun) (TableReport, error) {
		models, err := e.Models(ctx)
		if err != nil {
			return TableReport{}, err
		}
		subjects, err := e.Subjects(ctx, models)
		if err != nil {
			return TableReport{}, err
		}

		rows := make(map[string][]domain.ResultRecord, len(subjects))
		for _, subject := range subjects {
			bundle, err := e.loadBundle(ctx, models, subject)
			if err != nil {
				return TableReport{}, err
			}
			rows[subject] = bundle
			run.logger.Debug("subject loaded", "subject", subject, "models", len(bundle))
		}

		report, err := summarize(subjects, models, func(subject string, j int) (float64, error) {
			return rows[subject][j].Accuracy, nil
		})
		if err != nil {
			return TableReport{}, err
		}
		e.recordAccuracies(report.Table)
		run.logger.Info("accuracy table built", "subjects", len(subjects), "models", len(models))
		return report, nil
	})
}

// AttentionTable builds the subjects × models table of mean attention
// weights. Only models whose record for the first subject carries
// attention become columns; a column model missing attention for a later
// subject fails with domain.ErrMissingData.
func (e *Evaluation) AttentionTable(ctx context.Context) (TableReport, error) {
	return runOp(ctx, e, OpAttentionTable, func(ctx context.Context, run *opRun) (TableReport, error) {
		models, err := e.Models(ctx)
		if err != nil {
			return TableReport{}, err
		}
		subjects, err := e.Subjects(ctx, models)
		if err != nil {
			return TableReport{}, err
		}

		first, err := e.loadBundle(ctx, models, subjects[0])
		if err != nil {
			return TableReport{}, err
		}
		attModels := lo.FilterMap(first, func(rec domain.ResultRecord, _ int) (string, bool) {
			return rec.ModelID, rec.HasAttention()
		})
		if len(attModels) == 0 {
			return TableReport{}, fmt.Errorf("%w: no model carries attention", domain.ErrMissingData)
		}
		run.logger.Debug("attention models", "models", attModels)

		rows := make(map[string][]domain.ResultRecord, len(subjects))
		for _, subject := range subjects {
			bundle, err := e.loadBundle(ctx, attModels, subject)
			if err != nil {
				return TableReport{}, err
			}
			rows[subject] = bundle
		}

		return summarize(subjects, attModels, func(subject string, j int) (float64, error) {
			return rows[subject][j].MeanAttention()
		})
	})
}

// ConfusionReport concatenates every subject of each model and computes
// the model's confusion matrix, normalized matrix and per-class metrics.
func (e *Evaluation) ConfusionReport(ctx context.Context) ([]ModelConfusion, error) {
	return runOp(ctx, e, OpConfusion, func(ctx context.Context, run *opRun) ([]ModelConfusion, error) {
		models, err := e.Models(ctx)
		if err != nil {
			return nil, err
		}
		subjects, err := e.Subjects(ctx, models)
		if err != nil {
			return nil, err
		}

		reports := make([]ModelConfusion, 0, len(models))
		for _, model := range models {
			var yTrue, yPred []int
			for _, subject := range subjects {
				rec, err := e.store.Read(ctx, model, subject)
				if err != nil {
					return nil, err
				}
				yTrue = append(yTrue, rec.YTrue...)
				yPred = append(yPred, rec.YPred...)
			}

			cm, err := domain.ComputeConfusion(yTrue, yPred, e.plan.Config.NumClasses())
			if err != nil {
				return nil, domain.NewRecordError("", model, OpConfusion, err)
			}
			acc, err := domain.Accuracy(yPred, yTrue)
			if err != nil {
				return nil, domain.NewRecordError("", model, OpConfusion, err)
			}
			reports = append(reports, ModelConfusion{
				Model:      model,
				Matrix:     cm,
				Normalized: cm.Normalized(),
				PerClass:   cm.PerClass(),
				Accuracy:   acc,
			})
			run.logger.Debug("confusion computed", "model", model, "epochs", cm.Total())
		}
		return reports, nil
	})
}

// Hypnogram returns one trace per model for the subject at index in the
// sorted subject list.
func (e *Evaluation) Hypnogram(ctx context.Context, index int) ([]domain.HypnogramTrace, error) {
	return runOp(ctx, e, OpHypnogram, func(ctx context.Context, run *opRun) ([]domain.HypnogramTrace, error) {
		models, err := e.Models(ctx)
		if err != nil {
			return nil, err
		}
		subjects, err := e.Subjects(ctx, models)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(subjects) {
			return nil, fmt.Errorf("%w: subject index %d outside [0, %d)", domain.ErrInvalidInput, index, len(subjects))
		}

		bundle, err := e.loadBundle(ctx, models, subjects[index])
		if err != nil {
			return nil, err
		}
		run.logger.Debug("hypnogram subject", "subject", subjects[index])
		return lo.Map(bundle, func(rec domain.ResultRecord, _ int) domain.HypnogramTrace {
			return domain.NewHypnogramTrace(rec)
		}), nil
	})
}

// ExtractExperts decomposes the first model's mixture-of-experts outputs
// into one Expert-<name> result set per expert. Expert directories are
// created on demand and existing files for the same subjects are
// replaced.
func (e *Evaluation) ExtractExperts(ctx context.Context) (ExpertReport, error) {
	return runOp(ctx, e, OpExperts, func(ctx context.Context, run *opRun) (ExpertReport, error) {
		models, err := e.Models(ctx)
		if err != nil {
			return ExpertReport{}, err
		}
		source := models[0]
		subjects, err := e.Subjects(ctx, models)
		if err != nil {
			return ExpertReport{}, err
		}

		var experts []string
		// Subjects may list their channels in any order, so accuracies are
		// keyed by expert model rather than by position.
		accuracies := make(map[string]map[string]float64, len(subjects))
		for _, subject := range subjects {
			if err := ctx.Err(); err != nil {
				return ExpertReport{}, err
			}
			rec, err := e.store.Read(ctx, source, subject)
			if err != nil {
				return ExpertReport{}, err
			}
			derived, err := units.ExtractExperts(rec)
			if err != nil {
				return ExpertReport{}, domain.NewRecordError(subject, source, OpExperts, err)
			}

			ids := lo.Map(derived, func(r domain.ResultRecord, _ int) string { return r.ModelID })
			if experts == nil {
				experts = ids
			} else if len(ids) != len(experts) || !lo.Every(experts, ids) {
				return ExpertReport{}, domain.NewRecordError(subject, source, OpExperts,
					fmt.Errorf("%w: expert channels %v differ from %v", domain.ErrInvalidInput, ids, experts))
			}

			accuracies[subject] = make(map[string]float64, len(derived))
			for _, d := range derived {
				if err := e.store.Write(ctx, d); err != nil {
					return ExpertReport{}, err
				}
				accuracies[subject][d.ModelID] = d.Accuracy
			}
			run.logger.Debug("experts extracted", "subject", subject, "experts", len(derived))
			e.event(ctx, "subject.experts", map[string]string{"subject": subject})
		}

		table, err := summarize(subjects, experts, func(subject string, j int) (float64, error) {
			return accuracies[subject][experts[j]], nil
		})
		if err != nil {
			return ExpertReport{}, err
		}
		e.recordAccuracies(table.Table)
		run.logger.Info("experts written", "source", source, "experts", experts, "subjects", len(subjects))
		return ExpertReport{Source: source, Experts: experts, Table: table}, nil
	})
}

// ExtractVoters derives every configured ensemble result set. Each voter's
// directory is deleted, the remaining models are enumerated as the base
// models, the voter directories are recreated empty and every subject is
// voted. Any subject that cannot be voted aborts the operation.
func (e *Evaluation) ExtractVoters(ctx context.Context) (VoterReport, error) {
	return runOp(ctx, e, OpVoters, func(ctx context.Context, run *opRun) (VoterReport, error) {
		voterIDs := e.plan.Config.VoterIDs()
		for _, id := range voterIDs {
			if err := e.store.RemoveModel(ctx, id); err != nil {
				return VoterReport{}, err
			}
		}

		base, err := e.Models(ctx)
		if err != nil {
			return VoterReport{}, err
		}
		base = lo.Without(base, voterIDs...)
		if len(base) == 0 {
			return VoterReport{}, fmt.Errorf("%w: no base models to vote over", domain.ErrInvalidInput)
		}
		subjects, err := e.Subjects(ctx, base)
		if err != nil {
			return VoterReport{}, err
		}

		for _, id := range voterIDs {
			if err := e.store.ResetModel(ctx, id); err != nil {
				return VoterReport{}, err
			}
		}
		run.logger.Info("voting", "base_models", base, "voters", voterIDs, "subjects", len(subjects))

		accuracies := make(map[string][]float64, len(subjects))
		for _, subject := range subjects {
			if err := ctx.Err(); err != nil {
				return VoterReport{}, err
			}
			ensembles, err := e.voteSubject(ctx, run, base, subject)
			if err != nil {
				return VoterReport{}, err
			}
			for _, rec := range ensembles {
				if err := e.store.Write(ctx, rec); err != nil {
					return VoterReport{}, err
				}
				accuracies[subject] = append(accuracies[subject], rec.Accuracy)
			}
			e.event(ctx, "subject.voted", map[string]string{"subject": subject})
		}

		table, err := summarize(subjects, voterIDs, func(subject string, j int) (float64, error) {
			return accuracies[subject][j], nil
		})
		if err != nil {
			return VoterReport{}, err
		}
		e.recordAccuracies(table.Table)
		return VoterReport{BaseModels: base, Table: table}, nil
	})
}

// voteSubject runs the voter pipeline over one subject bundle and returns
// the ensemble records in voter order.
func (e *Evaluation) voteSubject(ctx context.Context, run *opRun, base []string, subject string) ([]domain.ResultRecord, error) {
	bundle, err := e.loadBundle(ctx, base, subject)
	if err != nil {
		return nil, err
	}

	state := domain.NewState().WithExecutionContext(domain.ExecutionContext{
		RunID:     run.id,
		Operation: run.op,
		Subject:   subject,
	})
	state = domain.With(state, domain.KeyBundle, bundle)

	state, err = e.plan.Voters.Execute(ctx, state)
	if err != nil {
		var recErr *domain.RecordError
		if errors.As(err, &recErr) {
			return nil, err
		}
		return nil, domain.NewRecordError(subject, "", OpVoters, err)
	}

	ensembles, ok := domain.Get(state, domain.KeyEnsembles)
	if !ok || len(ensembles) != e.plan.Voters.Len() {
		return nil, domain.NewRecordError(subject, "", OpVoters,
			fmt.Errorf("%w: expected %d ensemble records, got %d", domain.ErrInvalidState, e.plan.Voters.Len(), len(ensembles)))
	}
	run.logger.Debug("subject voted", "subject", subject, "ensembles", len(ensembles))
	return ensembles, nil
}

// recordAccuracies publishes every table cell as a gauge and histogram
// observation.
func (e *Evaluation) recordAccuracies(table domain.AccuracyTable) {
	if e.metrics == nil {
		return
	}
	for i, subject := range table.Subjects {
		for j, model := range table.Models {
			v := table.Values[i][j]
			e.metrics.RecordGauge("subject_accuracy", v, map[string]string{"model": model, "subject": subject})
			e.metrics.RecordHistogram("subject_accuracy", v, map[string]string{"model": model})
		}
	}
}

// summarize builds a table through lookup, which receives the model's
// column index, and aggregates it.
func summarize(subjects, models []string, lookup func(subject string, j int) (float64, error)) (TableReport, error) {
	index := make(map[string]int, len(models))
	for j, m := range models {
		index[m] = j
	}
	table, err := domain.BuildTable(subjects, models, func(subject, model string) (float64, error) {
		return lookup(subject, index[model])
	})
	if err != nil {
		return TableReport{}, err
	}
	summary, err := table.Aggregate()
	if err != nil {
		return TableReport{}, err
	}
	return TableReport{Table: table, Summary: summary}, nil
}
