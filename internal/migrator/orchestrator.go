package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/source"
	"github.com/dbsmedya/gomigrate/internal/types"
	"github.com/dbsmedya/gomigrate/internal/verifier"
)

// maxLoggedConflicts bounds the per-key conflict log lines of one run.
const maxLoggedConflicts = 20

var errEmptyKey = errors.New("primary key is empty")

// SourceOpener opens the reader for a run. source.Open is the default.
type SourceOpener func(ctx context.Context, h *database.Handle, cfg config.SourceConfig) (source.Reader, error)

// Options is the complete configuration of one run.
type Options struct {
	JobName      string
	Source       config.SourceConfig
	TargetTable  string
	PrimaryKey   string
	Mapping      []config.MappingEntry
	ColumnTypes  map[string]string
	Policy       config.PolicyConfig
	Processing   config.ProcessingConfig
	Verification config.VerificationConfig
	DryRun       bool
}

// OptionsFromConfig builds the effective options of a configured job,
// merging global and job-level settings.
func OptionsFromConfig(cfg *config.Config, jobName string) (Options, error) {
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return Options{}, err
	}
	return Options{
		JobName:      jobName,
		Source:       job.Source,
		TargetTable:  job.TargetTable,
		PrimaryKey:   job.PrimaryKey,
		Mapping:      job.Mapping,
		ColumnTypes:  job.ColumnTypes,
		Policy:       job.GetJobPolicy(cfg.Policy),
		Processing:   job.GetJobProcessing(cfg.Processing),
		Verification: job.GetJobVerification(cfg.Verification),
	}, nil
}

// Migrator runs one migration: source read, mapping, target materialization,
// conflict detection and resolution, chunked load and verification.
type Migrator struct {
	source     *database.Handle
	target     *database.Handle
	opts       Options
	logger     *logger.Logger
	openSource SourceOpener

	mu    sync.Mutex
	state State
}

// NewMigrator creates a migrator. src may be nil when the source is a file.
func NewMigrator(src, target *database.Handle, opts Options, log *logger.Logger) (*Migrator, error) {
	if target == nil {
		return nil, errors.New("target handle is nil")
	}
	if opts.TargetTable == "" {
		return nil, errors.New("target table is required")
	}
	if opts.PrimaryKey == "" {
		return nil, errors.New("primary key is required")
	}
	if opts.Source.IsDatabase() && src == nil {
		return nil, fmt.Errorf("%w: source %s needs a source database connection", types.ErrSourceUnavailable, opts.Source.Describe())
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if opts.Policy.OnConflict == "" {
		opts.Policy.OnConflict = config.OnConflictOverwrite
	}

	if opts.JobName != "" {
		log = log.WithJob(opts.JobName)
	}

	return &Migrator{
		source:     src,
		target:     target,
		opts:       opts,
		logger:     log,
		openSource: source.Open,
		state:      StateIdle,
	}, nil
}

// NewMigratorFromConfig creates a migrator for a configured job using the
// manager's connections.
func NewMigratorFromConfig(cfg *config.Config, jobName string, mgr *database.Manager, log *logger.Logger) (*Migrator, error) {
	if mgr == nil {
		return nil, errors.New("database manager is nil")
	}
	opts, err := OptionsFromConfig(cfg, jobName)
	if err != nil {
		return nil, err
	}
	return NewMigrator(mgr.Source, mgr.Target, opts, log)
}

// SetSourceOpener replaces the function used to open the source.
func (m *Migrator) SetSourceOpener(open SourceOpener) {
	m.openSource = open
}

// State returns the current state of the run.
func (m *Migrator) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Migrator) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.logger.Debugf("Migration state: %s", s)
}

// prepared holds what the source and mapping stages produce.
type prepared struct {
	reader     source.Reader
	schema     types.Schema
	projection *Projection
	pkIndex    int
	kinds      map[string]dialect.ColumnKind // Configured kinds, used for DDL and validation
	compare    map[string]dialect.ColumnKind // Kinds the target compares by, see compareKinds
	validator  *RowValidator
}

// prepare opens the source and compiles the mapping. On error nothing is left open.
func (m *Migrator) prepare(ctx context.Context) (*prepared, error) {
	m.setState(StateSourceRead)
	reader, err := m.openSource(ctx, m.source, m.opts.Source)
	if err != nil {
		return nil, preflightError(CheckSource, err)
	}
	p := &prepared{reader: reader, schema: reader.Schema()}

	fail := func(check string, err error) (*prepared, error) {
		reader.Close()
		if _, ok := err.(*PreflightError); ok {
			return nil, err
		}
		return nil, preflightError(check, err)
	}

	mapping, err := NewMapping(m.opts.Mapping)
	if err != nil {
		return fail(CheckMapping, err)
	}
	if p.projection, err = ApplyMapping(p.schema, mapping, m.opts.Policy.StrictMapping); err != nil {
		return fail(CheckMapping, err)
	}
	if p.pkIndex, err = checkPrimaryKey(p.projection.Target, m.opts.PrimaryKey); err != nil {
		return fail(CheckPrimaryKey, err)
	}
	if p.kinds, err = columnKinds(p.projection.Target, m.opts.ColumnTypes); err != nil {
		return fail(CheckMapping, err)
	}
	p.validator = NewRowValidator(p.projection.Target, p.kinds)

	m.setState(StateMapped)
	return p, nil
}

// Run executes the migration.
//
// Errors found before any write return (nil, err). Once loading starts the
// report is always returned: with ErrConnectivityLost when the target went
// away, with the first *types.ChunkWriteError when stop_on_error halted the
// load, and with the context error when the run was cancelled between chunks.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		Job:         m.opts.JobName,
		Source:      m.opts.Source.Describe(),
		TargetTable: m.opts.TargetTable,
		DryRun:      m.opts.DryRun,
		StartedAt:   time.Now(),
		State:       StateIdle,
	}
	log := m.logger.WithRun(report.RunID)

	finish := func(state State) {
		m.setState(state)
		report.State = state
		report.CompletedAt = time.Now()
		report.Duration = report.CompletedAt.Sub(report.StartedAt)
	}
	fail := func(err error) (*Report, error) {
		finish(StateFailed)
		log.Errorw("Migration failed before loading", "error", err)
		return nil, err
	}

	log.Infow("Starting migration",
		"source", report.Source,
		"target_table", report.TargetTable,
		"on_conflict", m.opts.Policy.OnConflict,
		"batch_size", m.opts.Processing.BatchSize,
		"workers", m.opts.Processing.Workers,
		"dry_run", m.opts.DryRun)

	p, err := m.prepare(ctx)
	if err != nil {
		return fail(err)
	}
	defer p.reader.Close()

	report.Columns = p.projection.Target.Names()
	report.Dropped = p.projection.Dropped(p.schema)

	records, err := m.readRecords(ctx, p, report, log)
	if err != nil {
		return fail(err)
	}

	// Target
	mat, err := NewMaterializer(m.target, p.kinds, log)
	if err != nil {
		return fail(err)
	}
	var status *TargetStatus
	if m.opts.DryRun {
		status, err = mat.Inspect(ctx, m.opts.TargetTable, p.projection.Target, m.opts.PrimaryKey, m.opts.Policy.CreateTargetIfMissing)
	} else {
		status, err = mat.Ensure(ctx, m.opts.TargetTable, p.projection.Target, m.opts.PrimaryKey, m.opts.Policy.CreateTargetIfMissing)
	}
	if err != nil {
		return fail(err)
	}
	report.TargetCreated = status.Created
	m.setState(StateTargetReady)

	p.compare = compareKinds(p.kinds, p.projection.Target, status.Columns)
	keyKind := p.compare[p.projection.Target.Columns[p.pkIndex].Name]
	Rekey(records, p.pkIndex, keyKind)
	records, dups := Dedupe(records)
	report.Duplicates = int64(dups)
	if dups > 0 {
		log.Infow("Dropped duplicate keys, last occurrence wins", "duplicates", dups)
	}

	// Conflicts
	conflicts := &ConflictSet{Existing: map[string]types.Record{}}
	if status.Existed && len(records) > 0 {
		det, err := NewDetector(m.target, p.projection.Target)
		if err != nil {
			return fail(err)
		}
		det.SetKeyKind(keyKind)
		if conflicts, err = det.Detect(ctx, m.opts.TargetTable, m.opts.PrimaryKey, records); err != nil {
			return fail(err)
		}
	}
	report.Conflicts = int64(conflicts.Len())
	m.logConflicts(log, records, conflicts)

	resolution, err := Resolve(records, conflicts, m.opts.Policy.OnConflict)
	if err != nil {
		return fail(err)
	}
	report.Skipped += int64(len(resolution.ToSkip))
	m.setState(StateConflictsResolved)

	report.Plan = &Plan{
		CreateTarget: status.WouldCreate || status.Created,
		Insert:       len(resolution.ToInsert),
		Update:       len(resolution.ToUpdate),
		Skip:         len(resolution.ToSkip),
		Chunks:       len(PlanChunks(resolution.ToInsert, resolution.ToUpdate, m.opts.Processing.BatchSize)),
		BatchSize:    m.opts.Processing.BatchSize,
		Workers:      config.ClampWorkers(m.opts.Processing.Workers),
	}

	if m.opts.DryRun {
		finish(StateDone)
		log.Infow("Dry run complete, nothing written",
			"insert", report.Plan.Insert,
			"update", report.Plan.Update,
			"skip", report.Plan.Skip,
			"chunks", report.Plan.Chunks)
		return report, nil
	}

	// Load
	m.setState(StateLoading)
	report.State = StateLoading
	loader, err := NewLoader(m.target, LoaderOptions{
		Table:       m.opts.TargetTable,
		Columns:     p.projection.Target,
		PrimaryKey:  m.opts.PrimaryKey,
		BatchSize:   m.opts.Processing.BatchSize,
		Workers:     m.opts.Processing.Workers,
		Sleep:       time.Duration(m.opts.Processing.SleepSeconds * float64(time.Second)),
		StopOnError: m.opts.Policy.StopOnError,
	}, log)
	if err != nil {
		return fail(err)
	}

	res := loader.Load(ctx, resolution.ToInsert, resolution.ToUpdate)
	report.Inserted = res.Inserted
	report.Updated = res.Updated
	report.Failed += res.Failed
	report.NotAttempted = res.NotAttempted
	report.Cancelled = res.Cancelled
	report.Chunks = res.Chunks
	for _, c := range res.Chunks {
		if c.Err != nil {
			report.addChunkError(c)
		}
	}

	if res.Fatal != nil {
		finish(StateFailed)
		log.Errorw("Connectivity lost, remaining chunks abandoned",
			"inserted", report.Inserted,
			"updated", report.Updated,
			"not_attempted", report.NotAttempted,
			"error", res.Fatal)
		return report, res.Fatal
	}

	if !res.Cancelled {
		m.verify(ctx, p, res.Committed, report, log)
	}

	if res.Stopped && m.opts.Policy.StopOnError && res.FirstError != nil {
		finish(StateFailed)
		log.Errorw("Stopped on first chunk failure", "error", res.FirstError)
		return report, res.FirstError
	}

	finish(StateDone)
	log.Infow("Migration complete",
		"read", report.Read,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duplicates", report.Duplicates,
		"duration", report.Duration)

	if res.Cancelled {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		log.Warnw("Migration cancelled between chunks", "not_attempted", report.NotAttempted)
		return report, err
	}
	return report, nil
}

// readRecords streams the source through the projection and row validator.
func (m *Migrator) readRecords(ctx context.Context, p *prepared, report *Report, log *logger.Logger) ([]types.KeyedRecord, error) {
	var records []types.KeyedRecord

	for row := 1; ; row++ {
		if row%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("source read interrupted: %w", err)
			}
		}

		rec, err := p.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *types.RowError
			if !errors.As(err, &rowErr) {
				return nil, fmt.Errorf("failed to read source: %w", err)
			}
			report.Read++
			report.Skipped++
			report.addRowError(StageRead, err)
			log.Warnw("Skipping unreadable source row", "row", rowErr.Row, "error", rowErr.Err)
			continue
		}
		report.Read++

		mapped, err := p.projection.Apply(rec)
		if err != nil {
			report.Skipped++
			report.addRowError(StageRead, &types.RowError{Row: row, Err: err})
			continue
		}
		report.Mapped++

		if err := p.validator.Check(row, mapped); err != nil {
			report.Failed++
			report.addRowError(StageValidate, err)
			log.Warnw("Row failed validation", "error", err)
			continue
		}

		key, ok := types.KeyString(mapped[p.pkIndex])
		if !ok {
			report.Failed++
			report.addRowError(StageValidate, &types.RowError{Row: row, Column: m.opts.PrimaryKey, Err: errEmptyKey})
			continue
		}
		records = append(records, types.KeyedRecord{Key: key, Row: row, Values: mapped})
	}

	log.Infow("Source read", "rows", report.Read, "mapped", report.Mapped, "accepted", len(records))
	return records, nil
}

func (m *Migrator) logConflicts(log *logger.Logger, records []types.KeyedRecord, conflicts *ConflictSet) {
	if conflicts.Len() == 0 {
		return
	}
	logged := 0
	for _, r := range records {
		existing, ok := conflicts.Get(r.Key)
		if !ok {
			continue
		}
		if logged == maxLoggedConflicts {
			log.Warnf("... and %d more conflicting keys", conflicts.Len()-logged)
			return
		}
		log.Warnw("Key already exists in target",
			"key", r.Key,
			"incoming", r.Values,
			"existing", existing,
			"policy", m.opts.Policy.OnConflict)
		logged++
	}
}

// verify records the verification outcome; it never fails the run.
func (m *Migrator) verify(ctx context.Context, p *prepared, committed []types.KeyedRecord, report *Report, log *logger.Logger) {
	method := verifier.Method(m.opts.Verification.Method)
	if m.opts.Verification.SkipVerification {
		method = verifier.MethodSkip
	}

	v, err := verifier.NewVerifier(m.target, m.opts.TargetTable, m.opts.PrimaryKey, p.projection.Target, p.compare, method, log)
	if err == nil {
		report.Verification, err = v.Verify(ctx, committed)
	}
	if err != nil {
		log.Warnw("Verification could not run", "error", err)
		report.Errors = append(report.Errors, ReportError{Stage: StageVerify, Message: err.Error()})
	}
}
