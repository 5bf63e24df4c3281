package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Chunk is one unit of work applied inside a single transaction.
type Chunk struct {
	Index   int // 1-based across the whole run
	Kind    types.ChunkKind
	Records []types.KeyedRecord
}

// PlanChunks splits the insert and update partitions into chunks of at most
// batchSize records. Insert chunks come first.
func PlanChunks(toInsert, toUpdate []types.KeyedRecord, batchSize int) []Chunk {
	if batchSize <= 0 {
		batchSize = config.DefaultConfig().Processing.BatchSize
	}
	var chunks []Chunk
	add := func(kind types.ChunkKind, records []types.KeyedRecord) {
		for start := 0; start < len(records); start += batchSize {
			end := start + batchSize
			if end > len(records) {
				end = len(records)
			}
			chunks = append(chunks, Chunk{
				Index:   len(chunks) + 1,
				Kind:    kind,
				Records: records[start:end],
			})
		}
	}
	add(types.ChunkInsert, toInsert)
	add(types.ChunkUpdate, toUpdate)
	return chunks
}

// ChunkResult is the outcome of one chunk.
type ChunkResult struct {
	Index     int             `yaml:"index" json:"index"`
	Kind      types.ChunkKind `yaml:"kind" json:"kind"`
	Rows      int             `yaml:"rows" json:"rows"`
	Attempted bool            `yaml:"attempted" json:"attempted"`
	Committed bool            `yaml:"committed" json:"committed"`
	Duration  time.Duration   `yaml:"duration" json:"duration"`
	Err       error           `yaml:"-" json:"-"`
}

// LoadResult summarizes a Load call.
type LoadResult struct {
	Chunks       []ChunkResult
	Inserted     int64
	Updated      int64
	Failed       int64 // Rows in chunks that were rolled back
	NotAttempted int64 // Rows in chunks never started
	Cancelled    bool  // Context was cancelled between chunks
	Stopped      bool  // A failed chunk halted dispatch
	FirstError   error // First *types.ChunkWriteError by chunk index
	Fatal        error // Wraps types.ErrConnectivityLost

	// Committed holds the records of committed chunks, in chunk order.
	Committed []types.KeyedRecord
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Table       string
	Columns     types.Schema
	PrimaryKey  string
	BatchSize   int
	Workers     int
	Sleep       time.Duration
	StopOnError bool
}

// Loader is the only component that writes to the target. Chunks run on a
// bounded pool of workers; each chunk checks its own connection out of the
// pool and commits or rolls back on its own.
type Loader struct {
	target *database.Handle
	opts   LoaderOptions
	logger *logger.Logger

	insertSQL func(rows int) string
	updateSQL string
	pkIndex   int
	valueIdx  []int // Non-key column positions, in SET order

	apply func(ctx context.Context, ch Chunk) error
}

// NewLoader validates identifiers and prepares statement templates.
func NewLoader(target *database.Handle, opts LoaderOptions, log *logger.Logger) (*Loader, error) {
	if target == nil {
		return nil, errors.New("target handle is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	names := opts.Columns.Names()
	if len(names) == 0 {
		return nil, errors.New("no columns to load")
	}
	if err := sqlutil.ValidateIdentifiers(append([]string{opts.Table, opts.PrimaryKey}, names...)...); err != nil {
		return nil, err
	}
	pkIndex := opts.Columns.IndexFold(opts.PrimaryKey)
	if pkIndex < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPrimaryKey, opts.PrimaryKey)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultConfig().Processing.BatchSize
	}
	opts.Workers = config.ClampWorkers(opts.Workers)

	l := &Loader{
		target:  target,
		opts:    opts,
		logger:  log.WithTable(opts.Table),
		pkIndex: pkIndex,
	}
	l.buildStatements(names)
	l.apply = l.applyChunk
	return l, nil
}

func (l *Loader) buildStatements(names []string) {
	d := l.target.Dialect
	table := l.target.Table(l.opts.Table)
	cols := sqlutil.QuoteList(names, d.QuoteIdentifier)
	width := len(names)

	l.insertSQL = func(rows int) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, cols)
		for r := 0; r < rows; r++ {
			if r > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(")
			sb.WriteString(sqlutil.Placeholders(r*width+1, width, d.Placeholder))
			sb.WriteString(")")
		}
		return sb.String()
	}

	var sets []string
	for i, name := range names {
		if i == l.pkIndex {
			continue
		}
		l.valueIdx = append(l.valueIdx, i)
		sets = append(sets, fmt.Sprintf("%s = %s", d.QuoteIdentifier(name), d.Placeholder(len(sets)+1)))
	}
	if len(sets) > 0 {
		l.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
			table, strings.Join(sets, ", "),
			d.QuoteIdentifier(names[l.pkIndex]), d.Placeholder(len(sets)+1))
	}
}

// Load applies the insert and update partitions. Cancellation is observed
// between chunks only: a started chunk always finishes on a context detached
// from ctx.
func (l *Loader) Load(ctx context.Context, toInsert, toUpdate []types.KeyedRecord) *LoadResult {
	chunks := PlanChunks(toInsert, toUpdate, l.opts.BatchSize)
	results := make([]ChunkResult, len(chunks))
	for i, ch := range chunks {
		results[i] = ChunkResult{Index: ch.Index, Kind: ch.Kind, Rows: len(ch.Records)}
	}

	l.logger.Infow("Loading chunks",
		"chunks", len(chunks),
		"insert_rows", len(toInsert),
		"update_rows", len(toUpdate),
		"workers", l.opts.Workers)

	var (
		g         errgroup.Group
		sem       = semaphore.NewWeighted(int64(l.opts.Workers))
		stop      atomic.Bool
		cancelled bool
		detached  = context.WithoutCancel(ctx)
	)

dispatch:
	for i := range chunks {
		// Waiting for a free slot first means a failure in the previous
		// chunk is visible before the next one starts.
		if err := sem.Acquire(ctx, 1); err != nil {
			cancelled = true
			break
		}
		if stop.Load() {
			sem.Release(1)
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			cancelled = true
			break
		}

		if i > 0 && l.opts.Sleep > 0 {
			l.logger.Debugf("Sleeping for %v before chunk %d", l.opts.Sleep, chunks[i].Index)
			select {
			case <-ctx.Done():
				sem.Release(1)
				cancelled = true
				break dispatch
			case <-time.After(l.opts.Sleep):
			}
		}

		ch := chunks[i]
		res := &results[i]
		res.Attempted = true
		g.Go(func() error {
			defer sem.Release(1)
			start := time.Now()
			err := l.apply(detached, ch)
			res.Duration = time.Since(start)
			if err != nil {
				res.Err = err
				if l.opts.StopOnError || database.IsConnectivityError(err) {
					stop.Store(true)
				}
				return nil
			}
			res.Committed = true
			return nil
		})
	}
	_ = g.Wait()

	return l.summarize(chunks, results, cancelled, stop.Load())
}

func (l *Loader) summarize(chunks []Chunk, results []ChunkResult, cancelled, stopped bool) *LoadResult {
	out := &LoadResult{Chunks: results, Cancelled: cancelled, Stopped: stopped}
	for i, res := range results {
		log := l.logger.WithChunk(res.Index, string(res.Kind))
		switch {
		case !res.Attempted:
			out.NotAttempted += int64(res.Rows)
		case res.Committed:
			if res.Kind == types.ChunkInsert {
				out.Inserted += int64(res.Rows)
			} else {
				out.Updated += int64(res.Rows)
			}
			out.Committed = append(out.Committed, chunks[i].Records...)
			log.Debugw("Chunk committed", "rows", res.Rows, "duration", res.Duration)
		default:
			out.Failed += int64(res.Rows)
			chunkErr := &types.ChunkWriteError{Index: res.Index, Kind: res.Kind, Rows: res.Rows, Err: res.Err}
			if out.FirstError == nil {
				out.FirstError = chunkErr
			}
			if out.Fatal == nil && database.IsConnectivityError(res.Err) {
				out.Fatal = fmt.Errorf("%w: %w", types.ErrConnectivityLost, chunkErr)
			}
			log.Errorw("Chunk rolled back", "rows", res.Rows, "error", res.Err)
		}
	}
	return out
}

func (l *Loader) applyChunk(ctx context.Context, ch Chunk) error {
	tx, err := l.target.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				l.logger.Warnf("Failed to roll back chunk %d: %v", ch.Index, rbErr)
			}
		}
	}()

	if ch.Kind == types.ChunkInsert {
		err = l.insertRows(ctx, tx, ch.Records)
	} else {
		err = l.updateRows(ctx, tx, ch.Records)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	tx = nil
	return nil
}

// insertRows issues multi-row INSERTs, splitting the chunk further only when
// it would exceed the engine's bind parameter limit.
func (l *Loader) insertRows(ctx context.Context, tx *sql.Tx, records []types.KeyedRecord) error {
	width := l.opts.Columns.Len()
	perStmt := l.target.Dialect.MaxParams() / width
	if perStmt < 1 {
		perStmt = 1
	}

	for start := 0; start < len(records); start += perStmt {
		end := start + perStmt
		if end > len(records) {
			end = len(records)
		}
		args := make([]any, 0, (end-start)*width)
		for _, r := range records[start:end] {
			args = append(args, r.Values...)
		}
		if _, err := tx.ExecContext(ctx, l.insertSQL(end-start), args...); err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}
	return nil
}

func (l *Loader) updateRows(ctx context.Context, tx *sql.Tx, records []types.KeyedRecord) error {
	// A key-only table has nothing to overwrite.
	if l.updateSQL == "" {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, l.updateSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(l.valueIdx)+1)
	for _, r := range records {
		for i, idx := range l.valueIdx {
			args[i] = r.Values[idx]
		}
		args[len(args)-1] = r.Values[l.pkIndex]
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("update of key %s failed: %w", r.Key, err)
		}
	}
	return nil
}
