package migrator

import (
	"errors"
	"time"

	"github.com/dbsmedya/gomigrate/internal/types"
	"github.com/dbsmedya/gomigrate/internal/verifier"
)

// State is a step of the migration state machine.
type State string

const (
	StateIdle              State = "idle"
	StateSourceRead        State = "source_read"
	StateMapped            State = "mapped"
	StateTargetReady       State = "target_ready"
	StateConflictsResolved State = "conflicts_resolved"
	StateLoading           State = "loading"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Error stages recorded in the report.
const (
	StageRead     = "read"
	StageValidate = "validate"
	StageLoad     = "load"
	StageVerify   = "verify"
)

// ReportError is one row- or chunk-level failure.
type ReportError struct {
	Stage   string `yaml:"stage" json:"stage"`
	Chunk   int    `yaml:"chunk,omitempty" json:"chunk,omitempty"`
	Row     int    `yaml:"row,omitempty" json:"row,omitempty"`
	Column  string `yaml:"column,omitempty" json:"column,omitempty"`
	Message string `yaml:"message" json:"message"`
}

// Plan is what the loader will do (or, in a dry run, would do).
type Plan struct {
	CreateTarget bool `yaml:"create_target" json:"create_target"`
	Insert       int  `yaml:"insert" json:"insert"`
	Update       int  `yaml:"update" json:"update"`
	Skip         int  `yaml:"skip" json:"skip"`
	Chunks       int  `yaml:"chunks" json:"chunks"`
	BatchSize    int  `yaml:"batch_size" json:"batch_size"`
	Workers      int  `yaml:"workers" json:"workers"`
}

// Report is the outcome of one run. Only the Migrator writes to it, and it
// is not modified after Run returns.
type Report struct {
	RunID       string        `yaml:"run_id" json:"run_id"`
	Job         string        `yaml:"job,omitempty" json:"job,omitempty"`
	Source      string        `yaml:"source" json:"source"`
	TargetTable string        `yaml:"target_table" json:"target_table"`
	State       State         `yaml:"state" json:"state"`
	DryRun      bool          `yaml:"dry_run" json:"dry_run"`
	Cancelled   bool          `yaml:"cancelled" json:"cancelled"`
	StartedAt   time.Time     `yaml:"started_at" json:"started_at"`
	CompletedAt time.Time     `yaml:"completed_at" json:"completed_at"`
	Duration    time.Duration `yaml:"duration" json:"duration"`

	Columns       []string `yaml:"columns" json:"columns"`
	Dropped       []string `yaml:"dropped,omitempty" json:"dropped,omitempty"`
	TargetCreated bool     `yaml:"target_created" json:"target_created"`

	Read         int64 `yaml:"read" json:"read"`
	Mapped       int64 `yaml:"mapped" json:"mapped"`
	Duplicates   int64 `yaml:"duplicates" json:"duplicates"`
	Conflicts    int64 `yaml:"conflicts" json:"conflicts"`
	Skipped      int64 `yaml:"skipped" json:"skipped"`
	Inserted     int64 `yaml:"inserted" json:"inserted"`
	Updated      int64 `yaml:"updated" json:"updated"`
	Failed       int64 `yaml:"failed" json:"failed"`
	NotAttempted int64 `yaml:"not_attempted" json:"not_attempted"`

	Plan         *Plan            `yaml:"plan,omitempty" json:"plan,omitempty"`
	Chunks       []ChunkResult    `yaml:"chunks,omitempty" json:"chunks,omitempty"`
	Errors       []ReportError    `yaml:"errors,omitempty" json:"errors,omitempty"`
	Verification *verifier.Result `yaml:"verification,omitempty" json:"verification,omitempty"`
}

// Succeeded reports whether the run finished with nothing failed or left out.
func (r *Report) Succeeded() bool {
	if r.State != StateDone || r.Cancelled || r.Failed > 0 || r.NotAttempted > 0 {
		return false
	}
	return r.Verification == nil || r.Verification.Match
}

func (r *Report) addRowError(stage string, err error) {
	re := ReportError{Stage: stage, Message: err.Error()}
	var rowErr *types.RowError
	if errors.As(err, &rowErr) {
		re.Row = rowErr.Row
		re.Column = rowErr.Column
		re.Message = rowErr.Err.Error()
	}
	r.Errors = append(r.Errors, re)
}

func (r *Report) addChunkError(res ChunkResult) {
	r.Errors = append(r.Errors, ReportError{
		Stage:   StageLoad,
		Chunk:   res.Index,
		Message: res.Err.Error(),
	})
}
