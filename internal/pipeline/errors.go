package pipeline

import (
	"errors"
	"fmt"
)

// ErrEncoding signals that the index grid and its metadata disagree. It can only
// happen if an upstream stage broke its contract.
var ErrEncoding = errors.New("encoding error")

// Stage identifies a step of a run.
type Stage string

const (
	StageLoaded     Stage = "loaded"
	StageIndexed    Stage = "indexed"
	StageAggregated Stage = "aggregated"
	StageScored     Stage = "scored"
	StageEncoded    Stage = "encoded"
	StageEmitted    Stage = "emitted"
)

// Stages lists the stages of a run in order.
var Stages = []Stage{StageLoaded, StageIndexed, StageAggregated, StageScored, StageEncoded, StageEmitted}

// StageError records the stage a run was trying to reach when it failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
