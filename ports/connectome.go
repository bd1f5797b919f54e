package ports

import (
	"context"

	"neurodyn/domain/run"

	"gonum.org/v1/gonum/mat"
)

// ConnectomeReader loads region coordinates and connectivity matrices
type ConnectomeReader interface {
	// ReadCoordinates returns an N×3 matrix of region centres of gravity.
	ReadCoordinates(ctx context.Context, path string) (*mat.Dense, error)
	// ReadMatrix returns a square N×N matrix.
	ReadMatrix(ctx context.Context, path string) (*mat.Dense, error)
}

// MatrixWriter exports the dense outputs of a run
type MatrixWriter interface {
	WriteRun(ctx context.Context, path string, result *run.Result, matrices *run.Matrices) error
}
