package api

import (
	"fmt"

	"neurodyn/app"
	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// RunBody is the JSON body of POST /api/v1/runs. Omitted params keep their
// defaults.
type RunBody struct {
	SubjectID   string      `json:"subject_id"`
	Group       string      `json:"group"`
	Coordinates [][]float64 `json:"coordinates"`
	SC          [][]float64 `json:"sc"`
	Params      run.Params  `json:"params"`
	Force       bool        `json:"force"`
}

// CohortBody is the JSON body of POST /api/v1/cohorts
type CohortBody struct {
	ID          string        `json:"id"`
	Coordinates [][]float64   `json:"coordinates"`
	Params      run.Params    `json:"params"`
	Subjects    []SubjectBody `json:"subjects"`
	Force       bool          `json:"force"`
}

// SubjectBody is one subject of a cohort body
type SubjectBody struct {
	ID    string      `json:"id"`
	Group string      `json:"group"`
	SC    [][]float64 `json:"sc"`
}

// RunResponse is a run with its cache status and, on request, the dense
// long-range matrices.
type RunResponse struct {
	*run.Result
	Cached   bool        `json:"cached"`
	Clong    [][]float64 `json:"clong,omitempty"`
	EDRClong [][]float64 `json:"edr_clong,omitempty"`
}

// CohortResponse summarises a cohort run
type CohortResponse struct {
	ID       core.CohortID      `json:"id"`
	Groups   []app.GroupSummary `json:"groups"`
	Subjects []SubjectResponse  `json:"subjects"`
}

// SubjectResponse is one subject row of a cohort response
type SubjectResponse struct {
	SubjectID   core.SubjectID  `json:"subject_id"`
	Group       core.GroupLabel `json:"group"`
	RunID       core.RunID      `json:"run_id,omitempty"`
	Lambda      float64         `json:"lambda,omitempty"`
	Connections int             `json:"connections"`
	Percent     float64         `json:"percent"`
	Cached      bool            `json:"cached"`
	Error       string          `json:"error,omitempty"`
	Code        string          `json:"code,omitempty"`
}

func (b RunBody) toRequest() (app.RunRequest, error) {
	coords, err := toDense("coordinates", b.Coordinates)
	if err != nil {
		return app.RunRequest{}, err
	}
	sc, err := toDense("sc", b.SC)
	if err != nil {
		return app.RunRequest{}, err
	}
	return app.RunRequest{
		SubjectID:    core.SubjectID(b.SubjectID),
		Group:        core.GroupLabel(b.Group),
		Coords:       coords,
		SC:           sc,
		Params:       b.Params,
		ForceCompute: b.Force,
	}, nil
}

func (b CohortBody) toRequest() (app.CohortRequest, error) {
	coords, err := toDense("coordinates", b.Coordinates)
	if err != nil {
		return app.CohortRequest{}, err
	}
	if len(b.Subjects) == 0 {
		return app.CohortRequest{}, errors.ValidationError("cohort has no subjects")
	}
	req := app.CohortRequest{
		ID:           core.CohortID(b.ID),
		Coords:       coords,
		Params:       b.Params,
		ForceCompute: b.Force,
		Subjects:     make([]app.SubjectInput, len(b.Subjects)),
	}
	for i, s := range b.Subjects {
		sc, err := toDense(fmt.Sprintf("subjects[%d].sc", i), s.SC)
		if err != nil {
			return app.CohortRequest{}, err
		}
		req.Subjects[i] = app.SubjectInput{ID: core.SubjectID(s.ID), Group: core.GroupLabel(s.Group), SC: sc}
	}
	return req, nil
}

func newRunResponse(out *app.Outcome, withMatrices bool) RunResponse {
	resp := RunResponse{Result: out.Result, Cached: out.Cached}
	if withMatrices && out.Matrices != nil {
		resp.Clong = toRows(out.Matrices.Clong)
		resp.EDRClong = toRows(out.Matrices.EDRClong)
	}
	return resp
}

func newCohortResponse(out *app.CohortOutcome) CohortResponse {
	resp := CohortResponse{ID: out.ID, Groups: out.Groups, Subjects: make([]SubjectResponse, len(out.Subjects))}
	for i, s := range out.Subjects {
		row := SubjectResponse{SubjectID: s.SubjectID, Group: s.Group}
		if s.Err != nil {
			row.Error = s.Err.Error()
			row.Code = errors.GetCode(s.Err)
		} else if s.Outcome != nil {
			r := s.Outcome.Result
			row.RunID = r.ID
			row.Lambda = r.Lambda
			row.Connections = r.Connections
			row.Percent = r.Percent
			row.Cached = s.Outcome.Cached
		}
		resp.Subjects[i] = row
	}
	return resp
}

// toDense converts JSON rows to a matrix; rows must be non-empty and equal
// length
func toDense(name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.ValidationError(name + " is required")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.ValidationError(fmt.Sprintf("%s row %d has %d values, expected %d", name, i, len(row), cols))
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func toRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
