package flow

import "encoding/json"
import "io"
import "os"

import "github.com/google/uuid"
import "github.com/klauspost/compress/zstd"
import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// Checkpoint is the serialized form of a flow State.
type Checkpoint struct {
	RunID  uuid.UUID `json:"run_id"`
	NDim   int       `json:"n_dim"`
	Params []float64 `json:"params"`
	Mean   []float64 `json:"mean"`
	Cov    []float64 `json:"cov"` // row major, n_dim x n_dim
}

// NewCheckpoint captures s under runID.
func NewCheckpoint(runID uuid.UUID, s State) Checkpoint {
	var d = s.Variables.Dim()
	var cov = make([]float64, 0, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			cov = append(cov, s.Variables.Cov.At(i, j))
		}
	}
	return Checkpoint{
		RunID:  runID,
		NDim:   d,
		Params: s.Params.Clone(),
		Mean:   append([]float64(nil), s.Variables.Mean...),
		Cov:    cov,
	}
}

// State rebuilds the flow State held by c.
func (c Checkpoint) State() (State, error) {
	if len(c.Mean) != c.NDim || len(c.Cov) != c.NDim*c.NDim {
		return State{}, errors.Errorf("flow: checkpoint shape mismatch for n_dim %d", c.NDim)
	}
	var cov = mat.NewSymDense(c.NDim, nil)
	for i := 0; i < c.NDim; i++ {
		for j := i; j < c.NDim; j++ {
			cov.SetSym(i, j, c.Cov[i*c.NDim+j])
		}
	}
	return State{
		Params:    Params(append([]float64(nil), c.Params...)),
		Variables: Variables{Mean: append([]float64(nil), c.Mean...), Cov: cov},
	}, nil
}

// WriteCheckpointToFile writes a zstd compressed json checkpoint to a file
func WriteCheckpointToFile(name string, c Checkpoint) error {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "flow: create checkpoint")
	}
	err = WriteCheckpoint(file, c)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteCheckpoint writes a zstd compressed json checkpoint to a writer
func WriteCheckpoint(w io.Writer, c Checkpoint) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, "flow: zstd writer")
	}
	if err := json.NewEncoder(zw).Encode(c); err != nil {
		zw.Close()
		return errors.Wrap(err, "flow: encode checkpoint")
	}
	return zw.Close()
}

// ReadCheckpointFromFile reads a checkpoint from a file
func ReadCheckpointFromFile(name string) (Checkpoint, error) {
	file, err := os.Open(name)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "flow: open checkpoint")
	}
	defer file.Close()
	return ReadCheckpoint(file)
}

// ReadCheckpoint reads a checkpoint from a reader
func ReadCheckpoint(r io.Reader) (c Checkpoint, err error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return c, errors.Wrap(err, "flow: zstd reader")
	}
	defer zr.Close()
	if err = json.NewDecoder(zr).Decode(&c); err != nil {
		return c, errors.Wrap(err, "flow: decode checkpoint")
	}
	return c, nil
}
