package sinex

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/pgzip"
)

// stationKey identifies a station solution within a file.
type stationKey struct {
	code   SiteCode
	solnID string
}

// prmRef ties a SINEX parameter ID to a station coordinate component.
type prmRef struct {
	stn  *Station
	axis int // 0..2 for X, Y, Z
}

// Solution holds the station solutions read from one SINEX file.
// Use Open to create a Solution; it is read-only afterwards.
type Solution struct {
	Path     string
	Opts     Options
	Header   *Header
	Stats    Statistics
	Warnings []string

	stations  map[stationKey]*Station
	solved    []*Station     // estimated stations, sorted by (code, solnID)
	prms      map[int]prmRef // SINEX parameter ID -> coordinate component
	covar     *TriMatrix     // full covariance matrix, nil unless requested
	nparam    int
	finalized bool // registry finalized, parameter offsets assigned
}

// Open reads the SINEX file at path and returns the extracted solution.
// Files with a ".gz" suffix are decompressed transparently.
func Open(path string, opts Options) (*Solution, error) {
	sol := &Solution{
		Path:     path,
		Opts:     opts,
		Stats:    Statistics{SEU: 1},
		stations: make(map[stationKey]*Station),
		prms:     make(map[int]prmRef),
	}

	r, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := sol.scan(r); err != nil {
		return nil, err
	}
	return sol, nil
}

// scan runs the single forward pass over the stream, dispatching each block
// to its handler and checking afterwards that all mandatory blocks were seen.
func (sol *Solution) scan(r io.Reader) error {
	dec, err := NewDecoder(r)
	if err != nil {
		return err
	}
	sol.Header = dec.Header

	seen := make(map[string]bool)
	for dec.NextBlock() {
		name := dec.CurrentBlock()
		switch {
		case name == BlockSolStatistics:
			err = sol.readStatistics(dec)
		case name == BlockSolEpochs:
			err = sol.readEpochs(dec)
		case name == BlockSolEstimate:
			err = sol.readEstimates(dec)
		case isCovarianceBlock(name):
			err = sol.readMatrix(dec)
			name = BlockSolMatrixEst
		default:
			continue
		}
		if err != nil {
			return err
		}
		seen[name] = true
	}
	if err := dec.Err(); err != nil {
		return err
	}
	sol.Warnings = dec.Warnings

	required := []string{BlockSolStatistics, BlockSolEpochs, BlockSolEstimate}
	if !sol.Opts.SkipCovariance {
		required = append(required, BlockSolMatrixEst)
	}
	for _, name := range required {
		if !seen[name] {
			return &FormatError{Msg: fmt.Sprintf("mandatory block %q missing", name)}
		}
	}
	return nil
}

// isCovarianceBlock reports whether name denotes a lower-triangular
// covariance matrix of the estimate, e.g. "SOLUTION/MATRIX_ESTIMATE L COVA".
func isCovarianceBlock(name string) bool {
	return strings.HasPrefix(name, BlockSolMatrixEst) && strings.HasSuffix(name, "L COVA")
}

// getStation returns the station record for the given key, creating a
// zero-valued one if create is set and the station was not referenced before.
func (sol *Solution) getStation(code SiteCode, solnID string, create bool) *Station {
	key := stationKey{code, solnID}
	if stn, ok := sol.stations[key]; ok {
		return stn
	}
	if !create {
		return nil
	}
	stn := &Station{Code: code, SolnID: solnID}
	sol.stations[key] = stn
	return stn
}

// readStatistics parses the SOLUTION/STATISTICS block. Unrecognized
// labels are ignored.
func (sol *Solution) readStatistics(dec *Decoder) error {
	for dec.NextBlockLine() {
		vals, err := splitFixed(dec.Line(), statisticsFields)
		if err != nil {
			return dec.formatErr(err)
		}
		label, val := vals[0], vals[1]
		if val == "" {
			continue
		}

		switch label {
		case "NUMBER OF OBSERVATIONS":
			sol.Stats.NumObs, err = strconv.Atoi(val)
		case "NUMBER OF UNKNOWNS":
			sol.Stats.NumUnknowns, err = strconv.Atoi(val)
		case "NUMBER OF DEGREES OF FREEDOM":
			sol.Stats.DOF, err = strconv.Atoi(val)
		case "VARIANCE FACTOR":
			var vf float64
			if vf, err = strconv.ParseFloat(val, 64); err == nil {
				sol.Stats.SEU = math.Sqrt(vf)
			}
		default:
			continue
		}
		if err != nil {
			return dec.formatErr(fmt.Errorf("parse %s: %v", label, err))
		}
	}
	return nil
}

// readEpochs parses the SOLUTION/EPOCHS block, keeping the mean epoch of
// each solution.
func (sol *Solution) readEpochs(dec *Decoder) error {
	for dec.NextBlockLine() {
		var ep SolutionEpoch
		if err := dec.Decode(&ep); err != nil {
			return err
		}
		stn := sol.getStation(ep.SiteCode, ep.SolnKey(), true)
		stn.Epoch = ep.MeanTime
	}
	return nil
}

// readEstimates parses the SOLUTION/ESTIMATE block. Only the station
// coordinate parameters STAX, STAY and STAZ are retained; each one sets a
// coordinate component and registers the parameter ID. The registry is
// finalized when the block ends, which must happen before any covariance
// block is read.
func (sol *Solution) readEstimates(dec *Decoder) error {
	for dec.NextBlockLine() {
		var est Estimate
		if err := dec.Decode(&est); err != nil {
			return err
		}

		axis := est.ParType.Axis()
		if axis < 0 {
			continue
		}

		stn := sol.getStation(est.SiteCode, est.SolnKey(), true)
		stn.XYZ[axis] = est.Value
		stn.Estimated = true
		sol.prms[est.Idx] = prmRef{stn: stn, axis: axis}
	}

	sol.finalize()
	return nil
}

// finalize sorts the estimated stations by (code, solnID) and assigns each
// one its offset into the global coordinate parameter list.
func (sol *Solution) finalize() {
	sol.solved = sol.solved[:0]
	for _, stn := range sol.stations {
		if stn.Estimated {
			sol.solved = append(sol.solved, stn)
		}
	}
	sort.Slice(sol.solved, func(i, j int) bool {
		a, b := sol.solved[i], sol.solved[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.SolnID < b.SolnID
	})

	for i, stn := range sol.solved {
		stn.PrmOffset = 3 * i
	}
	sol.nparam = 3 * len(sol.solved)

	if sol.Opts.FullCovariance {
		sol.covar = NewTriMatrix(sol.nparam)
	}
	sol.finalized = true
}

// readMatrix parses a covariance matrix block into the per-station 3x3
// covariances and, if requested, into the full matrix. Entries referencing
// parameters other than station coordinates are skipped.
func (sol *Solution) readMatrix(dec *Decoder) error {
	if !sol.finalized {
		return &FormatError{LineNum: dec.LineNum(), Line: dec.Line(),
			Msg: fmt.Sprintf("block %q before block %q", dec.CurrentBlock(), BlockSolEstimate)}
	}

	for dec.NextBlockLine() {
		var ml MatrixLine
		if err := dec.Decode(&ml); err != nil {
			return err
		}

		ref0, ok := sol.prms[ml.Row]
		if !ok {
			continue
		}
		for k := 0; k < 3; k++ {
			if !ml.Present[k] {
				continue
			}
			ref1, ok := sol.prms[ml.Col+k]
			if !ok {
				continue
			}

			if sol.covar != nil {
				sol.covar.Set(ref0.stn.PrmOffset+ref0.axis, ref1.stn.PrmOffset+ref1.axis, ml.Values[k])
			}
			if ref0.stn == ref1.stn {
				stn := ref0.stn
				stn.Covar[ref0.axis][ref1.axis] = ml.Values[k]
				stn.Covar[ref1.axis][ref0.axis] = ml.Values[k]
			}
		}
	}
	return nil
}

// Stations returns the estimated stations sorted by (code, solnID).
func (sol *Solution) Stations() []*Station {
	return sol.solved
}

// NumParameters returns the number of estimated coordinate parameters,
// three per station.
func (sol *Solution) NumParameters() int {
	return sol.nparam
}

// Station looks up one estimated station. The solnID may be empty if the
// code has exactly one solution; with several solutions present, an empty
// or unknown solnID yields a LookupError.
func (sol *Solution) Station(code SiteCode, solnID string) (*Station, error) {
	var matches []*Station
	for _, stn := range sol.solved {
		if stn.Code == code {
			matches = append(matches, stn)
		}
	}
	if len(matches) == 0 {
		return nil, &LookupError{Code: code, Msg: "unknown site code"}
	}

	if solnID == "" {
		if len(matches) == 1 {
			return matches[0], nil
		}
		return nil, &LookupError{Code: code,
			Msg: fmt.Sprintf("ambiguous: %d solutions, solution ID required", len(matches))}
	}

	for _, stn := range matches {
		if stn.SolnID == solnID {
			return stn, nil
		}
	}
	return nil, &LookupError{Code: code, SolnID: solnID, Msg: "unknown solution ID"}
}

// Covariance returns the full lower-triangular covariance matrix over all
// estimated coordinate parameters. It is only available if the solution was
// opened with Options.FullCovariance.
func (sol *Solution) Covariance() (*TriMatrix, error) {
	if sol.covar == nil {
		return nil, fmt.Errorf("sinex: full covariance matrix was not requested")
	}
	return sol.covar, nil
}

// use a single instance of Validate, it caches struct info
var validate *validator.Validate

// Validate validates the extracted station records.
func (sol *Solution) Validate() error {
	if validate == nil {
		validate = validator.New()
	}
	for _, stn := range sol.solved {
		if err := validate.Struct(stn); err != nil {
			return fmt.Errorf("station %s (soln %s): %w", stn.Code, stn.SolnID, err)
		}
	}
	return nil
}

// openReader opens the source file, transparently decompressing gzip.
func openReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	zr, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzReadCloser{zr: zr, f: f}, nil
}

type gzReadCloser struct {
	zr *pgzip.Reader
	f  *os.File
}

func (r *gzReadCloser) Read(p []byte) (int, error) {
	return r.zr.Read(p)
}

func (r *gzReadCloser) Close() error {
	err := r.zr.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
