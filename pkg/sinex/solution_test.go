package sinex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testFile = "testdata/gsol21165.snx"

// writeVariant writes a copy of the test file transformed by fn to a temp
// directory and returns its path.
func writeVariant(t *testing.T, fn func(lines []string) []string) string {
	t.Helper()
	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	lines = fn(lines)

	path := filepath.Join(t.TempDir(), "variant.snx")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// dropBlock removes a block including its begin and end markers.
func dropBlock(lines []string, name string) []string {
	var out []string
	in := false
	for _, line := range lines {
		if strings.HasPrefix(line, "+") && strings.TrimSpace(line[1:]) == name {
			in = true
			continue
		}
		if in && strings.HasPrefix(line, "-") {
			in = false
			continue
		}
		if !in {
			out = append(out, line)
		}
	}
	return out
}

// dropLine removes the lines equal to s.
func dropLine(lines []string, s string) []string {
	var out []string
	for _, line := range lines {
		if line != s {
			out = append(out, line)
		}
	}
	return out
}

func TestOpen(t *testing.T) {
	assert := assert.New(t)
	sol, err := Open(testFile, Options{})
	assert.NoError(err)
	assert.Empty(sol.Warnings, "warnings")

	stns := sol.Stations()
	assert.Len(stns, 3, "number of estimated stations")
	assert.Equal(9, sol.NumParameters(), "number of coordinate parameters")

	// sorted by (code, solnID), offsets 0, 3, 6
	for i, want := range []struct {
		code   SiteCode
		solnID string
	}{
		{"ABMF", "A:1"}, {"ABMF", "A:2"}, {"WTZR", "A:1"},
	} {
		assert.Equal(want.code, stns[i].Code, "station %d code", i)
		assert.Equal(want.solnID, stns[i].SolnID, "station %d solnID", i)
		assert.Equal(3*i, stns[i].PrmOffset, "station %d prm offset", i)
		assert.True(stns[i].Estimated, "station %d estimated", i)
	}

	assert.Equal([3]float64{4000000.1, 200000.2, 4100000.3}, stns[0].XYZ, "ABMF 1 coordinates")
	assert.Equal([3]float64{4000000.4, 200000.5, 4100000.6}, stns[1].XYZ, "ABMF 2 coordinates")
	assert.Equal([3]float64{4075580.1, 931853.9, 4801568.0}, stns[2].XYZ, "WTZR coordinates")

	// mean epochs with two-digit year windowing
	assert.Equal(time.Date(1995, 4, 30, 12, 0, 0, 0, time.UTC), stns[0].Epoch, "ABMF 1 epoch")
	assert.Equal(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), stns[1].Epoch, "ABMF 2 epoch")
	assert.Equal(time.Date(1985, 2, 1, 12, 0, 0, 0, time.UTC), stns[2].Epoch, "WTZR epoch")

	assert.Equal(1026, sol.Stats.NumObs, "number of observations")
	assert.Equal(158, sol.Stats.NumUnknowns, "number of unknowns")
	assert.Equal(868, sol.Stats.DOF, "degrees of freedom")
	assert.Equal(2.0, sol.Stats.SEU, "standard error of unit weight")

	assert.NoError(sol.Validate())
}

func TestOpen_stationCovariances(t *testing.T) {
	assert := assert.New(t)
	sol, err := Open(testFile, Options{})
	assert.NoError(err)

	stns := sol.Stations()
	assert.Equal([3][3]float64{
		{0.25, 0.01, 0.02},
		{0.01, 0.36, 0.03},
		{0.02, 0.03, 0.49},
	}, stns[0].Covar, "ABMF 1 covariance")

	assert.Equal([3][3]float64{
		{0.16, 0.011, 0.012},
		{0.011, 0.25, 0.013},
		{0.012, 0.013, 0.36},
	}, stns[1].Covar, "ABMF 2 covariance")

	assert.Equal([3][3]float64{
		{0.0625, 0.002, 0.003},
		{0.002, 0.09, 0.004},
		{0.003, 0.004, 0.1225},
	}, stns[2].Covar, "WTZR covariance")

	for _, stn := range stns {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(stn.Covar[j][i], stn.Covar[i][j], "%s covar symmetry (%d,%d)", stn.Code, i, j)
			}
		}
	}
}

func TestOpen_fullCovariance(t *testing.T) {
	assert := assert.New(t)
	sol, err := Open(testFile, Options{FullCovariance: true})
	assert.NoError(err)

	m, err := sol.Covariance()
	assert.NoError(err)
	assert.Equal(9, m.N(), "matrix order")

	assert.Equal(0.25, m.At(0, 0))
	assert.Equal(0.16, m.At(3, 3), "diagonal after skipped velocity parameter")
	assert.Equal(0.1225, m.At(8, 8))

	// cross-station covariances
	assert.Equal(0.001, m.At(6, 0), "ABMF 1 X / WTZR X")
	assert.Equal(0.001, m.At(0, 6), "symmetric access")
	assert.Equal(0.005, m.At(8, 0), "gap line, first value")
	assert.Equal(0.006, m.At(8, 2), "gap line, third value")
	assert.Equal(0.0, m.At(8, 1), "gap line, absent value")
}

func TestOpen_noFullCovariance(t *testing.T) {
	sol, err := Open(testFile, Options{})
	assert.NoError(t, err)

	_, err = sol.Covariance()
	assert.Error(t, err, "full matrix was not requested")
}

func TestOpen_missingFile(t *testing.T) {
	_, err := Open("testdata/nosuchfile.snx", Options{})
	assert.Error(t, err)
}

func TestOpen_missingEstimateBlock(t *testing.T) {
	path := writeVariant(t, func(lines []string) []string {
		return dropBlock(lines, BlockSolEstimate)
	})

	_, err := Open(path, Options{})
	var ferr *FormatError
	if assert.True(t, errors.As(err, &ferr), "want FormatError, got %v", err) {
		assert.Contains(t, ferr.Msg, BlockSolEstimate)
	}
}

func TestOpen_missingCovarianceBlock(t *testing.T) {
	path := writeVariant(t, func(lines []string) []string {
		return dropBlock(lines, BlockSolMatrixEst+" L COVA")
	})

	_, err := Open(path, Options{})
	var ferr *FormatError
	if assert.True(t, errors.As(err, &ferr), "want FormatError, got %v", err) {
		assert.Contains(t, ferr.Msg, BlockSolMatrixEst)
	}

	// optional when the caller skips covariance
	sol, err := Open(path, Options{SkipCovariance: true})
	assert.NoError(t, err)
	assert.Len(t, sol.Stations(), 3)
}

func TestOpen_unterminatedStatistics(t *testing.T) {
	assert := assert.New(t)
	path := writeVariant(t, func(lines []string) []string {
		return dropLine(lines, "-SOLUTION/STATISTICS")
	})

	sol, err := Open(path, Options{})
	assert.NoError(err, "an unterminated block is not fatal")
	assert.Len(sol.Warnings, 1, "warnings")
	assert.Contains(sol.Warnings[0], BlockSolStatistics)

	// the partial statistics are kept and the following block is processed
	assert.Equal(1026, sol.Stats.NumObs, "number of observations")
	assert.Equal(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), sol.Stations()[1].Epoch, "epochs block still read")
}

func TestOpen_covarianceBeforeEstimate(t *testing.T) {
	path := writeVariant(t, func(lines []string) []string {
		// move the whole covariance block before the estimate block
		var cova []string
		in := false
		for _, line := range lines {
			if line == "+SOLUTION/MATRIX_ESTIMATE L COVA" {
				in = true
			}
			if in {
				cova = append(cova, line)
			}
			if in && line == "-SOLUTION/MATRIX_ESTIMATE L COVA" {
				in = false
			}
		}
		lines = dropBlock(lines, BlockSolMatrixEst+" L COVA")
		var out []string
		for _, line := range lines {
			if line == "+SOLUTION/ESTIMATE" {
				out = append(out, cova...)
			}
			out = append(out, line)
		}
		return out
	})

	_, err := Open(path, Options{})
	var ferr *FormatError
	assert.True(t, errors.As(err, &ferr), "want FormatError, got %v", err)
}

func TestSolution_Station(t *testing.T) {
	assert := assert.New(t)
	sol, err := Open(testFile, Options{})
	assert.NoError(err)

	// unique code, no soln ID needed
	stn, err := sol.Station("WTZR", "")
	assert.NoError(err)
	assert.Equal(SiteCode("WTZR"), stn.Code)

	// two solutions: the soln ID is required
	_, err = sol.Station("ABMF", "")
	var lerr *LookupError
	assert.True(errors.As(err, &lerr), "want LookupError, got %v", err)

	stn, err = sol.Station("ABMF", "A:2")
	assert.NoError(err)
	assert.Equal("A:2", stn.SolnID)
	assert.Equal([3]float64{4000000.4, 200000.5, 4100000.6}, stn.XYZ)

	// unknown code and unknown soln ID
	_, err = sol.Station("XXXX", "")
	assert.True(errors.As(err, &lerr), "unknown code: want LookupError, got %v", err)
	_, err = sol.Station("ABMF", "A:9")
	assert.True(errors.As(err, &lerr), "unknown soln: want LookupError, got %v", err)
}

func TestOpen_badEstimateLine(t *testing.T) {
	path := writeVariant(t, func(lines []string) []string {
		for i, line := range lines {
			if strings.HasPrefix(line, "     1 STAX") {
				lines[i] = "     1 STAX   ABMF  A    1 95:120:43200 m    2  not-a-number--------- 5.00000e-04"
				break
			}
		}
		return lines
	})

	_, err := Open(path, Options{})
	var ferr *FormatError
	if assert.True(t, errors.As(err, &ferr), "want FormatError, got %v", err) {
		assert.NotZero(t, ferr.LineNum, "line number set")
		assert.NotEmpty(t, ferr.Line, "offending line included")
	}
}
