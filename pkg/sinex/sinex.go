// Package sinex reads SINEX geodetic solution files and extracts the
// estimated station coordinates, their covariances and the solution
// statistics. It can also write a filtered, stations-only copy of a file.
// Format description is available at https://www.iers.org/IERS/EN/Organization/AnalysisCoordinator/SinexFormat/sinex.html.
package sinex

import (
	"time"
)

// The blocks this package reads or rewrites.
const (
	BlockSolEpochs     = "SOLUTION/EPOCHS"          // List of solution epochs for each Site Code/Point Code/Solution Number combination.
	BlockSolStatistics = "SOLUTION/STATISTICS"      // Statistical information about the solution.
	BlockSolEstimate   = "SOLUTION/ESTIMATE"        // The estimated parameters.
	BlockSolApriori    = "SOLUTION/APRIORI"         // Apriori information for estimated parameters.
	BlockSolMatrixEst  = "SOLUTION/MATRIX_ESTIMATE" // The estimate matrix.
	BlockSolMatrixApr  = "SOLUTION/MATRIX_APRIORI"  // The apriori matrix.
)

// SiteCode is the site identifier, usually the FourCharID.
type SiteCode string

// ObservationTechnique used to arrive at the solutions obtained in this SINEX file, e.g. SLR, GPS, VLBI.
// It should be consistent with the IERS convention.
type ObservationTechnique int

// Observation techniques.
const (
	ObsTechCombined ObservationTechnique = iota + 1
	ObsTechDORIS
	ObsTechSLR
	ObsTechLLR
	ObsTechGPS
	ObsTechVLBI
)

func (techn ObservationTechnique) String() string {
	return [...]string{"", "Combined", "DORIS", "SLR", "LLR", "GPS", "VLBI"}[techn]
}

// ParameterType identifies the type of parameter.
type ParameterType string

const (
	ParameterTypeSTAX ParameterType = "STAX" // Station X coordinate in m.
	ParameterTypeSTAY ParameterType = "STAY" // Station Y coordinate in m.
	ParameterTypeSTAZ ParameterType = "STAZ" // Station Z coordinate in m.
)

// Axis returns the coordinate axis 0, 1 or 2 for the station coordinate
// parameter types STAX, STAY and STAZ, and -1 for any other type.
func (typ ParameterType) Axis() int {
	switch typ {
	case ParameterTypeSTAX:
		return 0
	case ParameterTypeSTAY:
		return 1
	case ParameterTypeSTAZ:
		return 2
	}
	return -1
}

// Header contains the information from the SINEX header line.
type Header struct {
	Version            string               // Format version.
	Agency             string               // Agency creating the file.
	AgencyDataProvider string               // Agency providing the data in the file.
	CreationTime       time.Time            // Creation time of the file.
	StartTime          time.Time            // Start time of the data.
	EndTime            time.Time            // End time of the data.
	ObsTech            ObservationTechnique // Technique(s) used to generate the SINEX solution.
	NumEstimates       int                  // parameters estimated
	ConstraintCode     int                  // Single digit indicating the constraints:  0-fixed/tight constraints, 1-significant constraints, 2-unconstrained.
	SolutionTypes      []string             // Solution types contained in this SINEX file. Each character in this field may be one of the following:
	/* 	S - all station parameters, i.e. station coordinates, station velocities, biases, geocenter
	    O - Orbits
		  E - Earth Orientation Parameter
		  T - Troposphere
		  C - Celestial Reference Frame
	BLANK */
}

// Station is one estimated station solution, identified by the site code
// together with the solution identifier. The same site code can occur with
// several solutions.
type Station struct {
	Code      SiteCode      `validate:"len=4"`    // 4-char site code, e.g. WTZR.
	SolnID    string        `validate:"required"` // Composite solution identifier "pointcode:soln".
	Epoch     time.Time     // Mean epoch of the observations contributing to this solution.
	PrmOffset int           // Offset into the global ordered list of estimated coordinate parameters.
	Estimated bool          // At least one coordinate appeared in the SOLUTION/ESTIMATE block.
	XYZ       [3]float64    // Estimated coordinates in m.
	Covar     [3][3]float64 // The station's own 3x3 coordinate covariance, symmetric.
}

// Estimate stores one estimated solution parameter.
type Estimate struct {
	Idx            int           // Index of estimated parameters, beginning with 1.
	ParType        ParameterType // The type of the parameter.
	SiteCode       SiteCode      // 4-char site code, e.g. WTZR.
	PointCode      string        // A 2-char code identifying physical monument within a site.
	SolID          string        // Solution ID at a Site/Point code for which the parameter is estimated.
	Epoch          time.Time     // Epoch at which the estimated parameter is valid.
	Unit           string        // Units used for the estimates and sigmas.
	ConstraintCode string        // Constraint code applied to the parameter.
	Value          float64       // Estimated value of the parameter.
	Stddev         float64       // Estimated standard deviation for the parameter.
}

// SolnKey returns the composite solution identifier "pointcode:soln"
// that together with the site code uniquely identifies a solution.
func (est *Estimate) SolnKey() string {
	return est.PointCode + ":" + est.SolID
}

// SolutionEpoch is one record of the SOLUTION/EPOCHS block.
type SolutionEpoch struct {
	SiteCode  SiteCode  // 4-char site code, e.g. WTZR.
	PointCode string    // A 2-char code identifying physical monument within a site.
	SolID     string    // Solution ID at a Site/Point code.
	ObsCode   string    // Observation code.
	StartTime time.Time // Start time of the data interval.
	EndTime   time.Time // End time of the data interval.
	MeanTime  time.Time // Mean epoch of the observations.
}

// SolnKey returns the composite solution identifier, see Estimate.SolnKey.
func (ep *SolutionEpoch) SolnKey() string {
	return ep.PointCode + ":" + ep.SolID
}

// MatrixLine is one record of a SOLUTION/MATRIX_ESTIMATE or
// SOLUTION/MATRIX_APRIORI block: the covariances between parameter Row
// and the parameters Col, Col+1 and Col+2. The second and third value
// may be absent.
type MatrixLine struct {
	Row, Col int
	Values   [3]float64
	Present  [3]bool
}

// Statistics holds the solution statistics from the SOLUTION/STATISTICS block.
type Statistics struct {
	NumObs      int     // Number of observations.
	NumUnknowns int     // Number of estimated parameters.
	DOF         int     // Degrees of freedom.
	SEU         float64 // Standard error of unit weight, the square root of the variance factor.
}

// Options control what Open extracts from a SINEX file.
type Options struct {
	// FullCovariance additionally builds the dense lower-triangular covariance
	// matrix over all estimated coordinate parameters. It is off by default as
	// the matrix needs O(n^2) memory on large solutions.
	FullCovariance bool

	// SkipCovariance makes the covariance block optional. Per-station
	// covariances are still extracted if the block is present.
	SkipCovariance bool
}
