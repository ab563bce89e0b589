package sinex

import (
	"fmt"
	"strings"
)

// field describes one fixed-width column range of a SINEX record.
// start and end are byte offsets into the line, end is exclusive.
// An end of -1 means up to the end of the line.
type field struct {
	name     string
	start    int
	end      int
	optional bool
}

// The column layouts of the record types read by this package, taken from the
// SINEX 2.02 format description.
var (
	headerFields = []field{
		{name: "VERSION", start: 6, end: 10},
		{name: "AGENCY", start: 11, end: 14},
		{name: "CREATION_TIME", start: 15, end: 27},
		{name: "DATA_PROVIDER", start: 28, end: 31},
		{name: "START_TIME", start: 32, end: 44},
		{name: "END_TIME", start: 45, end: 57},
		{name: "TECHNIQUE", start: 58, end: 59},
		{name: "NUM_ESTIMATES", start: 60, end: 65},
		{name: "CONSTRAINT_CODE", start: 66, end: 67},
		{name: "SOLUTION_TYPES", start: 68, end: -1, optional: true},
	}

	estimateFields = []field{
		{name: "INDEX", start: 1, end: 6},
		{name: "TYPE", start: 7, end: 13},
		{name: "CODE", start: 14, end: 18},
		{name: "PT", start: 19, end: 21},
		{name: "SOLN", start: 22, end: 26},
		{name: "REF_EPOCH", start: 27, end: 39},
		{name: "UNIT", start: 40, end: 44},
		{name: "S", start: 45, end: 46},
		{name: "ESTIMATED_VALUE", start: 47, end: 68},
		{name: "STD_DEV", start: 69, end: 80, optional: true},
	}

	epochFields = []field{
		{name: "CODE", start: 1, end: 5},
		{name: "PT", start: 6, end: 8},
		{name: "SOLN", start: 9, end: 13},
		{name: "T", start: 14, end: 15},
		{name: "DATA_START", start: 16, end: 28},
		{name: "DATA_END", start: 29, end: 41},
		{name: "MEAN_EPOCH", start: 42, end: 54},
	}

	statisticsFields = []field{
		{name: "INFO_TYPE", start: 1, end: 31},
		{name: "INFO_VALUE", start: 32, end: 54, optional: true},
	}

	matrixFields = []field{
		{name: "ROW", start: 1, end: 6},
		{name: "COL", start: 7, end: 12},
		{name: "VALUE1", start: 13, end: 34},
		{name: "VALUE2", start: 35, end: 56, optional: true},
		{name: "VALUE3", start: 57, end: 78, optional: true},
	}
)

// splitFixed cuts line into the given fields and returns the trimmed values
// in field order. A line too short for a mandatory field is an error, a
// missing optional field yields an empty string.
func splitFixed(line string, fields []field) ([]string, error) {
	vals := make([]string, len(fields))
	for i, f := range fields {
		end := f.end
		if end < 0 || end > len(line) {
			end = len(line)
		}
		if f.start >= end {
			if f.optional {
				continue
			}
			return nil, fmt.Errorf("record too short for field %s", f.name)
		}
		if !f.optional && f.end > len(line) {
			return nil, fmt.Errorf("record too short for field %s", f.name)
		}
		vals[i] = strings.TrimSpace(line[f.start:end])
	}
	return vals, nil
}

// Clean field values. Return an empty string instead of "----" for unknown values.
func cleanField(in string) string {
	return strings.Trim(in, "-")
}
