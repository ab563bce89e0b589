package sinex

import "fmt"

// FormatError reports input that does not conform to the SINEX format:
// a bad header signature, a data line not matching its fixed-width record
// layout, or a mandatory block missing from the file.
type FormatError struct {
	LineNum int    // 1-based line number, 0 if not tied to a line.
	Line    string // The offending line.
	Msg     string
}

func (e *FormatError) Error() string {
	if e.LineNum > 0 {
		return fmt.Sprintf("sinex: line %d: %s: %q", e.LineNum, e.Msg, e.Line)
	}
	return "sinex: " + e.Msg
}

// LookupError reports a failed station lookup: the site code is unknown or
// the solution ID is missing or does not exist while the code has several
// solutions.
type LookupError struct {
	Code   SiteCode
	SolnID string
	Msg    string
}

func (e *LookupError) Error() string {
	if e.SolnID != "" {
		return fmt.Sprintf("sinex: station %s (soln %s): %s", e.Code, e.SolnID, e.Msg)
	}
	return fmt.Sprintf("sinex: station %s: %s", e.Code, e.Msg)
}
