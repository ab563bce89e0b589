package sinex

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gnsstools/gosnx/pkg/gnsstime"
)

// The header line must begin with the SINEX signature and a version, e.g. "%=SNX 2.02".
var headerSignature = regexp.MustCompile(`^%=SNX \d\.\d\d`)

// Decoder reads and decodes the SINEX input stream.
type Decoder struct {
	Header *Header

	// Warnings collected while scanning, e.g. blocks that were not
	// properly terminated.
	Warnings []string

	scan      *bufio.Scanner
	currBlock string // The name of the current block.
	lineNum   int
	pending   bool // The current line opens a block that has not been delivered by NextBlock yet.
}

// NewDecoder returns a new decoder that reads from r.
// The header line will be read and validated implicitly.
//
// It is the caller's responsibility to call Close on the underlying reader when done!
func NewDecoder(r io.Reader) (*Decoder, error) {
	dec := &Decoder{scan: bufio.NewScanner(r)}
	if err := dec.readHeaderLine(); err != nil {
		return nil, err
	}
	return dec, nil
}

// NextBlock reports whether there is another block available and moves the
// reader to the begin of this block.
// Use CurrentBlock() to get the name of the current block.
func (dec *Decoder) NextBlock() bool {
	if dec.pending {
		dec.pending = false
		return true
	}

	for dec.readLine() {
		if dec.isBlockBegin() {
			return true
		}
	}
	return false
}

// NextBlockLine reports whether there is another data line in the current
// block and reads that line into the buffer.
// It returns false when reaching the end of the block. If a new block begins
// before the current one was terminated, a warning is recorded and the new
// block is delivered by the next NextBlock call.
func (dec *Decoder) NextBlockLine() bool {
	for dec.readLine() {
		if dec.isCommentLine() {
			continue
		}
		if dec.isBlockBegin() {
			dec.pending = true
			return false
		}
		if dec.isDataLine() {
			return true
		}
		return false
	}
	return false
}

// Err returns the first error encountered by the underlying scanner.
func (dec *Decoder) Err() error {
	return dec.scan.Err()
}

// CurrentBlock returns the name of the current block.
func (dec *Decoder) CurrentBlock() string {
	return dec.currBlock
}

// LineNum returns the 1-based number of the current line.
func (dec *Decoder) LineNum() int {
	return dec.lineNum
}

// Line returns the current line in buffer.
func (dec *Decoder) Line() string {
	return dec.scan.Text()
}

// Reports whether the current line is a comment.
func (dec *Decoder) isCommentLine() bool {
	return strings.HasPrefix(dec.Line(), "*")
}

// Reports whether the current line is the begin of a block.
func (dec *Decoder) isBlockBegin() bool {
	return strings.HasPrefix(dec.Line(), "+")
}

// Reports whether the current line is a data line, that means no comment, block begin etc.
func (dec *Decoder) isDataLine() bool {
	line := dec.Line()
	if len(line) < 1 {
		return false
	}
	return !strings.ContainsAny(line[:1], "-+*%")
}

// read the SINEX header which is only one line.
func (dec *Decoder) readHeaderLine() error {
	if ok := dec.readLine(); !ok {
		if err := dec.scan.Err(); err != nil {
			return err
		}
		return &FormatError{Msg: "empty input"}
	}

	line := dec.Line()
	if !headerSignature.MatchString(line) {
		return &FormatError{LineNum: dec.lineNum, Line: line, Msg: "not a SINEX header line"}
	}

	hdr := &Header{}
	if err := hdr.UnmarshalSINEX(line); err != nil {
		return &FormatError{LineNum: dec.lineNum, Line: line, Msg: err.Error()}
	}
	dec.Header = hdr
	return nil
}

// readLine reads the next line into buffer. It returns false if an error
// occurs or EOF was reached. It also maintains the current block name and
// records a warning if a block begins while another one is still open.
func (dec *Decoder) readLine() bool {
	if ok := dec.scan.Scan(); !ok {
		return false
	}
	dec.lineNum++

	line := dec.Line()
	if strings.HasPrefix(line, "+") {
		if dec.currBlock != "" {
			dec.warnf("line %d: block %q begins before block %q was terminated", dec.lineNum, strings.TrimSpace(line[1:]), dec.currBlock)
		}
		dec.currBlock = strings.TrimSpace(line[1:])
	} else if strings.HasPrefix(line, "-") {
		dec.currBlock = ""
	}
	return true
}

func (dec *Decoder) warnf(format string, args ...interface{}) {
	dec.Warnings = append(dec.Warnings, fmt.Sprintf(format, args...))
}

// formatErr wraps a record parsing error with the current line context.
func (dec *Decoder) formatErr(err error) *FormatError {
	return &FormatError{LineNum: dec.lineNum, Line: dec.Line(), Msg: err.Error()}
}

type Unmarshaler interface {
	UnmarshalSINEX(string) error
}

// Decode the current line into out.
func (dec *Decoder) Decode(out Unmarshaler) error {
	if err := out.UnmarshalSINEX(dec.Line()); err != nil {
		return dec.formatErr(err)
	}
	return nil
}

// Unmarshal in to out.
func Unmarshal(in string, out Unmarshaler) error {
	return out.UnmarshalSINEX(in)
}

// Unmarshal the header line.
func (hdr *Header) UnmarshalSINEX(in string) error {
	vals, err := splitFixed(in, headerFields)
	if err != nil {
		return err
	}

	hdr.Version = vals[0]
	hdr.Agency = vals[1]
	if hdr.CreationTime, err = parseTime(vals[2]); err != nil {
		return err
	}
	hdr.AgencyDataProvider = vals[3]
	if hdr.StartTime, err = parseTime(vals[4]); err != nil {
		return err
	}
	if hdr.EndTime, err = parseTime(vals[5]); err != nil {
		return err
	}

	if techn, ok := obsTechnMap[vals[6]]; ok {
		hdr.ObsTech = techn
	} else {
		return fmt.Errorf("unknown observation code: %q", vals[6])
	}

	if hdr.NumEstimates, err = strconv.Atoi(vals[7]); err != nil {
		return fmt.Errorf("parse number of estimates: %v", err)
	}
	if hdr.ConstraintCode, err = strconv.Atoi(vals[8]); err != nil {
		return fmt.Errorf("parse constraint code: %v", err)
	}
	hdr.SolutionTypes = strings.Fields(vals[9])
	return nil
}

// Unmarshal a SOLUTION/ESTIMATE record.
func (est *Estimate) UnmarshalSINEX(in string) error {
	vals, err := splitFixed(in, estimateFields)
	if err != nil {
		return err
	}

	if est.Idx, err = strconv.Atoi(vals[0]); err != nil {
		return fmt.Errorf("parse INDEX: %v", err)
	}
	est.ParType = ParameterType(vals[1])
	est.SiteCode = SiteCode(cleanField(vals[2]))
	est.PointCode = cleanField(vals[3])
	est.SolID = cleanField(vals[4])

	if est.Epoch, err = parseTime(vals[5]); err != nil {
		return fmt.Errorf("parse REF_EPOCH: %v", err)
	}
	est.Unit = vals[6]
	est.ConstraintCode = vals[7]

	if est.Value, err = strconv.ParseFloat(vals[8], 64); err != nil {
		return fmt.Errorf("parse ESTIMATED_VALUE: %v", err)
	}
	if vals[9] != "" {
		if est.Stddev, err = strconv.ParseFloat(vals[9], 64); err != nil {
			return fmt.Errorf("parse STD_DEV: %v", err)
		}
	}
	return nil
}

// Unmarshal a SOLUTION/EPOCHS record.
func (ep *SolutionEpoch) UnmarshalSINEX(in string) error {
	vals, err := splitFixed(in, epochFields)
	if err != nil {
		return err
	}

	ep.SiteCode = SiteCode(cleanField(vals[0]))
	ep.PointCode = cleanField(vals[1])
	ep.SolID = cleanField(vals[2])
	ep.ObsCode = vals[3]

	if ep.StartTime, err = parseTime(vals[4]); err != nil {
		return fmt.Errorf("parse DATA_START: %v", err)
	}
	if ep.EndTime, err = parseTime(vals[5]); err != nil {
		return fmt.Errorf("parse DATA_END: %v", err)
	}
	if ep.MeanTime, err = parseTime(vals[6]); err != nil {
		return fmt.Errorf("parse MEAN_EPOCH: %v", err)
	}
	return nil
}

// Unmarshal a covariance matrix record.
func (ml *MatrixLine) UnmarshalSINEX(in string) error {
	vals, err := splitFixed(in, matrixFields)
	if err != nil {
		return err
	}

	if ml.Row, err = strconv.Atoi(vals[0]); err != nil {
		return fmt.Errorf("parse PARA1: %v", err)
	}
	if ml.Col, err = strconv.Atoi(vals[1]); err != nil {
		return fmt.Errorf("parse PARA2: %v", err)
	}

	for k := 0; k < 3; k++ {
		s := vals[2+k]
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse PARA2+%d value: %v", k, err)
		}
		ml.Values[k] = v
		ml.Present[k] = true
	}
	return nil
}

// oberservation techn lookup map.
var obsTechnMap = map[string]ObservationTechnique{
	"C": ObsTechCombined,
	"D": ObsTechDORIS,
	"L": ObsTechSLR,
	"M": ObsTechLLR,
	"P": ObsTechGPS,
	"R": ObsTechVLBI,
}

// parseTime parses a SINEX time string.
//
//	Time | YY:DDD:SSSSS. "UTC"         | I2.2,    |
//	YY = last 2 digits of the year,    | 1H:,I3.3,|
//	DDD = 3-digit day in year          | 1H:,I5.5 |
//	SSSSS = 5-digit seconds in day
//
// Two-digit years are windowed at 1980: values below 80 belong to the
// 21st century.
func parseTime(str string) (time.Time, error) {
	if str == "00:000:00000" { //  __DATA_END__ means open end
		return time.Time{}, nil // zero time
	}

	if len(str) != 12 || str[2] != ':' || str[6] != ':' {
		return time.Time{}, fmt.Errorf("invalid time %q", str)
	}

	yy, err := strconv.Atoi(str[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse year %q: %v", str, err)
	}
	doy, err := strconv.Atoi(str[3:6])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day of year %q: %v", str, err)
	}
	sod, err := strconv.Atoi(str[7:12])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse seconds of day %q: %v", str, err)
	}

	year, err := gnsstime.WindowYear(yy)
	if err != nil {
		return time.Time{}, err
	}
	return gnsstime.YearDoySod(year, doy, sod)
}
