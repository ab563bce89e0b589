package sinex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mholt/archiver/v3"
)

// FilterStationsOnly writes a copy of the source file to dst that contains
// only the data of the estimated stations. Parameter indices in the
// SOLUTION/ESTIMATE and SOLUTION/APRIORI blocks are renumbered contiguously,
// covariance matrix blocks are rebuilt over the retained coordinate
// parameters, and the header parameter count is rewritten accordingly. All
// other lines pass through unmodified. A dst ending in ".gz" is compressed.
func (sol *Solution) FilterStationsOnly(dst string) error {
	src, err := openReader(sol.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	outPath := dst
	compress := strings.HasSuffix(dst, ".gz")
	if compress {
		outPath = strings.TrimSuffix(dst, ".gz")
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	if err := sol.writeFiltered(src, w); err != nil {
		out.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if compress {
		if err := archiver.CompressFile(outPath, dst); err != nil {
			return err
		}
		os.Remove(outPath)
	}
	return nil
}

// prmRemap returns the mapping from original SINEX parameter IDs to the new
// 1-based contiguous indices of the retained coordinate parameters.
func (sol *Solution) prmRemap() map[int]int {
	m := make(map[int]int, len(sol.prms))
	for id, ref := range sol.prms {
		m[id] = ref.stn.PrmOffset + ref.axis + 1
	}
	return m
}

func (sol *Solution) writeFiltered(src io.Reader, w *bufio.Writer) error {
	remap := sol.prmRemap()

	scan := bufio.NewScanner(src)
	lineNum := 0
	currBlock := ""
	var mat *TriMatrix // set while inside a covariance block being rebuilt

	for scan.Scan() {
		line := scan.Text()
		lineNum++

		switch {
		case lineNum == 1:
			hdr, err := rewriteHeaderLine(line, sol.nparam)
			if err != nil {
				return &FormatError{LineNum: lineNum, Line: line, Msg: err.Error()}
			}
			fmt.Fprintln(w, hdr)

		case strings.HasPrefix(line, "+"):
			if mat != nil { // previous matrix block was never terminated
				writeTriMatrix(w, mat)
				mat = nil
			}
			currBlock = strings.TrimSpace(line[1:])
			if isRewrittenMatrixBlock(currBlock) {
				mat = NewTriMatrix(sol.nparam)
			}
			fmt.Fprintln(w, line)

		case strings.HasPrefix(line, "-"):
			if mat != nil {
				writeTriMatrix(w, mat)
				mat = nil
			}
			currBlock = ""
			fmt.Fprintln(w, line)

		case strings.HasPrefix(line, "*"):
			fmt.Fprintln(w, line)

		case strings.HasPrefix(line, "%"):
			if mat != nil {
				writeTriMatrix(w, mat)
				mat = nil
			}
			fmt.Fprintln(w, line)

		case strings.TrimSpace(line) == "":
			fmt.Fprintln(w, line)

		case mat != nil:
			var ml MatrixLine
			if err := Unmarshal(line, &ml); err != nil {
				return &FormatError{LineNum: lineNum, Line: line, Msg: err.Error()}
			}
			row, ok := remap[ml.Row]
			if !ok {
				continue
			}
			for k := 0; k < 3; k++ {
				if !ml.Present[k] {
					continue
				}
				if col, ok := remap[ml.Col+k]; ok {
					mat.Set(row-1, col-1, ml.Values[k])
				}
			}

		case currBlock == BlockSolEstimate || currBlock == BlockSolApriori:
			if len(line) < 6 {
				return &FormatError{LineNum: lineNum, Line: line, Msg: "estimate record too short"}
			}
			id, err := strconv.Atoi(strings.TrimSpace(line[1:6]))
			if err != nil {
				return &FormatError{LineNum: lineNum, Line: line, Msg: fmt.Sprintf("parse INDEX: %v", err)}
			}
			newID, ok := remap[id]
			if !ok {
				continue // not a retained coordinate parameter
			}
			fmt.Fprintf(w, "%s%5d%s\n", line[:1], newID, line[6:])

		default:
			fmt.Fprintln(w, line)
		}
	}
	if mat != nil { // file ended inside a matrix block
		writeTriMatrix(w, mat)
	}
	return scan.Err()
}

// isRewrittenMatrixBlock reports whether the block body gets replaced by a
// rebuilt matrix: the lower-triangular covariance of the estimate or apriori.
func isRewrittenMatrixBlock(name string) bool {
	if !strings.HasPrefix(name, BlockSolMatrixEst) && !strings.HasPrefix(name, BlockSolMatrixApr) {
		return false
	}
	return strings.HasSuffix(name, "L COVA")
}

// rewriteHeaderLine replaces the parameter-count field of the SINEX header
// line with nparam and forces the solution contents to "S", leaving all
// other columns untouched.
func rewriteHeaderLine(line string, nparam int) (string, error) {
	if !headerSignature.MatchString(line) {
		return "", fmt.Errorf("not a SINEX header line")
	}
	if len(line) < 68 {
		return "", fmt.Errorf("header line too short")
	}
	return fmt.Sprintf("%s%5d%sS", line[:60], nparam, line[65:68]), nil
}

// writeTriMatrix emits the matrix in the blocked SINEX format: for each row,
// groups of up to three columns, each group on its own line prefixed with
// the 1-based row and start-column indices.
func writeTriMatrix(w io.Writer, m *TriMatrix) {
	for i := 1; i <= m.N(); i++ {
		for j0 := 1; j0 <= i; j0 += 3 {
			fmt.Fprintf(w, " %5d %5d", i, j0)
			for j := j0; j <= i && j < j0+3; j++ {
				fmt.Fprintf(w, " %21.14e", m.At(i-1, j-1))
			}
			fmt.Fprintln(w)
		}
	}
}
