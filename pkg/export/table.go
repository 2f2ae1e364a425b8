// Package export writes curvilinear coordinate tables as columnar text.
//
// A table starts with a header naming each column, followed by a record
// holding the row count, a 3x3 transform (always identity, since the
// alignment is already applied to the coordinates) and one row per point.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"specimenmap/internal/models"
)

// Options selects the optional columns and rows of a table.
type Options struct {
	// IncludeClosest appends the xc, yc, zc columns
	IncludeClosest bool

	// IncludeID appends the point id column
	IncludeID bool

	// DropUnresolved omits points whose closest point search failed
	DropUnresolved bool
}

// Columns returns the column names written for opts, in order.
func Columns(opts Options) []string {
	cols := []string{"x", "y", "z", "ac", "r", "theta"}
	if opts.IncludeClosest {
		cols = append(cols, "xc", "yc", "zc")
	}
	if opts.IncludeID {
		cols = append(cols, "id")
	}
	return cols
}

// WriteTable writes points to w.
func WriteTable(w io.Writer, points []models.CurvilinearPoint, opts Options) error {
	rows := points
	if opts.DropUnresolved {
		rows = make([]models.CurvilinearPoint, 0, len(points))
		for _, p := range points {
			if !p.Unresolved {
				rows = append(rows, p)
			}
		}
	}

	bw := bufio.NewWriter(w)
	cols := Columns(opts)

	fmt.Fprintln(bw, "# PSI Format 1.0")
	fmt.Fprintln(bw, "#")
	for i, c := range cols {
		fmt.Fprintf(bw, "# column[%d] = \"%s\"\n", i, c)
	}
	fmt.Fprintln(bw, "end_head")
	fmt.Fprintf(bw, "%d 0 0\n", len(rows))
	fmt.Fprintln(bw, "1.00 0.00 0.00")
	fmt.Fprintln(bw, "0.00 1.00 0.00")
	fmt.Fprintln(bw, "0.00 0.00 1.00")
	fmt.Fprintln(bw)

	buf := make([]byte, 0, 256)
	for _, p := range rows {
		buf = buf[:0]
		vals := []float64{p.X, p.Y, p.Z, p.AC, p.R, p.Theta}
		if opts.IncludeClosest {
			vals = append(vals, p.XC, p.YC, p.ZC)
		}
		for i, v := range vals {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendFloat(buf, v)
		}
		if opts.IncludeID {
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(p.ID), 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func appendFloat(buf []byte, v float64) []byte {
	if math.IsNaN(v) {
		return append(buf, "nan"...)
	}
	return strconv.AppendFloat(buf, v, 'g', -1, 64)
}

// WriteFile writes the table to path, creating parent directories.
func WriteFile(path string, points []models.CurvilinearPoint, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTable(f, points, opts); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
