package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"specimenmap/internal/models"
)

var columnPattern = regexp.MustCompile(`^# column\[(\d+)\] = "(\w+)"$`)

// ReadTable parses a table written by WriteTable. Columns are matched by
// name, so tables written with any Options can be read back.
func ReadTable(r io.Reader) ([]models.CurvilinearPoint, error) {
	sc := bufio.NewScanner(r)
	var cols []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "end_head" {
			break
		}
		if m := columnPattern.FindStringSubmatch(line); m != nil {
			cols = append(cols, m[2])
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table has no column header")
	}

	if !sc.Scan() {
		return nil, fmt.Errorf("table has no count record")
	}
	var count int
	if _, err := fmt.Sscan(sc.Text(), &count); err != nil {
		return nil, fmt.Errorf("bad count record %q: %w", sc.Text(), err)
	}
	// Transform record
	for i := 0; i < 3; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("table truncated in transform record")
		}
	}

	points := make([]models.CurvilinearPoint, 0, count)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", len(points), len(fields), len(cols))
		}
		var p models.CurvilinearPoint
		for i, c := range cols {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", len(points), c, err)
			}
			switch c {
			case "x":
				p.X = v
			case "y":
				p.Y = v
			case "z":
				p.Z = v
			case "ac":
				p.AC = v
			case "r":
				p.R = v
			case "theta":
				p.Theta = v
			case "xc":
				p.XC = v
			case "yc":
				p.YC = v
			case "zc":
				p.ZC = v
			case "id":
				p.ID = int(v)
			}
		}
		p.Unresolved = math.IsNaN(p.R)
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(points) != count {
		return nil, fmt.Errorf("table declares %d rows but has %d", count, len(points))
	}
	return points, nil
}
