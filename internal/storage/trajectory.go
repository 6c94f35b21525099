package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

// FreePoint is one row of free.csv.
type FreePoint struct {
	Event    string     `json:"event"`
	Segment  int        `json:"segment"`
	Time     float64    `json:"t"`
	Position [3]string  `json:"position"`
	Momentum [3]float64 `json:"momentum"`
}

// LaserPoint is one row of laser.csv. Enter and exit rows carry no state.
type LaserPoint struct {
	Event       string     `json:"event"`
	Interaction int        `json:"interaction"`
	Node        int        `json:"node"`
	LocalTime   float64    `json:"local_time"`
	Position    [3]float64 `json:"position"`
	Momentum    [3]float64 `json:"momentum"`
	E           [3]float64 `json:"e"`
	B           [3]float64 `json:"b"`
}

type Trajectory struct {
	Free  []FreePoint  `json:"free"`
	Laser []LaserPoint `json:"laser"`
}

type zstdReader struct {
	*zstd.Decoder
	f *os.File
}

func (r *zstdReader) Close() error {
	r.Decoder.Close()
	return r.f.Close()
}

// openTrajectory opens name in dir, falling back to its compressed form.
func openTrajectory(dir, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	f, err = os.Open(filepath.Join(dir, name+zstdExt))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdReader{Decoder: dec, f: f}, nil
}

func readRows(dir, name string, width int) ([][]string, error) {
	rc, err := openTrajectory(dir, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = width
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: missing header", name)
	}
	return rows[1:], nil
}

// LoadTrajectory reads both trajectory files of a run.
func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.baseDir, runID)

	tr := &Trajectory{}
	rows, err := readRows(dir, freeFile, len(freeHeader))
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		p, err := parseFree(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", freeFile, i+2, err)
		}
		tr.Free = append(tr.Free, p)
	}

	rows, err = readRows(dir, laserFile, len(laserHeader))
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		p, err := parseLaser(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", laserFile, i+2, err)
		}
		tr.Laser = append(tr.Laser, p)
	}
	return tr, nil
}

func parseFloats(dst []float64, fields []string) error {
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func parseFree(row []string) (FreePoint, error) {
	p := FreePoint{Event: row[0]}
	var err error
	if p.Segment, err = strconv.Atoi(row[1]); err != nil {
		return p, err
	}
	if p.Time, err = strconv.ParseFloat(row[2], 64); err != nil {
		return p, err
	}
	copy(p.Position[:], row[3:6])
	return p, parseFloats(p.Momentum[:], row[6:9])
}

func parseLaser(row []string) (LaserPoint, error) {
	p := LaserPoint{Event: row[0]}
	var err error
	if p.Interaction, err = strconv.Atoi(row[1]); err != nil {
		return p, err
	}
	if p.Node, err = strconv.Atoi(row[2]); err != nil {
		return p, err
	}
	if p.LocalTime, err = strconv.ParseFloat(row[3], 64); err != nil {
		return p, err
	}
	if p.Event != EventProgress {
		return p, nil
	}
	for _, part := range []struct {
		dst  []float64
		from int
	}{
		{p.Position[:], 4}, {p.Momentum[:], 7}, {p.E[:], 10}, {p.B[:], 13},
	} {
		if err := parseFloats(part.dst, row[part.from:part.from+3]); err != nil {
			return p, err
		}
	}
	return p, nil
}
