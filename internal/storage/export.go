package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

type ExportData struct {
	Run        RunMetadata `json:"run"`
	Trajectory *Trajectory `json:"trajectory"`
}

// ExportJSON writes a run's metadata and trajectory as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: *meta, Trajectory: tr})
}

// ExportCSV writes the free-flight samples of a run as plain CSV.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(freeHeader); err != nil {
		return err
	}
	for _, p := range tr.Free {
		row := []string{p.Event, strconv.Itoa(p.Segment), format(p.Time), p.Position[0], p.Position[1], p.Position[2],
			format(p.Momentum[0]), format(p.Momentum[1]), format(p.Momentum[2])}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
