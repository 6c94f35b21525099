package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/micrenda/circlesim-sub000/internal/lab"
	"github.com/micrenda/circlesim-sub000/internal/sim"
)

const (
	metadataFile = "metadata.json"
	freeFile     = "free.csv"
	laserFile    = "laser.csv"
	zstdExt      = ".zst"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir  string
	compress bool
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// SetCompression makes new runs write zstd-compressed trajectories.
func (s *Store) SetCompression(on bool) {
	s.compress = on
}

func (s *Store) BaseDir() string { return s.baseDir }

type RunMetadata struct {
	ID          string             `json:"id"`
	Label       string             `json:"label"`
	Timestamp   time.Time          `json:"timestamp"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Integrator  string             `json:"integrator"`
	Config      sim.Config         `json:"config"`
	Particle    lab.Particle       `json:"particle"`
	Nodes       int                `json:"nodes"`
	Initial     StateRecord        `json:"initial"`
	Final       *StateRecord       `json:"final,omitempty"`
	// FinalRegime is the regime the particle was in when the run stopped.
	FinalRegime string             `json:"final_regime,omitempty"`
	Result      *sim.Result        `json:"result,omitempty"`
	Compressed  bool               `json:"compressed"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// StateRecord is a GlobalState with the position kept as decimal text.
type StateRecord struct {
	Position [3]string  `json:"position"`
	Momentum [3]float64 `json:"momentum"`
}

func NewStateRecord(g lab.GlobalState) StateRecord {
	return StateRecord{
		Position: g.Position.Strings(),
		Momentum: [3]float64{g.Momentum.X, g.Momentum.Y, g.Momentum.Z},
	}
}

// Create makes a run directory and opens its trajectory files. The caller
// must call Finish.
func (s *Store) Create(label string, meta RunMetadata) (*Run, error) {
	label = filepath.Base(label)
	if label == "" || label == "." || label == ".." || label == string(filepath.Separator) {
		label = "run"
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	now := time.Now()
	id := fmt.Sprintf("%s_%d", label, now.UnixNano())
	dir := filepath.Join(s.baseDir, id)
	for n := 1; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, err
		}
		id = fmt.Sprintf("%s_%d_%d", label, now.UnixNano(), n)
		dir = filepath.Join(s.baseDir, id)
	}

	meta.ID = id
	meta.Label = label
	meta.Timestamp = now
	meta.Status = StatusRunning
	meta.Compressed = s.compress

	r := &Run{dir: dir, meta: meta}
	if err := r.open(s.compress); err != nil {
		r.close()
		return nil, err
	}
	if err := writeMetadata(dir, &r.meta); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

func writeMetadata(dir string, meta *RunMetadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns all readable runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if runID != filepath.Base(runID) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
