package job

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fleetops/fleetops/internal/fleeterr"
	"github.com/fleetops/fleetops/internal/sdkmessage"
	"gopkg.in/yaml.v3"
)

// Store persists Job metadata and output under a fleet state directory,
// following the layout of spec.md §6:
//
//	<stateDir>/jobs/<id>.yaml    job metadata, one file per job
//	<stateDir>/jobs/<id>.jsonl   append-only sdk message log
//
// This follows a file-per-entity pattern (metadata plus an append-only
// sequence of lines) rather than a database, since the fleet state dir
// is the system of record here.
type Store struct {
	stateDir string
}

// NewStore returns a Store rooted at stateDir. EnsureDirs must be called
// before first use.
func NewStore(stateDir string) *Store {
	return &Store{stateDir: stateDir}
}

// EnsureDirs creates the jobs/ and sessions/ subdirectories if absent.
func (s *Store) EnsureDirs() error {
	for _, sub := range []string{"jobs", "sessions"} {
		if err := os.MkdirAll(filepath.Join(s.stateDir, sub), 0o755); err != nil {
			return &fleeterr.StateDirError{StateDir: s.stateDir, Cause: err}
		}
	}
	return nil
}

// StateDir returns the root directory this store persists under.
func (s *Store) StateDir() string {
	return s.stateDir
}

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.stateDir, "jobs", id+".yaml")
}

func (s *Store) outputPath(id string) string {
	return filepath.Join(s.stateDir, "jobs", id+".jsonl")
}

// Exists reports whether metadata for id is already present, used by
// GenerateID to detect collisions.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.metadataPath(id))
	return err == nil
}

// SaveMetadata writes job's metadata file, overwriting any prior content.
func (s *Store) SaveMetadata(j *Job) error {
	data, err := yaml.Marshal(j)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metadataPath(j.ID), data, 0o644)
}

// LoadMetadata reads and parses a job's metadata file.
func (s *Store) LoadMetadata(id string) (*Job, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fleeterr.JobNotFoundError{JobID: id, Cause: err}
		}
		return nil, err
	}
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// AppendOutput appends one sdk message line to the job's output log,
// preserving the original wire bytes when available (msg.Raw) so replay
// is byte-identical to what was received.
func (s *Store) AppendOutput(id string, msg sdkmessage.Message) error {
	f, err := os.OpenFile(s.outputPath(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data := msg.Raw
	if len(data) == 0 {
		data, err = json.Marshal(msg)
		if err != nil {
			return err
		}
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// ReadOutput reads and parses every line of a job's output log. Lines
// that fail to parse are skipped with a warning, per spec.md §4.4/§6.
func (s *Store) ReadOutput(id string) ([]sdkmessage.Message, error) {
	f, err := os.Open(s.outputPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []sdkmessage.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg, err := sdkmessage.Parse([]byte(line))
		if err != nil {
			slog.Warn("job: skipping malformed output line", "job_id", id, "error", err)
			continue
		}
		out = append(out, msg)
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ListJobIDs returns every job id with a persisted metadata file, sorted
// lexically by id.
func (s *Store) ListJobIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.stateDir, "jobs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			ids = append(ids, strings.TrimSuffix(name, ".yaml"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteJob removes both the metadata and output files for id. Missing
// files are not an error.
func (s *Store) DeleteJob(id string) error {
	if err := os.Remove(s.metadataPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.outputPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
