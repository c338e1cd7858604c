package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/trial"
)

// CSVOpener writes <Dir>/<Prefix>_<participant>_<condition>.csv files.
type CSVOpener struct {
	Dir    string
	Prefix string
	Log    *log.Logger // nil means the "csv" logger current at Open
}

// NewCSVOpener creates the data directory when missing.
// An unwritable directory is reported here, before any trial runs.
func NewCSVOpener(dir, prefix string) (*CSVOpener, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".libet-*")
	if err != nil {
		return nil, fmt.Errorf("data directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &CSVOpener{Dir: dir, Prefix: prefix}, nil
}

// Path returns the file name used for a block.
func (o *CSVOpener) Path(participant, condition string) string {
	name := fmt.Sprintf("%s_%s_%s.csv", o.Prefix, participant, condition)
	return filepath.Join(o.Dir, name)
}

// Open opens the file for appending. The header is written only
// when the file is new or empty.
func (o *CSVOpener) Open(participant, condition string) (Sink, error) {
	path := o.Path(participant, condition)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	lg := o.Log
	if lg == nil {
		lg = logger.New("csv")
	}
	s := &CSV{file: f, w: csv.NewWriter(f), log: lg}
	if info.Size() == 0 {
		if err := s.writeRow(Columns); err != nil {
			f.Close()
			return nil, err
		}
	}
	s.log.Debug("opened", "path", path)
	return s, nil
}

// CSV appends one row per record and flushes it at once, so an
// interrupted session keeps every confirmed trial.
type CSV struct {
	file *os.File
	w    *csv.Writer
	log  *log.Logger
}

func (s *CSV) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file.Name(), err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file.Name(), err)
	}
	return nil
}

func (s *CSV) Write(rec trial.Record) error {
	return s.writeRow(Row(rec))
}

func (s *CSV) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
