package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"noiserelay/internal/models"
)

const (
	filePrefix = "audio-"

	DefaultSweepInterval = 10 * time.Minute
	DefaultMaxAge        = time.Hour
)

// Stager writes uploaded bytes to request-scoped files, because the model
// upload API takes a path rather than a buffer.
type Stager struct {
	dir    string
	suffix string
	log    zerolog.Logger
}

// New prepares dir (a subdirectory of the OS temp dir when empty).
func New(dir, suffix string, log zerolog.Logger) (*Stager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "noiserelay")
	}
	if suffix == "" {
		suffix = ".wav"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{
		dir:    dir,
		suffix: suffix,
		log:    log.With().Str("component", "staging").Logger(),
	}, nil
}

func (s *Stager) Dir() string {
	return s.dir
}

// Stage writes data to a new file. Callers must Release the result.
func (s *Stager) Stage(data []byte) (*models.StagedFile, error) {
	f, err := os.CreateTemp(s.dir, filePrefix+"*"+s.suffix)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close staged file: %w", err)
	}
	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("staged upload")
	return &models.StagedFile{Path: path, Size: int64(len(data))}, nil
}

// Release removes a staged file. Missing files are ignored.
func (s *Stager) Release(file *models.StagedFile) {
	if file == nil {
		return
	}
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", file.Path).Msg("remove staged file failed")
		return
	}
	s.log.Debug().Str("path", file.Path).Msg("released staged file")
}

// StartSweeper periodically removes staged files older than maxAge, which
// only exist if the process died mid-request.
func (s *Stager) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	go s.sweepLoop(ctx, interval, maxAge)
}

func (s *Stager) sweepLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(time.Now().Add(-maxAge)); err != nil {
				s.log.Error().Err(err).Msg("sweep staged files")
			}
		}
	}
}

// Sweep removes staged files last modified before cutoff and returns how many were removed.
func (s *Stager) Sweep(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", path).Msg("remove orphaned staged file failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept orphaned staged files")
	}
	return removed, nil
}
