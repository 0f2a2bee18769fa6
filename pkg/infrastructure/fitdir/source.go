// Package fitdir implements shared.Source over a local directory of FIT
// files, the import path for device dumps and bulk exports.
package fitdir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	shared "github.com/pulseline/pulseline-server/pkg"
	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

type Source struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{dir: dir, logger: logger}
}

func (s *Source) Name() string {
	return shared.SourceFitFile
}

// FetchActivities reads every .fit file in the directory. The file name is
// the external id, so re-running a sync over the same directory is a no-op.
// An unparseable file is returned with no records rather than dropped; the
// orchestrator counts it as failed and the summary stays honest.
func (s *Source) FetchActivities(ctx context.Context, athleteID string) ([]shared.RawActivity, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fit directory: %w", err)
	}

	var raws []shared.RawActivity
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".fit") {
			continue
		}

		raw := shared.RawActivity{ExternalID: entry.Name()}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("FIT file unreadable", "file", entry.Name(), "error", err)
			raws = append(raws, raw)
			continue
		}
		fa, err := stream.ParseFitFile(data)
		if err != nil {
			s.logger.Warn("FIT file unparseable", "file", entry.Name(), "error", err)
			raws = append(raws, raw)
			continue
		}
		raw.Type = fa.Sport
		raw.Records = fa.Records
		raws = append(raws, raw)
	}
	return raws, nil
}
