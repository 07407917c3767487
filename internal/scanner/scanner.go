// Package scanner enumerates survey files directly from the backing storage
// roots. It is the degraded path used when the metadata index is unavailable:
// the records it produces carry only id, path, and size, are tagged partial,
// and are cached under a short dedicated TTL so index-backed results replace
// them as soon as the index recovers.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/types"
)

// Scanner walks storage roots for survey files
type Scanner struct {
	roots      []string
	extensions map[string]bool
	lister     ObjectLister
	logger     zerolog.Logger
}

// ObjectLister lists survey objects under an object-store prefix. The S3
// implementation lives in s3.go; tests inject fakes.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo is one discovered object-store entry
type ObjectInfo struct {
	Key  string
	Size int64
}

// New creates a scanner for the configured storage roots. The lister may be
// nil when no s3:// root is configured.
func New(cfg *config.StorageConfig, lister ObjectLister) *Scanner {
	if cfg == nil {
		defaults := config.NewDefault().Storage
		cfg = &defaults
	}

	extensions := make(map[string]bool)
	for _, ext := range cfg.Extensions {
		extensions[strings.ToLower(ext)] = true
	}
	if len(extensions) == 0 {
		extensions[".segy"] = true
		extensions[".sgy"] = true
		extensions[".vds"] = true
	}

	return &Scanner{
		roots:      cfg.Roots,
		extensions: extensions,
		lister:     lister,
		logger:     log.WithComponent("scanner"),
	}
}

// Enumerate walks every configured root and returns minimal partial records
// for each survey file found. Unreadable roots are logged and skipped; an
// error is returned only when no root could be enumerated at all.
func (s *Scanner) Enumerate(ctx context.Context) ([]types.SurveyRecord, error) {
	var records []types.SurveyRecord
	var firstErr error
	scanned := 0

	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		var (
			found []types.SurveyRecord
			err   error
		)
		if strings.HasPrefix(root, "s3://") {
			found, err = s.enumerateS3(ctx, root)
		} else {
			found, err = s.enumerateLocal(root)
		}

		if err != nil {
			s.logger.Warn().Str("root", root).Err(err).Msg("failed to scan storage root")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		scanned++
		records = append(records, found...)
	}

	if scanned == 0 && firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

func (s *Scanner) enumerateLocal(root string) ([]types.SurveyRecord, error) {
	var records []types.SurveyRecord

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !s.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		records = append(records, types.SurveyRecord{
			ID:        surveyID(path),
			Path:      path,
			SizeBytes: info.Size(),
			Partial:   true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Scanner) enumerateS3(ctx context.Context, root string) ([]types.SurveyRecord, error) {
	if s.lister == nil {
		s.logger.Debug().Str("root", root).Msg("no object lister configured, skipping s3 root")
		return nil, nil
	}

	bucket, prefix := splitS3Root(root)
	objects, err := s.lister.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	var records []types.SurveyRecord
	for _, obj := range objects {
		if !s.extensions[strings.ToLower(filepath.Ext(obj.Key))] {
			continue
		}
		records = append(records, types.SurveyRecord{
			ID:        surveyID(obj.Key),
			Path:      "s3://" + bucket + "/" + obj.Key,
			SizeBytes: obj.Size,
			Partial:   true,
		})
	}
	return records, nil
}

// surveyID derives the survey identifier from a file path: the base name
// without its extension, matching the id convention of the index crawler.
func surveyID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitS3Root splits "s3://bucket/prefix" into bucket and prefix.
func splitS3Root(root string) (string, string) {
	trimmed := strings.TrimPrefix(root, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
