package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

const defaultExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	ExportFilename = "database_export.xlsx"
	archivePrefix  = "exports/"
)

// Export is a downloaded backend export. ArchiveURL is set when the file was also stored
// in the object store.
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	ArchiveURL  string `json:"archive_url,omitempty"`
}

// Export downloads the backend's database export. When an archiver is configured the file
// is also uploaded; an upload failure is logged and does not fail the export.
func (d *Dashboard) Export(ctx context.Context) (Export, error) {
	if !d.LoggedIn() {
		return Export{}, ErrNotLoggedIn
	}
	data, contentType, err := d.api.ExportDatabase(ctx)
	if err != nil {
		d.logger.Warn("error exporting database", zap.Error(err))
		return Export{}, err
	}
	if contentType == "" {
		contentType = defaultExportContentType
	}
	now := time.Now().UTC()
	out := Export{
		Filename:    ExportFilename,
		ContentType: contentType,
		Data:        data,
	}

	if d.opts.Archiver != nil {
		key := ArchiveKey(now)
		url, err := d.opts.Archiver.PutObject(ctx, key, data, contentType, "private, max-age=0")
		if err != nil {
			d.logger.Warn("error archiving export", zap.String("key", key), zap.Error(err))
		} else {
			out.ArchiveURL = url
			d.logger.Info("export archived", zap.String("key", key), zap.Int("bytes", len(data)))
			if removed, err := d.opts.Archiver.Prune(ctx, archivePrefix, d.opts.ArchiveRetain); err != nil {
				d.logger.Warn("error pruning export archive", zap.Error(err))
			} else if removed > 0 {
				d.logger.Info("old exports pruned", zap.Int("removed", removed))
			}
		}
	}
	return out, nil
}

// Archives lists archived export keys, newest first.
func (d *Dashboard) Archives(ctx context.Context) ([]string, error) {
	if !d.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	if d.opts.Archiver == nil {
		return []string{}, nil
	}
	keys, err := d.opts.Archiver.ListKeys(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// ArchiveKey places exports under a month prefix with a sortable timestamp.
func ArchiveKey(t time.Time) string {
	return fmt.Sprintf("%s%s/database_export_%s.xlsx", archivePrefix, t.Format("2006/01"), t.Format("20060102T150405Z"))
}
