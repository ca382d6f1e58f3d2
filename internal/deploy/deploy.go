// Package deploy validates zip archives and hands them to the hosting
// provider, either as a commit to an existing app or as a new upload.
package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
)

const (
	KindCommit = "commit"
	KindUpload = "upload"
)

// Service sends archives to the provider after local checks.
type Service struct {
	client  hosting.Client
	maxSize int64
	log     logger.Logger
}

// NewService creates a Service rejecting archives above maxSize bytes.
func NewService(client hosting.Client, maxSize int64, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Service{client: client, maxSize: maxSize, log: log.WithField("component", "deploy")}
}

// MaxSize is the largest accepted archive in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// Precheck rejects an attachment by name and declared size, before it is
// downloaded.
func (s *Service) Precheck(name string, size int64) error {
	if !strings.EqualFold(path.Ext(name), ".zip") {
		return apperrors.NewValidationError(fmt.Sprintf("Only .zip files are accepted, got %q.", name))
	}
	if size <= 0 {
		return apperrors.NewValidationError("The archive is empty.")
	}
	if s.maxSize > 0 && size > s.maxSize {
		return apperrors.NewValidationError(fmt.Sprintf("The archive is %s, the limit is %s.", humanBytes(size), humanBytes(s.maxSize)))
	}
	return nil
}

// Validate checks a downloaded archive: name, size and that it is a zip
// with at least one file.
func (s *Service) Validate(a hosting.Archive) error {
	if err := s.Precheck(a.Name, int64(len(a.Data))); err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s is not a valid zip archive.", a.Name))
	}
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			return nil
		}
	}
	return apperrors.NewValidationError(fmt.Sprintf("%s has no files in it.", a.Name))
}

// Commit replaces the files of appID with the archive contents.
func (s *Service) Commit(ctx context.Context, appID string, a hosting.Archive) (*hosting.ActionResult, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, apperrors.NewValidationError("An application ID is required.")
	}
	if err := s.Validate(a); err != nil {
		metrics.RecordDeploy(KindCommit, metrics.OutcomeRejected, int64(len(a.Data)))
		return nil, err
	}

	res, err := s.client.CommitFiles(ctx, appID, a)
	if err != nil {
		metrics.RecordDeploy(KindCommit, metrics.OutcomeFailure, int64(len(a.Data)))
		s.log.WithError(err).WithField("app_id", appID).Warn("Commit failed")
		return nil, apperrors.WrapRemoteFailure(err, "Commit")
	}
	metrics.RecordDeploy(KindCommit, metrics.OutcomeSuccess, int64(len(a.Data)))
	s.log.WithFields(map[string]interface{}{"app_id": appID, "bytes": len(a.Data)}).Info("Commit sent")
	return res, nil
}

// Upload creates a new application from the archive.
func (s *Service) Upload(ctx context.Context, a hosting.Archive) (*hosting.ActionResult, error) {
	if err := s.Validate(a); err != nil {
		metrics.RecordDeploy(KindUpload, metrics.OutcomeRejected, int64(len(a.Data)))
		return nil, err
	}

	res, err := s.client.UploadApplication(ctx, a)
	if err != nil {
		metrics.RecordDeploy(KindUpload, metrics.OutcomeFailure, int64(len(a.Data)))
		s.log.WithError(err).Warn("Upload failed")
		return nil, apperrors.WrapRemoteFailure(err, "Upload")
	}
	metrics.RecordDeploy(KindUpload, metrics.OutcomeSuccess, int64(len(a.Data)))
	s.log.WithField("bytes", len(a.Data)).Info("Upload sent")
	return res, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
