package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/elo-arena/models"
	"github.com/Dosada05/elo-arena/storage"
)

// ArchiveResult describes an uploaded rankings export.
type ArchiveResult struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	ETag    string `json:"etag,omitempty"`
	Entries int    `json:"entries"`
}

type ExportService interface {
	ExportRankings(ctx context.Context, ownerID, projectID string) ([]models.ExportEntry, error)
	ArchiveRankings(ctx context.Context, ownerID, projectID string) (*ArchiveResult, error)
	DeleteArchive(ctx context.Context, ownerID, projectID, name string) error
}

type exportService struct {
	store    ProjectStore
	uploader storage.FileUploader
	metrics  *Metrics
	logger   *slog.Logger
}

// NewExportService builds the export service. uploader may be nil, in which case
// ArchiveRankings fails with ErrArchiveDisabled.
func NewExportService(store ProjectStore, uploader storage.FileUploader, metrics *Metrics, logger *slog.Logger) ExportService {
	return &exportService{
		store:    store,
		uploader: uploader,
		metrics:  metrics,
		logger:   orDefaultLogger(logger),
	}
}

// ExportRankings returns {name, rating, wins, losses} for every item, highest rating first.
func (s *exportService) ExportRankings(ctx context.Context, ownerID, projectID string) ([]models.ExportEntry, error) {
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	return exportEntries(p), nil
}

func (s *exportService) ArchiveRankings(ctx context.Context, ownerID, projectID string) (*ArchiveResult, error) {
	if s.uploader == nil {
		return nil, ErrArchiveDisabled
	}
	p, err := readOwned(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	entries := exportEntries(p)

	body, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode rankings export: %w", err)
	}

	key := storage.ExportKey(projectID, utcNow())
	uploaded, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		s.logger.Error("rankings archive failed", slog.String("project_id", projectID), slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	s.metrics.archived()
	s.logger.Info("rankings archived", slog.String("project_id", projectID), slog.String("key", uploaded.Key))
	return &ArchiveResult{
		Key:     uploaded.Key,
		Name:    storage.ArchiveName(uploaded.Key),
		URL:     uploaded.Location,
		ETag:    uploaded.ETag,
		Entries: len(entries),
	}, nil
}

// DeleteArchive removes an archived export of the project. name is the Name of an
// ArchiveResult; keys of other projects cannot be addressed.
func (s *exportService) DeleteArchive(ctx context.Context, ownerID, projectID, name string) error {
	if s.uploader == nil {
		return ErrArchiveDisabled
	}
	if _, err := readOwned(ctx, s.store, ownerID, projectID); err != nil {
		return err
	}
	key, err := storage.ExportKeyForName(projectID, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if err := s.uploader.Delete(ctx, key); err != nil {
		s.logger.Error("archive delete failed", slog.String("project_id", projectID), slog.String("key", key), slog.Any("error", err))
		return err
	}
	s.logger.Info("rankings archive deleted", slog.String("project_id", projectID), slog.String("key", key))
	return nil
}

func exportEntries(p *models.Project) []models.ExportEntry {
	ranked := rankItems(p)
	entries := make([]models.ExportEntry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, models.ExportEntry{
			Name:   r.Name,
			Rating: r.Rating,
			Wins:   r.Wins,
			Losses: r.Losses,
		})
	}
	return entries
}
