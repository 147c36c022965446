package store

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"set-tools/models"
	"time"
)

func (s *Store) EnsureProject(ctx context.Context, projectPath string) (*models.Project, error) {
	project := models.Project{Path: projectPath}

	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.FirstOrCreate(&project, models.Project{Path: projectPath}).Error
	})

	if err != nil {
		return nil, err
	}

	return &project, nil
}

func (s *Store) GetProject(ctx context.Context, projectPath string) (*models.Project, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var project models.Project
	result := db.Where("path = ?", projectPath).First(&project)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &project, nil
}

func (s *Store) MarkSynced(ctx context.Context, projectPath string, at time.Time) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Project{}).Where("path = ?", projectPath).Update("last_synced_at", at)

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrProjectNotFound
		}

		return nil
	})
}

type CategoryCount struct {
	Category models.Category
	Count    int64
}

func (s *Store) CategoryCounts(ctx context.Context, projectPath string) ([]CategoryCount, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var counts []CategoryCount
	result := db.Raw(QueryCategoryCounts(), projectPath).Scan(&counts)

	return counts, result.Error
}
