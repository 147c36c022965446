package store

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"set-tools/models"
)

func (s *Store) GetItem(ctx context.Context, itemPath string) (*models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var item models.ProjectItem
	result := db.Where("path = ?", itemPath).First(&item)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &item, nil
}

func (s *Store) ItemsForProject(ctx context.Context, projectPath string) ([]models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var items []models.ProjectItem
	result := db.Where("project_path = ?", projectPath).Order("path").Find(&items)

	return items, result.Error
}

func (s *Store) ItemsByCategory(ctx context.Context, projectPath string, category models.Category) ([]models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var items []models.ProjectItem
	result := db.Where("project_path = ? AND category = ?", projectPath, category).Order("path").Find(&items)

	return items, result.Error
}

// ItemsByParent returns the children of a document, newest first.
func (s *Store) ItemsByParent(ctx context.Context, parentPath string, category models.Category) ([]models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var items []models.ProjectItem
	result := db.Where("parent_path = ? AND category = ?", parentPath, category).
		Order("file_modified_at DESC").
		Order("path DESC").
		Find(&items)

	return items, result.Error
}

// LatestVersion returns nil when the document has no versions of the category.
func (s *Store) LatestVersion(ctx context.Context, parentPath string, category models.Category) (*models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var items []models.ProjectItem
	result := db.Raw(QueryLatestVersionForParent(), parentPath, category).Scan(&items)

	if result.Error != nil {
		return nil, result.Error
	}

	if len(items) == 0 {
		return nil, nil
	}

	return &items[0], nil
}

func (s *Store) SubprojectsForSource(ctx context.Context, sourceDocumentName string) ([]models.ProjectItem, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var items []models.ProjectItem
	result := db.Raw(QuerySubprojectsForSource(), models.CategorySubprojectVersion, sourceDocumentName).Scan(&items)

	return items, result.Error
}

func (s *Store) CountItems(ctx context.Context, projectPath string) (int64, error) {
	db, err := s.db(ctx)

	if err != nil {
		return 0, err
	}

	var count int64
	result := db.Model(&models.ProjectItem{}).Where("project_path = ?", projectPath).Count(&count)

	return count, result.Error
}

// InsertItems validates every item before writing any of them.
func (s *Store) InsertItems(ctx context.Context, items []models.ProjectItem) error {
	if len(items) == 0 {
		return nil
	}

	for i := range items {
		err := items[i].Validate()

		if err != nil {
			return err
		}
	}

	return s.write(ctx, func(tx *gorm.DB) error {
		return tx.Omit("Tracks").Create(&items).Error
	})
}

// UpdateFingerprints stores the new modification times and marks the items
// for reparsing.
func (s *Store) UpdateFingerprints(ctx context.Context, items []models.ProjectItem) error {
	if len(items) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			result := tx.Model(&models.ProjectItem{}).Where("path = ?", item.Path).Updates(map[string]any{
				"file_modified_at": item.FileModifiedAt,
				"is_parsed":        false,
			})

			if result.Error != nil {
				return result.Error
			}
		}

		return nil
	})
}

// DeleteItems removes items and their tracks.
func (s *Store) DeleteItems(ctx context.Context, itemPaths []string) error {
	if len(itemPaths) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *gorm.DB) error {
		result := tx.Where("item_path IN ?", itemPaths).Delete(&models.Track{})

		if result.Error != nil {
			return result.Error
		}

		return tx.Where("path IN ?", itemPaths).Delete(&models.ProjectItem{}).Error
	})
}

// ClearProject removes every item of a project, leaving the project row.
func (s *Store) ClearProject(ctx context.Context, projectPath string) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		var itemPaths []string
		result := tx.Model(&models.ProjectItem{}).Where("project_path = ?", projectPath).Pluck("path", &itemPaths)

		if result.Error != nil {
			return result.Error
		}

		if len(itemPaths) > 0 {
			result = tx.Where("item_path IN ?", itemPaths).Delete(&models.Track{})

			if result.Error != nil {
				return result.Error
			}
		}

		return tx.Where("project_path = ?", projectPath).Delete(&models.ProjectItem{}).Error
	})
}

func (s *Store) SetComment(ctx context.Context, itemPath, comment string) error {
	return s.updateItem(ctx, itemPath, map[string]any{"comment": comment})
}

func (s *Store) SetAutoVersion(ctx context.Context, itemPath string, enabled bool) error {
	return s.updateItem(ctx, itemPath, map[string]any{"auto_version": enabled})
}

func (s *Store) updateItem(ctx context.Context, itemPath string, values map[string]any) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.ProjectItem{}).Where("path = ?", itemPath).Updates(values)

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}

		return nil
	})
}
