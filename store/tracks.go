package store

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"set-tools/models"
)

// ApplyParse replaces all tracks of an item and marks it parsed in one
// transaction. Original names survive the replace for tracks with the same id.
func (s *Store) ApplyParse(ctx context.Context, itemPath, documentVersion string, tracks []models.Track) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		var existing []models.Track
		result := tx.Where("item_path = ?", itemPath).Find(&existing)

		if result.Error != nil {
			return result.Error
		}

		originalNames := make(map[int]string, len(existing))

		for _, track := range existing {
			originalNames[track.TrackID] = track.OriginalName
		}

		result = tx.Where("item_path = ?", itemPath).Delete(&models.Track{})

		if result.Error != nil {
			return result.Error
		}

		for i := range tracks {
			tracks[i].ID = 0
			tracks[i].ItemPath = itemPath

			originalName, found := originalNames[tracks[i].TrackID]

			if !found {
				originalName = tracks[i].Name
			}

			tracks[i].OriginalName = originalName
			tracks[i].IsModified = tracks[i].Name != originalName
		}

		if len(tracks) > 0 {
			result = tx.Create(&tracks)

			if result.Error != nil {
				return result.Error
			}
		}

		result = tx.Model(&models.ProjectItem{}).Where("path = ?", itemPath).Updates(map[string]any{
			"is_parsed":        true,
			"document_version": documentVersion,
		})

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}

		return nil
	})
}

// TracksForItem returns the tracks of an item in sibling order.
func (s *Store) TracksForItem(ctx context.Context, itemPath string) ([]models.Track, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	result := db.Where("item_path = ?", itemPath).Order("order_key").Order("track_id").Find(&tracks)

	return tracks, result.Error
}

func (s *Store) GetTrack(ctx context.Context, itemPath string, trackID int) (*models.Track, error) {
	db, err := s.db(ctx)

	if err != nil {
		return nil, err
	}

	var track models.Track
	result := db.Where("item_path = ? AND track_id = ?", itemPath, trackID).First(&track)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &track, nil
}

// SetTrackLinks stamps subproject paths onto the tracks named in links and
// returns how many tracks were updated. Other tracks are untouched.
func (s *Store) SetTrackLinks(ctx context.Context, itemPath string, links map[int]string) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}

	updated := int64(0)

	err := s.write(ctx, func(tx *gorm.DB) error {
		for trackID, subprojectPath := range links {
			result := tx.Model(&models.Track{}).
				Where("item_path = ? AND track_id = ?", itemPath, trackID).
				Update("subproject_path", subprojectPath)

			if result.Error != nil {
				return result.Error
			}

			updated += result.RowsAffected
		}

		return nil
	})

	return updated, err
}

func (s *Store) RenameTrack(ctx context.Context, itemPath string, trackID int, name string) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		var track models.Track
		result := tx.Where("item_path = ? AND track_id = ?", itemPath, trackID).First(&track)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrTrackNotFound
		}

		if result.Error != nil {
			return result.Error
		}

		return tx.Model(&track).Updates(map[string]any{
			"name":        name,
			"is_modified": name != track.OriginalName,
		}).Error
	})
}

func (s *Store) SetTrackOrderKey(ctx context.Context, itemPath string, trackID int, orderKey string) error {
	return s.write(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Track{}).
			Where("item_path = ? AND track_id = ?", itemPath, trackID).
			Update("order_key", orderKey)

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrTrackNotFound
		}

		return nil
	})
}
