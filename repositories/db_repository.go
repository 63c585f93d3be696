package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"verishield-pipeline/domain"
	"verishield-pipeline/models"
)

type PostgresDBRepository struct {
	DB        *gorm.DB
	batchSize int
}

func NewDBRepository(db *gorm.DB, batchSize int) *PostgresDBRepository {
	if batchSize <= 0 {
		batchSize = 100 // Default
	}
	return &PostgresDBRepository{
		DB:        db,
		batchSize: batchSize,
	}
}

// ListScannableUsers returns up to limit users with scanning enabled.
func (repo *PostgresDBRepository) ListScannableUsers(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	query := repo.DB.WithContext(ctx).Where("can_scan = ?", true).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list scannable users: %w", err)
	}
	return users, nil
}

// InsertThreat stores threat unless a row with the same id exists. It
// reports whether a row was written.
func (repo *PostgresDBRepository) InsertThreat(ctx context.Context, threat *models.Threat) (bool, error) {
	res := repo.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("Media").
		Create(threat)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert threat %s: %w", threat.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (repo *PostgresDBRepository) InsertThreatMedia(ctx context.Context, media []models.ThreatMedia) error {
	if len(media) == 0 {
		return nil
	}
	if err := repo.DB.WithContext(ctx).CreateInBatches(media, repo.batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert threat media: %w", err)
	}
	return nil
}

func (repo *PostgresDBRepository) FindThreat(ctx context.Context, id string) (*models.Threat, error) {
	var threat models.Threat
	err := repo.DB.WithContext(ctx).Where("id = ?", id).First(&threat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrThreatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load threat %s: %w", id, err)
	}
	return &threat, nil
}

func (repo *PostgresDBRepository) InsertThreatResponses(ctx context.Context, responses []models.ThreatResponse) error {
	if len(responses) == 0 {
		return nil
	}
	if err := repo.DB.WithContext(ctx).CreateInBatches(responses, repo.batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert threat responses: %w", err)
	}
	return nil
}
