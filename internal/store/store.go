// Package store persists import sessions, imported product snapshots and
// shop credentials.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"productimport/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session *models.ImportSession) error {
	if session.Status == "" {
		session.Status = models.SessionStatusRunning
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create import session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.ImportSession, error) {
	var session models.ImportSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "import session")
	}
	return &session, nil
}

// SetSessionTotal records how many products the run will process.
func (s *Store) SetSessionTotal(ctx context.Context, id string, total int) error {
	res := s.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", id).
		Update("total_products", total)
	if res.Error != nil {
		return fmt.Errorf("failed to set session total: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress writes the running counters. A write carrying lower counts
// than what is stored, or targeting a completed session, is ignored so
// readers never see progress go backwards.
func (s *Store) UpdateProgress(ctx context.Context, id string, status models.SessionStatus, imported, failed int) error {
	res := s.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ? AND imported_products <= ? AND failed_products <= ? AND status <> ?",
			id, imported, failed, models.SessionStatusCompleted).
		Updates(map[string]interface{}{
			"status":            status,
			"imported_products": imported,
			"failed_products":   failed,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update session progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

// CompleteSession finalizes a session once. Later calls are no-ops.
func (s *Store) CompleteSession(ctx context.Context, id string, imported, failed int, lastError *string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ? AND status <> ?", id, models.SessionStatusCompleted).
		Updates(map[string]interface{}{
			"status":            models.SessionStatusCompleted,
			"imported_products": gorm.Expr("CASE WHEN imported_products > ? THEN imported_products ELSE ? END", imported, imported),
			"failed_products":   gorm.Expr("CASE WHEN failed_products > ? THEN failed_products ELSE ? END", failed, failed),
			"last_error":        lastError,
			"completed_at":      at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, shop string, page, limit int) ([]models.ImportSession, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ImportSession{}).Where("shop = ?", shop)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count import sessions: %w", err)
	}

	var sessions []models.ImportSession
	if err := query.Order("created_at DESC").Offset(offset(page, limit)).Limit(limit).Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list import sessions: %w", err)
	}
	return sessions, total, nil
}

// FindImportedBySKU returns ErrNotFound for a blank SKU.
func (s *Store) FindImportedBySKU(ctx context.Context, shop, sku string) (*models.ImportedProduct, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, ErrNotFound
	}
	return s.findImported(ctx, "shop = ? AND sku = ?", shop, sku)
}

func (s *Store) FindImportedByTitle(ctx context.Context, shop, title string) (*models.ImportedProduct, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrNotFound
	}
	return s.findImported(ctx, "shop = ? AND title = ?", shop, title)
}

func (s *Store) findImported(ctx context.Context, query string, args ...interface{}) (*models.ImportedProduct, error) {
	var p models.ImportedProduct
	if err := s.db.WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&p).Error; err != nil {
		return nil, notFound(err, "imported product")
	}
	return &p, nil
}

func (s *Store) CreateImported(ctx context.Context, p *models.ImportedProduct) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to save imported product: %w", err)
	}
	return nil
}

// LatestImportedTitle is the title of the most recent record written by
// the session, or "" when there is none yet.
func (s *Store) LatestImportedTitle(ctx context.Context, sessionID string) (string, error) {
	var p models.ImportedProduct
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load latest imported product: %w", err)
	}
	return p.Title, nil
}

func (s *Store) ListImported(ctx context.Context, shop, search string, page, limit int) ([]models.ImportedProduct, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ImportedProduct{}).Where("shop = ?", shop)
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count imported products: %w", err)
	}

	var products []models.ImportedProduct
	if err := query.Order("created_at DESC").Offset(offset(page, limit)).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list imported products: %w", err)
	}
	return products, total, nil
}

func (s *Store) GetImported(ctx context.Context, shop, id string) (*models.ImportedProduct, error) {
	return s.findImported(ctx, "shop = ? AND id = ?", shop, id)
}

// SaveShopConnection inserts the shop's credentials or refreshes them.
func (s *Store) SaveShopConnection(ctx context.Context, conn *models.ShopConnection) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "scope", "updated_at"}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("failed to save shop connection: %w", err)
	}
	return nil
}

func (s *Store) GetShopConnection(ctx context.Context, shop string) (*models.ShopConnection, error) {
	var conn models.ShopConnection
	if err := s.db.WithContext(ctx).First(&conn, "shop = ?", shop).Error; err != nil {
		return nil, notFound(err, "shop connection")
	}
	return &conn, nil
}

func (s *Store) TouchShopConnection(ctx context.Context, shop string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.ShopConnection{}).
		Where("shop = ?", shop).
		Update("last_import_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update shop connection: %w", err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ImportSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load import session: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
