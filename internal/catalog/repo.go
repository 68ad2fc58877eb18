package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrAlreadySaved marks an insert that hit the (user, item, catalog)
// uniqueness constraint.
var ErrAlreadySaved = errors.New("item already saved to catalog")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, item *Item) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if err != nil && isDuplicateErr(err) {
		return ErrAlreadySaved
	}
	return err
}

func (r *Repo) List(ctx context.Context, userID uint64, catalogName string) ([]Item, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if catalogName != "" {
		q = q.Where("catalog_name = ?", catalogName)
	}
	var items []Item
	if err := q.Order("saved_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteBulk removes the requested items owned by the user and reports which
// requested ids were not found (or not owned) without failing the batch.
func (r *Repo) DeleteBulk(ctx context.Context, userID uint64, ids []uint64) (deleted []uint64, notFound []uint64, err error) {
	var items []Item
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND user_id = ?", ids, userID).
		Find(&items).Error; err != nil {
		return nil, nil, err
	}

	found := make(map[uint64]bool, len(items))
	for _, item := range items {
		found[item.ID] = true
		deleted = append(deleted, item.ID)
	}
	for _, id := range ids {
		if !found[id] {
			notFound = append(notFound, id)
		}
	}

	if len(deleted) > 0 {
		if err := r.db.WithContext(ctx).
			Where("id IN ? AND user_id = ?", deleted, userID).
			Delete(&Item{}).Error; err != nil {
			return nil, nil, err
		}
	}
	return deleted, notFound, nil
}

// isDuplicateErr covers gorm's translated error plus the raw driver
// messages of mysql and sqlite.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}
