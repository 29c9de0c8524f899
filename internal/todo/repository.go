package todo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository はTODOの永続化を担います。すべての操作は所有者で絞り込まれます。
type Repository interface {
	Create(ctx context.Context, t *Todo) error
	GetByID(ctx context.Context, id, ownerID uint) (*Todo, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]Todo, error)
	Update(ctx context.Context, t *Todo) error
	Delete(ctx context.Context, id, ownerID uint) error
	CountCompleted(ctx context.Context, ownerID uint) (int64, error)
	DeleteCompleted(ctx context.Context, ownerID uint) (int64, error)
}

type gormRepo struct {
	db *gorm.DB
}

// NewRepository は gorm を使ったリポジトリを返します。
func NewRepository(db *gorm.DB) Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(ctx context.Context, t *Todo) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormRepo) GetByID(ctx context.Context, id, ownerID uint) (*Todo, error) {
	var t Todo
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *gormRepo) ListByOwner(ctx context.Context, ownerID uint) ([]Todo, error) {
	var todos []Todo
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("complete ASC, priority DESC, id ASC").
		Find(&todos).Error
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// Update は所有者が一致する行だけを書き換えます。
func (r *gormRepo) Update(ctx context.Context, t *Todo) error {
	res := r.db.WithContext(ctx).
		Model(&Todo{}).
		Where("id = ? AND owner_id = ?", t.ID, t.OwnerID).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"priority":    t.Priority,
			"complete":    t.Complete,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepo) Delete(ctx context.Context, id, ownerID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepo) CountCompleted(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Todo{}).
		Where("owner_id = ? AND complete = ?", ownerID, true).
		Count(&n).Error
	return n, err
}

func (r *gormRepo) DeleteCompleted(ctx context.Context, ownerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND complete = ?", ownerID, true).
		Delete(&Todo{})
	return res.RowsAffected, res.Error
}
