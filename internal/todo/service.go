package todo

import (
	"context"
	"fmt"
	"strings"
)

// Service はTODOのビジネスロジックです。
type Service interface {
	List(ctx context.Context, ownerID uint) ([]Todo, error)
	Get(ctx context.Context, id, ownerID uint) (*Todo, error)
	Create(ctx context.Context, ownerID uint, in Input) (*Todo, error)
	Update(ctx context.Context, id, ownerID uint, in Input) (*Todo, error)
	Delete(ctx context.Context, id, ownerID uint) error
	ToggleComplete(ctx context.Context, id, ownerID uint) (*Todo, error)
	CountCompleted(ctx context.Context, ownerID uint) (int64, error)
	PurgeCompleted(ctx context.Context, ownerID uint) (int64, error)
}

type service struct {
	repo Repository
}

// NewService はリポジトリを使うサービスを返します。
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validateInput(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return in, newError("INVALID_INPUT", "タイトルを入力してください。", nil)
	}
	if in.Priority < MinPriority || in.Priority > MaxPriority {
		return in, newError("INVALID_INPUT",
			fmt.Sprintf("優先度は %d から %d の整数で指定してください。", MinPriority, MaxPriority), nil)
	}
	return in, nil
}

func (s *service) List(ctx context.Context, ownerID uint) ([]Todo, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Get(ctx context.Context, id, ownerID uint) (*Todo, error) {
	return s.repo.GetByID(ctx, id, ownerID)
}

func (s *service) Create(ctx context.Context, ownerID uint, in Input) (*Todo, error) {
	in, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	t := &Todo{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Complete:    false,
		OwnerID:     ownerID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return t, nil
}

func (s *service) Update(ctx context.Context, id, ownerID uint, in Input) (*Todo, error) {
	in, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	existing.Title = in.Title
	existing.Description = in.Description
	existing.Priority = in.Priority

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *service) Delete(ctx context.Context, id, ownerID uint) error {
	return s.repo.Delete(ctx, id, ownerID)
}

func (s *service) ToggleComplete(ctx context.Context, id, ownerID uint) (*Todo, error) {
	existing, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	existing.Complete = !existing.Complete
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *service) CountCompleted(ctx context.Context, ownerID uint) (int64, error) {
	return s.repo.CountCompleted(ctx, ownerID)
}

func (s *service) PurgeCompleted(ctx context.Context, ownerID uint) (int64, error) {
	n, err := s.repo.DeleteCompleted(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge completed todos: %w", err)
	}
	return n, nil
}
