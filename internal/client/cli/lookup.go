package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/shoetrack/internal/models"
)

var (
	// ErrNoMatch ни одна сущность не подошла под ссылку
	ErrNoMatch = errors.New("no matching item")
	// ErrAmbiguous ссылка подходит к нескольким сущностям
	ErrAmbiguous = errors.New("reference is ambiguous")
)

// pick ищет сущность по полному id, префиксу id или имени без учёта регистра
func pick[T any](items []*T, ref string, id, name func(*T) string) (*T, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNoMatch
	}

	var byPrefix, byName []*T
	for _, it := range items {
		if id(it) == ref {
			return it, nil
		}
		if strings.HasPrefix(id(it), ref) {
			byPrefix = append(byPrefix, it)
		}
		if name != nil && strings.EqualFold(name(it), ref) {
			byName = append(byName, it)
		}
	}

	for _, found := range [][]*T{byPrefix, byName} {
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		default:
			return nil, fmt.Errorf("%w: %q matches %d items", ErrAmbiguous, ref, len(found))
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoMatch, ref)
}

func (a *App) findCollection(ctx context.Context, ref string) (*models.Collection, error) {
	cols, err := a.cli.Data.ListCollections(ctx, true)
	if err != nil {
		return nil, err
	}
	return pick(cols, ref,
		func(c *models.Collection) string { return c.ID },
		func(c *models.Collection) string { return c.Name })
}

func (a *App) findShoe(ctx context.Context, ref string) (*models.Shoe, error) {
	shoes, err := a.cli.Data.ListShoes(ctx, "", true)
	if err != nil {
		return nil, err
	}
	return pick(shoes, ref,
		func(s *models.Shoe) string { return s.ID },
		func(s *models.Shoe) string { return s.Name })
}

func (a *App) findRun(ctx context.Context, ref string) (*models.Run, error) {
	runs, err := a.cli.Data.ListRuns(ctx, "")
	if err != nil {
		return nil, err
	}
	return pick(runs, ref, func(r *models.Run) string { return r.ID }, nil)
}

func (a *App) findConflict(ctx context.Context, ref string) (*models.Conflict, error) {
	conflicts, err := a.cli.Conflicts.List(ctx)
	if err != nil {
		return nil, err
	}
	return pick(conflicts, ref, func(c *models.Conflict) string { return c.ID }, nil)
}
