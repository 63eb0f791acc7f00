package sync

import (
	"context"
	"fmt"

	"github.com/iudanet/shoetrack/internal/client/storage"
	"github.com/iudanet/shoetrack/internal/models"
)

// PullResult итог наполнения кэша с сервера
type PullResult struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"` // есть локальные неотправленные изменения
	Evicted   int `json:"evicted"` // удалены на сервере
}

// Pull обновляет чистые записи серверными версиями. Грязные записи не трогает:
// их судьбу решит очередь. Чистые записи, которые уже были синхронизированы,
// но пропали с сервера, удаляются локально.
func (s *service) Pull(ctx context.Context) (*PullResult, error) {
	s.exclusive.Lock()
	defer s.exclusive.Unlock()

	pending, err := s.deps.Queue.PendingKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}

	result := &PullResult{}
	for _, t := range models.EntityTypes {
		if err := s.pullType(ctx, t, pending, result); err != nil {
			return result, err
		}
	}

	if err := s.deps.Metadata.SaveTime(ctx, storage.MetaLastPull, s.now()); err != nil {
		s.logger.Warn("Failed to save last pull time", "error", err)
	}

	s.logger.Info("Pull finished",
		"updated", result.Updated, "unchanged", result.Unchanged,
		"skipped", result.Skipped, "evicted", result.Evicted)
	return result, nil
}

func (s *service) pullType(ctx context.Context, t models.EntityType, pending map[string]struct{}, result *PullResult) error {
	remote, err := s.deps.Remote.List(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to list remote %s records: %w", t, err)
	}

	local, err := s.deps.Store.List(ctx, t)
	if err != nil {
		return err
	}
	localByID := make(map[string]*models.Record, len(local))
	for _, rec := range local {
		localByID[rec.ID] = rec
	}

	seen := make(map[string]bool, len(remote))
	for _, rr := range remote {
		seen[rr.ID] = true

		if _, dirty := pending[models.EntityKey(t, rr.ID)]; dirty {
			result.Skipped++
			continue
		}
		if lr, ok := localByID[rr.ID]; ok && lr.RemoteVersion == rr.Version && lr.LastSyncedAt != nil {
			result.Unchanged++
			continue
		}
		if err := s.deps.Store.ApplyRemote(ctx, t, rr.ID, rr.Payload, rr.Version, s.now()); err != nil {
			return err
		}
		result.Updated++
	}

	for _, lr := range local {
		if seen[lr.ID] || lr.IsDirty || lr.LastSyncedAt == nil {
			continue
		}
		if err := s.deps.Store.Delete(ctx, t, lr.ID, false); err != nil {
			return err
		}
		result.Evicted++
	}
	return nil
}
