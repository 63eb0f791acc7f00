// Package dashboard собирает сводку по кроссовкам и пробежкам из локального кэша.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"github.com/iudanet/shoetrack/internal/models"
)

const (
	// WornThreshold доля ресурса, после которой кроссовки пора менять
	WornThreshold = 90.0
	// RecentRuns окно скользящего среднего дистанции
	RecentRuns = 10
)

// Source источник данных для сводки
type Source interface {
	ListShoes(ctx context.Context, collectionID string, includeRetired bool) ([]*models.Shoe, error)
	ListRuns(ctx context.Context, shoeID string) ([]*models.Run, error)
}

// ShoeWear износ одной пары
type ShoeWear struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Mileage     float64 `json:"mileage"`
	MaxMileage  float64 `json:"max_mileage"`
	WearPercent float64 `json:"wear_percent"`
}

// Dashboard сводка
type Dashboard struct {
	GeneratedAt       time.Time                  `json:"generated_at"`
	DistanceByType    map[models.RunType]float64 `json:"distance_by_type"`
	Shoes             []ShoeWear                 `json:"shoes"`
	WornOut           []ShoeWear                 `json:"worn_out"`
	ActiveShoes       int                        `json:"active_shoes"`
	RetiredShoes      int                        `json:"retired_shoes"`
	TotalRuns         int                        `json:"total_runs"`
	RunsLast7Days     int                        `json:"runs_last_7_days"`
	RunsLast30Days    int                        `json:"runs_last_30_days"`
	TotalDistance     float64                    `json:"total_distance"`
	DistanceLast7Days float64                    `json:"distance_last_7_days"`
	AvgRecentDistance float64                    `json:"avg_recent_distance"` // по последним RecentRuns пробежкам
}

// Builder строит сводку
type Builder struct {
	source Source
	now    func() time.Time
}

// NewBuilder создает построитель сводки
func NewBuilder(source Source) *Builder {
	return &Builder{source: source, now: time.Now}
}

// Build считает сводку на текущий момент
func (b *Builder) Build(ctx context.Context) (*Dashboard, error) {
	shoes, err := b.source.ListShoes(ctx, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to list shoes: %w", err)
	}
	runs, err := b.source.ListRuns(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	now := b.now()
	d := &Dashboard{
		GeneratedAt:    now,
		DistanceByType: make(map[models.RunType]float64),
		Shoes:          []ShoeWear{},
		WornOut:        []ShoeWear{},
	}

	for _, s := range shoes {
		if s.Retired {
			d.RetiredShoes++
			continue
		}
		d.ActiveShoes++
		w := ShoeWear{
			ID:          s.ID,
			Name:        s.Name,
			Brand:       s.Brand,
			Mileage:     s.CurrentMileage,
			MaxMileage:  s.MaxMileage,
			WearPercent: s.WearPercent(),
		}
		d.Shoes = append(d.Shoes, w)
		if w.WearPercent >= WornThreshold {
			d.WornOut = append(d.WornOut, w)
		}
	}
	sort.Slice(d.Shoes, func(i, j int) bool { return d.Shoes[i].WearPercent > d.Shoes[j].WearPercent })
	sort.Slice(d.WornOut, func(i, j int) bool { return d.WornOut[i].WearPercent > d.WornOut[j].WearPercent })

	// новые первыми: в окно среднего попадают последние пробежки
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Date.After(runs[j].Date) })
	recent := movingaverage.New(RecentRuns)
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, 0, -30)
	for i, r := range runs {
		d.TotalRuns++
		d.TotalDistance += r.Distance
		d.DistanceByType[r.RunType] += r.Distance
		if r.Date.After(week) {
			d.RunsLast7Days++
			d.DistanceLast7Days += r.Distance
		}
		if r.Date.After(month) {
			d.RunsLast30Days++
		}
		if i < RecentRuns {
			recent.Add(r.Distance)
		}
	}
	if len(runs) > 0 {
		d.AvgRecentDistance = recent.Avg()
	}

	return d, nil
}
