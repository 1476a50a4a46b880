package service

import (
	"context"
	"fmt"

	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/internal/model"
	"github.com/yeisme/carevault/pkg/internal/types"
)

const statsDepartmentsKey = "departments"

// 聚合结果行.
type deptRow struct {
	Department string `gorm:"column:department"`
	Records    int64  `gorm:"column:records"`
	Documents  int64  `gorm:"column:documents"`
}

// DepartmentStats 按科室统计病历数，结果缓存 ingest.stats_cache_ttl.
func (s *RecordService) DepartmentStats(ctx context.Context) ([]types.DepartmentCount, error) {
	if s.stats == nil || s.ingest.StatsCacheTTL <= 0 {
		return s.departmentStats(ctx)
	}

	return cache.GetOrSet(ctx, s.stats, statsDepartmentsKey, s.departmentStats, s.ingest.StatsCacheTTL)
}

func (s *RecordService) departmentStats(ctx context.Context) ([]types.DepartmentCount, error) {
	var rows []deptRow

	// SQLite/MySQL/Postgres 通用写法
	selectExpr := "department, COUNT(*) AS records, " +
		"COALESCE(SUM(CASE WHEN file_path <> '' THEN 1 ELSE 0 END),0) AS documents"

	if err := s.dbClient.WithContext(ctx).
		Model(&model.Record{}).
		Select(selectExpr).
		Group("department").
		Order("records DESC, department ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("department stats: %w", err)
	}

	out := make([]types.DepartmentCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.DepartmentCount(r))
	}

	return out, nil
}

func (s *RecordService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}

	if err := s.stats.Delete(ctx, statsDepartmentsKey); err != nil {
		l := s.log(ctx)
		l.Warn().Err(err).Msg("failed to invalidate stats cache")
	}
}
