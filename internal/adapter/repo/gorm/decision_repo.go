package gormrepo

import (
	"context"
	"fmt"
	"strconv"

	"npcgateway/internal/adapter/repo/gorm/model"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DecisionRepo struct {
	db *gorm.DB
}

func NewDecisionRepo(db *gorm.DB) DecisionRepo {
	return DecisionRepo{db: db}
}

func (r DecisionRepo) Append(ctx context.Context, record ports.DecisionRecord) (string, error) {
	content := string(record.Content)
	if content == "" {
		content = "null"
	}
	row := model.DecisionRecord{
		RequesterID:   record.RequesterID,
		RequesterName: record.RequesterName,
		DecidedAt:     record.Timestamp.UTC(),
		SceneReport:   record.SceneReport,
		Status:        string(record.Status),
		Content:       content,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("insert decision record: %w", err)
	}
	return strconv.FormatInt(row.ID, 10), nil
}

func (r DecisionRepo) QueryRecent(ctx context.Context, limit int) ([]ports.DecisionRecord, error) {
	rows := []model.DecisionRecord{}
	query := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "decided_at"}, Desc: true},
				{Column: clause.Column{Name: "id"}, Desc: true},
			},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query decision records: %v", ports.ErrUnavailable, err)
	}

	out := make([]ports.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.DecisionRecord{
			ID:            strconv.FormatInt(row.ID, 10),
			RequesterID:   row.RequesterID,
			RequesterName: row.RequesterName,
			Timestamp:     row.DecidedAt.UTC(),
			SceneReport:   row.SceneReport,
			Status:        decision.Status(row.Status),
			Content:       []byte(row.Content),
		})
	}
	return out, nil
}
