package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"quizwiz-service/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:question_bank"`

	ID         int64           `bun:"id,pk,autoincrement"`
	Topic      string          `bun:"topic,notnull"`
	Difficulty string          `bun:"difficulty,notnull"`
	Data       domain.Question `bun:"data,type:jsonb,notnull"`
}

// SeedQuestionBank inserts questions for topic at every difficulty that has no
// rows yet. It returns the number of rows inserted.
func SeedQuestionBank(ctx context.Context, db *bun.DB, topic string, questions []domain.Question) (int, error) {
	inserted := 0
	for _, difficulty := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultySmart, domain.DifficultyMaster} {
		existing, err := db.NewSelect().
			Model((*questionRow)(nil)).
			Where("topic = ?", topic).
			Where("difficulty = ?", string(difficulty)).
			Count(ctx)
		if err != nil {
			return inserted, fmt.Errorf("count %s questions: %w", difficulty, err)
		}
		if existing > 0 || len(questions) == 0 {
			continue
		}

		rows := make([]questionRow, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, questionRow{Topic: topic, Difficulty: string(difficulty), Data: q})
		}
		if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return inserted, fmt.Errorf("seed %s questions: %w", difficulty, err)
		}
		inserted += len(rows)
	}
	return inserted, nil
}
