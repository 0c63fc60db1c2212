package sqlite

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
)

type paragraphRepository struct {
	db sqlx.ExtContext
}

// NewParagraphRepository creates a new ParagraphRepository implementation
func NewParagraphRepository(db sqlx.ExtContext) repository.ParagraphRepository {
	return &paragraphRepository{db: db}
}

var paragraphColumns = []string{"id", "title", "content", "difficulty", "topic", "language", "source", "created_at"}

func (r *paragraphRepository) Get(ctx context.Context, id int64) (*models.Paragraph, error) {
	log := logger.FromContext(ctx).WithPrefix("paragraph_repo")

	var p models.Paragraph
	found, err := getOne(ctx, r.db, &p, sqlBuilder.Select(paragraphColumns...).From("paragraphs").Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to get paragraph %d: %v", id, err)
		return nil, err
	}
	if !found {
		log.Debug("paragraph not found: id=%d", id)
		return nil, nil
	}
	return &p, nil
}

func (r *paragraphRepository) Insert(ctx context.Context, p models.Paragraph) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("paragraph_repo")
	log.Debug("inserting paragraph: title=%q difficulty=%s source=%s", p.Title, p.Difficulty, p.Source)

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Language == "" {
		p.Language = models.DefaultLanguage
	}
	if p.Source == "" {
		p.Source = models.SourceSeed
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("paragraphs").
		Columns("title", "content", "difficulty", "topic", "language", "source", "created_at").
		Values(p.Title, p.Content, p.Difficulty, p.Topic, p.Language, p.Source, p.CreatedAt))
	if err != nil {
		log.Error("failed to insert paragraph: %v", err)
		return 0, err
	}
	log.Debug("paragraph inserted: id=%d", id)
	return id, nil
}

func (r *paragraphRepository) ListSeed(ctx context.Context, bucket string) ([]models.Paragraph, error) {
	log := logger.FromContext(ctx).WithPrefix("paragraph_repo")

	query := sqlBuilder.Select(paragraphColumns...).From("paragraphs").
		Where(squirrel.Eq{"source": models.SourceSeed}).
		OrderBy("id ASC")
	if bucket != "" {
		query = query.Where(squirrel.Eq{"difficulty": bucket})
	}

	var out []models.Paragraph
	if err := selectAll(ctx, r.db, &out, query); err != nil {
		log.Error("failed to list seed paragraphs: %v", err)
		return nil, err
	}
	log.Debug("found %d seed paragraphs (bucket=%q)", len(out), bucket)
	return out, nil
}

func (r *paragraphRepository) CountSeed(ctx context.Context) (int, error) {
	var n int
	if _, err := getOne(ctx, r.db, &n, sqlBuilder.Select("COUNT(*)").From("paragraphs").
		Where(squirrel.Eq{"source": models.SourceSeed})); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *paragraphRepository) ExistsSeedTitle(ctx context.Context, title string) (bool, error) {
	var n int
	if _, err := getOne(ctx, r.db, &n, sqlBuilder.Select("COUNT(*)").From("paragraphs").
		Where(squirrel.Eq{"source": models.SourceSeed, "title": title})); err != nil {
		return false, err
	}
	return n > 0, nil
}
