package pass

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
	"mountpass/pkg/platform/tx"
)

// PostgresStore persists passes and their owned rows in PostgreSQL. Calls
// join the transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pass store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateCoords(ctx context.Context, c *models.Coords) error {
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO coords (latitude, longitude, height)
		VALUES ($1, $2, $3)
		RETURNING id`,
		c.Latitude, c.Longitude, c.Height,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create coords: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCoords(ctx context.Context, c *models.Coords) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE coords SET latitude = $2, longitude = $3, height = $4
		WHERE id = $1`,
		c.ID, c.Latitude, c.Longitude, c.Height,
	)
	if err != nil {
		return fmt.Errorf("update coords: %w", err)
	}
	return requireAffected(res, "update coords")
}

func (s *PostgresStore) CreateLevel(ctx context.Context, l *models.Level) error {
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO levels (winter, summer, autumn, spring)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		string(l.Winter), string(l.Summer), string(l.Autumn), string(l.Spring),
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLevel(ctx context.Context, l *models.Level) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE levels SET winter = $2, summer = $3, autumn = $4, spring = $5
		WHERE id = $1`,
		l.ID, string(l.Winter), string(l.Summer), string(l.Autumn), string(l.Spring),
	)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return requireAffected(res, "update level")
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Pass) error {
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO passes (beauty_title, title, other_titles, connect, status,
			add_time, update_time, submitter_id, coords_id, level_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		p.BeautyTitle, p.Title, p.OtherTitles, p.Connect, string(p.Status),
		p.AddTime, p.UpdateTime, p.SubmitterID, p.CoordsID, p.LevelID,
	).Scan(&p.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create pass: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create pass: %w", err)
	}
	return nil
}

// Update writes scalar fields and status.
func (s *PostgresStore) Update(ctx context.Context, p *models.Pass) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE passes
		SET beauty_title = $2, title = $3, other_titles = $4, connect = $5,
			status = $6, update_time = $7
		WHERE id = $1`,
		p.ID, p.BeautyTitle, p.Title, p.OtherTitles, p.Connect, string(p.Status), p.UpdateTime,
	)
	if err != nil {
		return fmt.Errorf("update pass: %w", err)
	}
	return requireAffected(res, "update pass")
}

func (s *PostgresStore) AddImage(ctx context.Context, img *models.Image) error {
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO pass_images (pass_id, title, path, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		img.PassID, img.Title, img.Path, img.ContentType, img.Size, img.CreatedAt,
	).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("add image: %w", err)
	}
	return nil
}

// RemoveImages detaches every image of the pass and returns what was removed.
func (s *PostgresStore) RemoveImages(ctx context.Context, passID int64) ([]models.Image, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		DELETE FROM pass_images WHERE pass_id = $1
		RETURNING `+imageColumns, passID)
	if err != nil {
		return nil, fmt.Errorf("remove images: %w", err)
	}
	defer rows.Close()
	removed, err := scanImages(rows)
	if err != nil {
		return nil, fmt.Errorf("remove images: %w", err)
	}
	return removed, nil
}

const passSelect = `
	SELECT p.id, p.beauty_title, p.title, p.other_titles, p.connect, p.status,
		p.add_time, p.update_time, p.submitter_id,
		c.id, c.latitude, c.longitude, c.height,
		l.id, l.winter, l.summer, l.autumn, l.spring
	FROM passes p
	JOIN coords c ON c.id = p.coords_id
	JOIN levels l ON l.id = p.level_id`

const imageColumns = `id, pass_id, title, path, content_type, size, created_at`

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Pass, error) {
	return s.find(ctx, passSelect+` WHERE p.id = $1`, id)
}

// FindByIDForUpdate locks the pass row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, id int64) (*models.Pass, error) {
	return s.find(ctx, passSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id)
}

func (s *PostgresStore) find(ctx context.Context, query string, id int64) (*models.Pass, error) {
	db := tx.Executor(ctx, s.db)
	p, err := scanPass(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find pass %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find pass: %w", err)
	}
	if err := s.attachImages(ctx, db, []*models.Pass{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListBySubmitter(ctx context.Context, submitterID int64, filter models.ListFilter) ([]*models.Pass, int, error) {
	filter = filter.Normalized()
	db := tx.Executor(ctx, s.db)

	where := []string{"p.submitter_id = $1"}
	args := []any{submitterID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM passes p`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count passes: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := passSelect + cond +
		fmt.Sprintf(" ORDER BY p.add_time DESC, p.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	passes := []*models.Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list passes: %w", err)
	}
	if err := s.attachImages(ctx, db, passes); err != nil {
		return nil, 0, err
	}
	return passes, total, nil
}

func (s *PostgresStore) attachImages(ctx context.Context, db tx.DBTX, passes []*models.Pass) error {
	if len(passes) == 0 {
		return nil
	}
	ids := make([]int64, len(passes))
	byID := make(map[int64]*models.Pass, len(passes))
	for i, p := range passes {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM pass_images WHERE pass_id = ANY($1) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	defer rows.Close()
	images, err := scanImages(rows)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	for _, img := range images {
		p := byID[img.PassID]
		p.Images = append(p.Images, img)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (*models.Pass, error) {
	var (
		p      models.Pass
		c      models.Coords
		l      models.Level
		status string
		grades [4]string
	)
	err := row.Scan(
		&p.ID, &p.BeautyTitle, &p.Title, &p.OtherTitles, &p.Connect, &status,
		&p.AddTime, &p.UpdateTime, &p.SubmitterID,
		&c.ID, &c.Latitude, &c.Longitude, &c.Height,
		&l.ID, &grades[0], &grades[1], &grades[2], &grades[3],
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.Status(status)
	l.Winter, l.Summer, l.Autumn, l.Spring = models.Grade(grades[0]), models.Grade(grades[1]), models.Grade(grades[2]), models.Grade(grades[3])
	p.CoordsID, p.Coords = c.ID, &c
	p.LevelID, p.Level = l.ID, &l
	return &p, nil
}

func scanImages(rows *sql.Rows) ([]models.Image, error) {
	var images []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.PassID, &img.Title, &img.Path, &img.ContentType, &img.Size, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
