package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

// CourseRepository reads the course -> section -> unit hierarchy. The create
// methods exist for seeding; authoring content is not part of the engine.
type CourseRepository struct {
	queue *DBQueue
}

func NewCourseRepository(queue *DBQueue) *CourseRepository {
	return &CourseRepository{queue: queue}
}

func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		if course.CreatedAt.IsZero() {
			course.CreatedAt = time.Now().UTC()
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO courses (id, title, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title
		`, course.ID, course.Title, course.CreatedAt)
		if err != nil {
			return nil, apperr.Persistence("courses.save", errors.Wrap(err, "saving course"))
		}
		return nil, nil
	})
	return err
}

func (r *CourseRepository) CreateSection(ctx context.Context, section *models.Section, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sections (id, course_id, title, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				course_id = excluded.course_id,
				title = excluded.title,
				position = excluded.position
		`, section.ID, section.CourseID, section.Title, section.Position)
		if err != nil {
			return nil, apperr.Persistence("sections.save", errors.Wrap(err, "saving section"))
		}
		return nil, nil
	})
	return err
}

// SaveUnit inserts a unit or moves it to another section.
func (r *CourseRepository) SaveUnit(ctx context.Context, unit *models.Unit, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO units (id, section_id, title, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				section_id = excluded.section_id,
				title = excluded.title,
				position = excluded.position
		`, unit.ID, unit.SectionID, unit.Title, unit.Position)
		if err != nil {
			return nil, apperr.Persistence("units.save", errors.Wrap(err, "saving unit"))
		}
		return nil, nil
	})
	return err
}

// GetCourse returns nil, nil when the course does not exist.
func (r *CourseRepository) GetCourse(ctx context.Context, id string, exec ...DBExecutor) (*models.Course, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var c models.Course
		var createdAt sql.NullTime
		err := db.QueryRowContext(ctx, `SELECT id, title, created_at FROM courses WHERE id = ?`, id).
			Scan(&c.ID, &c.Title, &createdAt)
		if err == sql.ErrNoRows {
			return (*models.Course)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("courses.get", errors.Wrap(err, "reading course"))
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		return &c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Course), nil
}

// GetUnit resolves the unit together with its course. Returns nil, nil when
// the unit does not exist.
func (r *CourseRepository) GetUnit(ctx context.Context, id string, exec ...DBExecutor) (*models.Unit, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var u models.Unit
		var courseID sql.NullString
		err := db.QueryRowContext(ctx, `
			SELECT u.id, u.section_id, s.course_id, u.title, u.position
			FROM units u LEFT JOIN sections s ON s.id = u.section_id
			WHERE u.id = ?
		`, id).Scan(&u.ID, &u.SectionID, &courseID, &u.Title, &u.Position)
		if err == sql.ErrNoRows {
			return (*models.Unit)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("units.get", errors.Wrap(err, "reading unit"))
		}
		u.CourseID = courseID.String
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Unit), nil
}

// GetUnitIDs returns the ids of every unit currently reachable from the course.
func (r *CourseRepository) GetUnitIDs(ctx context.Context, courseID string, exec ...DBExecutor) ([]string, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT u.id FROM units u
			JOIN sections s ON s.id = u.section_id
			WHERE s.course_id = ?
			ORDER BY s.position, u.position, u.id
		`, courseID)
		if err != nil {
			return nil, apperr.Persistence("units.list", errors.Wrap(err, "listing units"))
		}
		defer rows.Close()

		ids := []string{}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, apperr.Persistence("units.list", errors.Wrap(err, "scanning unit"))
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
