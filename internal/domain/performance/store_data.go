package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"staffdesk/internal/platform/querier"
)

const appraisalColumns = `
    a.id, a.subject_id, a.approver_id, COALESCE(a.staff_ref, u.staff_ref, ''),
    a.period_type, a.period_year, a.period_quarter, a.period_half,
    COALESCE(a.appraisee_comment, ''), COALESCE(a.appraiser_comment, ''), COALESCE(a.hod_comment, ''),
    COALESCE(a.hr_comment, ''), COALESCE(a.ceo_comment, ''),
    a.appraisee_signed_at, a.appraiser_signed_at, a.hod_signed_at, a.hr_signed_at, a.ceo_signed_at,
    a.section_b_raw, a.section_c_raw, a.overall_override,
    a.section_b_total, a.section_c_total, a.overall_score,
    a.created_at, a.updated_at, a.deleted_at
  `

func scanAppraisal(row pgx.Row, extra ...any) (Appraisal, error) {
	var a Appraisal
	dest := []any{
		&a.ID, &a.SubjectID, &a.ApproverID, &a.StaffRef,
		&a.Period.Type, &a.Period.Year, &a.Period.Quarter, &a.Period.Half,
		&a.Comments.Appraisee, &a.Comments.Appraiser, &a.Comments.HOD, &a.Comments.HR, &a.Comments.CEO,
		&a.Signatures.AppraiseeSignedAt, &a.Signatures.AppraiserSignedAt, &a.Signatures.HODSignedAt,
		&a.Signatures.HRSignedAt, &a.Signatures.CEOSignedAt,
		&a.SectionBRaw, &a.SectionCRaw, &a.OverallOverride,
		&a.SectionBTotal, &a.SectionCTotal, &a.OverallScore,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return a, err
}

func (s *Store) GetAppraisal(ctx context.Context, appraisalID int64, includeDeleted bool) (Appraisal, error) {
	return s.getAppraisal(ctx, appraisalID, includeDeleted, "")
}

func (s *Store) GetAppraisalForUpdate(ctx context.Context, appraisalID int64, includeDeleted bool) (Appraisal, error) {
	return s.getAppraisal(ctx, appraisalID, includeDeleted, " FOR UPDATE OF a")
}

func (s *Store) getAppraisal(ctx context.Context, appraisalID int64, includeDeleted bool, lock string) (Appraisal, error) {
	query := `
    SELECT ` + appraisalColumns + `
    FROM performance_appraisals a
    JOIN users u ON u.id = a.subject_id
    WHERE a.id = $1`
	if !includeDeleted {
		query += " AND a.deleted_at IS NULL"
	}
	a, err := scanAppraisal(s.DB.QueryRow(ctx, query+lock, appraisalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appraisal{}, ErrAppraisalNotFound
	}
	if err != nil {
		return Appraisal{}, err
	}
	if err := s.loadChildren(ctx, &a); err != nil {
		return Appraisal{}, err
	}
	return a, nil
}

// loadChildren reads the four child collections. Through a pool they are
// read concurrently; inside a transaction they share one connection and are
// read in sequence.
func (s *Store) loadChildren(ctx context.Context, a *Appraisal) error {
	loaders := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			a.KRAScores, err = listKRAScores(ctx, s.DB, a.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			a.SoftSkills, err = listSoftSkills(ctx, s.DB, a.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			a.Courses, err = listCourses(ctx, s.DB, a.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			a.DevelopmentPlans, err = listDevelopmentPlans(ctx, s.DB, a.ID)
			return err
		},
	}

	if !s.pooled() {
		for _, load := range loaders {
			if err := load(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, load := range loaders {
		load := load
		g.Go(func() error { return load(gctx) })
	}
	return g.Wait()
}

func listKRAScores(ctx context.Context, q querier.Querier, appraisalID int64) ([]KRAScore, error) {
	rows, err := q.Query(ctx, `
    SELECT id, objective, weight, monthly, total, weighted_average
    FROM appraisal_kra_scores
    WHERE appraisal_id = $1
    ORDER BY position, id
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []KRAScore{}
	for rows.Next() {
		var row KRAScore
		var monthly []byte
		if err := rows.Scan(&row.ID, &row.Objective, &row.Weight, &monthly, &row.Total, &row.WeightedAverage); err != nil {
			return nil, err
		}
		if len(monthly) > 0 {
			if err := json.Unmarshal(monthly, &row.Monthly); err != nil {
				return nil, fmt.Errorf("decode monthly scores of row %d: %w", row.ID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func listSoftSkills(ctx context.Context, q querier.Querier, appraisalID int64) ([]SoftSkillScore, error) {
	rows, err := q.Query(ctx, `
    SELECT id, skill, rating, weight, weighted_score
    FROM appraisal_soft_skills
    WHERE appraisal_id = $1
    ORDER BY position, id
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SoftSkillScore{}
	for rows.Next() {
		var row SoftSkillScore
		if err := rows.Scan(&row.ID, &row.Skill, &row.Rating, &row.Weight, &row.WeightedScore); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func listCourses(ctx context.Context, q querier.Querier, appraisalID int64) ([]Course, error) {
	rows, err := q.Query(ctx, `
    SELECT id, title FROM appraisal_courses WHERE appraisal_id = $1 ORDER BY position, id
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		var row Course
		if err := rows.Scan(&row.ID, &row.Title); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func listDevelopmentPlans(ctx context.Context, q querier.Querier, appraisalID int64) ([]DevelopmentPlan, error) {
	rows, err := q.Query(ctx, `
    SELECT id, area, action, target_date
    FROM appraisal_development_plans
    WHERE appraisal_id = $1
    ORDER BY position, id
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DevelopmentPlan{}
	for rows.Next() {
		var row DevelopmentPlan
		if err := rows.Scan(&row.ID, &row.Area, &row.Action, &row.TargetDate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) FindLiveByPeriod(ctx context.Context, subjectID int64, period Period, excludeID int64) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    SELECT id
    FROM performance_appraisals
    WHERE subject_id = $1 AND period_type = $2 AND period_year = $3
      AND COALESCE(period_quarter, 0) = $4 AND COALESCE(period_half, 0) = $5
      AND deleted_at IS NULL AND id <> $6
    ORDER BY id
    LIMIT 1
  `, subjectID, period.Type, period.Year, intOrZero(period.Quarter), intOrZero(period.Half), excludeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) CreateAppraisal(ctx context.Context, a *Appraisal) error {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO performance_appraisals (
      subject_id, approver_id, staff_ref, period_type, period_year, period_quarter, period_half
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at, updated_at
  `, a.SubjectID, a.ApproverID, nullIfEmpty(a.StaffRef), a.Period.Type, a.Period.Year, a.Period.Quarter, a.Period.Half,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicatePeriod
	}
	return err
}

// UpdateAppraisal writes the scalar columns of a; child rows are written by
// the Replace methods.
func (s *Store) UpdateAppraisal(ctx context.Context, a Appraisal) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE performance_appraisals
    SET approver_id = $1,
        appraisee_comment = $2,
        appraiser_comment = $3,
        hod_comment = $4,
        hr_comment = $5,
        ceo_comment = $6,
        appraisee_signed_at = $7,
        appraiser_signed_at = $8,
        hod_signed_at = $9,
        hr_signed_at = $10,
        ceo_signed_at = $11,
        section_b_raw = $12,
        section_c_raw = $13,
        overall_override = $14,
        section_b_total = $15,
        section_c_total = $16,
        overall_score = $17,
        updated_at = now()
    WHERE id = $18
  `,
		a.ApproverID,
		nullIfEmpty(a.Comments.Appraisee), nullIfEmpty(a.Comments.Appraiser), nullIfEmpty(a.Comments.HOD),
		nullIfEmpty(a.Comments.HR), nullIfEmpty(a.Comments.CEO),
		a.Signatures.AppraiseeSignedAt, a.Signatures.AppraiserSignedAt, a.Signatures.HODSignedAt,
		a.Signatures.HRSignedAt, a.Signatures.CEOSignedAt,
		a.SectionBRaw, a.SectionCRaw, a.OverallOverride,
		a.SectionBTotal, a.SectionCTotal, a.OverallScore,
		a.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAppraisalNotFound
	}
	return nil
}

func (s *Store) SetDeleted(ctx context.Context, appraisalID int64, deleted bool) error {
	query := "UPDATE performance_appraisals SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL"
	if !deleted {
		query = "UPDATE performance_appraisals SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL"
	}
	cmd, err := s.DB.Exec(ctx, query, appraisalID)
	if isUniqueViolation(err) {
		return ErrDuplicatePeriod
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAppraisalNotFound
	}
	return nil
}

func (s *Store) ReplaceKRAScores(ctx context.Context, appraisalID int64, rows []KRAScore) error {
	if _, err := s.DB.Exec(ctx, "DELETE FROM appraisal_kra_scores WHERE appraisal_id = $1", appraisalID); err != nil {
		return err
	}
	for i, row := range rows {
		monthly, err := json.Marshal(row.Monthly)
		if err != nil {
			return err
		}
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO appraisal_kra_scores (appraisal_id, position, objective, weight, monthly, total, weighted_average)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, appraisalID, i, row.Objective, row.Weight, monthly, row.Total, row.WeightedAverage); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ReplaceSoftSkills(ctx context.Context, appraisalID int64, rows []SoftSkillScore) error {
	if _, err := s.DB.Exec(ctx, "DELETE FROM appraisal_soft_skills WHERE appraisal_id = $1", appraisalID); err != nil {
		return err
	}
	for i, row := range rows {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO appraisal_soft_skills (appraisal_id, position, skill, rating, weight, weighted_score)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, appraisalID, i, row.Skill, row.Rating, row.Weight, row.WeightedScore); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ReplaceCourses(ctx context.Context, appraisalID int64, rows []Course) error {
	if _, err := s.DB.Exec(ctx, "DELETE FROM appraisal_courses WHERE appraisal_id = $1", appraisalID); err != nil {
		return err
	}
	for i, row := range rows {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO appraisal_courses (appraisal_id, position, title) VALUES ($1,$2,$3)
    `, appraisalID, i, row.Title); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ReplaceDevelopmentPlans(ctx context.Context, appraisalID int64, rows []DevelopmentPlan) error {
	if _, err := s.DB.Exec(ctx, "DELETE FROM appraisal_development_plans WHERE appraisal_id = $1", appraisalID); err != nil {
		return err
	}
	for i, row := range rows {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO appraisal_development_plans (appraisal_id, position, area, action, target_date)
      VALUES ($1,$2,$3,$4,$5)
    `, appraisalID, i, row.Area, row.Action, row.TargetDate); err != nil {
			return err
		}
	}
	return nil
}

// Section presence for listings, mirroring HasSectionB and HasSectionC.
const sectionPresenceColumns = `,
    EXISTS (
      SELECT 1 FROM appraisal_kra_scores k
      WHERE k.appraisal_id = a.id AND (
        COALESCE(k.total, 0) > 0 OR COALESCE(k.weighted_average, 0) > 0 OR EXISTS (
          SELECT 1 FROM jsonb_array_elements(COALESCE(k.monthly, '[]'::jsonb)) m
          WHERE COALESCE((m->>'actual')::numeric, 0) > 0 OR COALESCE((m->>'percent')::numeric, 0) > 0
        )
      )
    ),
    EXISTS (
      SELECT 1 FROM appraisal_soft_skills ss WHERE ss.appraisal_id = a.id AND COALESCE(ss.rating, 0) > 0
    )`

func (s *Store) ListAppraisals(ctx context.Context, filter ListFilter, limit, offset int) (ListResult, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM performance_appraisals a WHERE "+where, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	query := `
    SELECT ` + appraisalColumns + sectionPresenceColumns + `
    FROM performance_appraisals a
    JOIN users u ON u.id = a.subject_id
    WHERE ` + where
	query += fmt.Sprintf(" ORDER BY a.period_year DESC, a.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	out := ListResult{Total: total, Appraisals: []Appraisal{}}
	for rows.Next() {
		var scoredB, scoredC bool
		a, err := scanAppraisal(rows, &scoredB, &scoredC)
		if err != nil {
			return ListResult{}, err
		}
		a.scoredB, a.scoredC = &scoredB, &scoredC
		out.Appraisals = append(out.Appraisals, a)
	}
	return out, rows.Err()
}

func buildListWhere(filter ListFilter) (string, []any) {
	clauses := []string{"a.deleted_at IS NULL"}
	var args []any
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.SubjectID > 0 {
		clauses = append(clauses, "a.subject_id = "+arg(filter.SubjectID))
	}
	if filter.ApproverID > 0 {
		clauses = append(clauses, "a.approver_id = "+arg(filter.ApproverID))
	}
	if filter.Year > 0 {
		clauses = append(clauses, "a.period_year = "+arg(filter.Year))
	}
	if filter.PeriodType != "" {
		clauses = append(clauses, "a.period_type = "+arg(filter.PeriodType))
	}
	if filter.VisibleTo > 0 {
		p := arg(filter.VisibleTo)
		clauses = append(clauses, fmt.Sprintf("(a.subject_id = %s OR a.approver_id = %s)", p, p))
	}
	return strings.Join(clauses, " AND "), args
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
