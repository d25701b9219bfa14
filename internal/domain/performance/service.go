package performance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/platform/apperror"
)

type Directory interface {
	GetUser(ctx context.Context, userID int64) (core.User, error)
}

type ApproverResolver interface {
	ResolveFor(ctx context.Context, subject approval.Subject, fallback *int64) (approval.Route, error)
	IsDepartmentHOD(ctx context.Context, actorID int64, departmentID *int64) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type TransitionCounter interface {
	Transition(workflow, transition string)
}

type Service struct {
	store    StoreAPI
	users    Directory
	resolver ApproverResolver
	audit    AuditRecorder
	metrics  TransitionCounter
	now      func() time.Time
}

func NewService(store StoreAPI, users Directory, resolver ApproverResolver, recorder AuditRecorder, metrics TransitionCounter) *Service {
	return &Service{
		store:    store,
		users:    users,
		resolver: resolver,
		audit:    recorder,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Service) CreateAppraisal(ctx context.Context, actor auth.UserContext, in CreateInput) (Appraisal, error) {
	period := in.Period.Normalize()
	if err := period.Validate(); err != nil {
		return Appraisal{}, err
	}
	subject, err := s.users.GetUser(ctx, in.SubjectID)
	if err != nil {
		return Appraisal{}, err
	}
	approverID, err := s.approverFor(ctx, subject)
	if err != nil {
		return Appraisal{}, err
	}
	if actor.UserID != subject.ID && !isPrivileged(actor.RoleName) && !sameID(approverID, actor.UserID) {
		return Appraisal{}, ErrNotAllowed
	}

	a := Appraisal{
		SubjectID:  subject.ID,
		ApproverID: approverID,
		StaffRef:   subject.StaffRef,
		Period:     period,
	}
	err = s.store.WithinTx(ctx, func(tx StoreAPI) error {
		existingID, found, err := tx.FindLiveByPeriod(ctx, subject.ID, period, 0)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicatePeriod.WithDetail("existingId", existingID)
		}
		if err := tx.CreateAppraisal(ctx, &a); err != nil {
			return err
		}
		return s.apply(ctx, tx, actor, subject, &a, in.Content)
	})
	if err != nil {
		return Appraisal{}, s.withExistingID(ctx, err, subject.ID, period, 0)
	}

	s.record(ctx, actor.UserID, "appraisal.create", a.ID, map[string]any{
		"subjectId":  a.SubjectID,
		"approverId": a.ApproverID,
		"period":     a.Period,
		"status":     a.Status,
	})
	s.count(a.Status)
	return a, nil
}

// UpdateAppraisal applies a partial update. Every save recomputes totals and
// status and stamps the signatures of newly reached stages.
func (s *Service) UpdateAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64, patch Patch) (Appraisal, error) {
	if patch.Comments.empty() && !patch.touchesContent() && patch.OverallOverride == nil {
		return Appraisal{}, ErrEmptyPatch
	}

	var updated Appraisal
	var previous Status
	err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		a, err := tx.GetAppraisalForUpdate(ctx, appraisalID, false)
		if err != nil {
			return err
		}
		previous = DeriveStatus(a.Evidence())
		if previous == StatusFinalized {
			return ErrFinalized
		}
		subject, err := s.users.GetUser(ctx, a.SubjectID)
		if err != nil {
			return err
		}
		if a.ApproverID == nil {
			if a.ApproverID, err = s.approverFor(ctx, subject); err != nil {
				return err
			}
		}
		if err := s.apply(ctx, tx, actor, subject, &a, patch); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return Appraisal{}, err
	}

	s.record(ctx, actor.UserID, "appraisal.update", appraisalID, map[string]any{
		"previousStatus": previous,
		"status":         updated.Status,
		"overallScore":   updated.OverallScore,
		"warnings":       updated.Warnings,
	})
	if updated.Status != previous {
		s.count(updated.Status)
	}
	return updated, nil
}

// apply authorizes patch for actor, writes it to a and the store, and
// refreshes the computed fields. It runs inside the caller's transaction.
func (s *Service) apply(ctx context.Context, tx StoreAPI, actor auth.UserContext, subject core.User, a *Appraisal, patch Patch) error {
	if err := s.authorizeComments(ctx, actor, subject, *a, patch.Comments); err != nil {
		return err
	}
	isApprover := sameID(a.ApproverID, actor.UserID)
	if patch.touchesContent() && actor.UserID != a.SubjectID && !isApprover && !isPrivileged(actor.RoleName) {
		return ErrNotAllowed
	}
	if patch.OverallOverride != nil && !isApprover && !isPrivileged(actor.RoleName) && !auth.IsCEORole(actor.RoleName) {
		return ErrNotAllowed.WithDetail("field", "overallOverride")
	}

	var kraRows []KRAScore
	var skillRows []SoftSkillScore
	if patch.KRAScores != nil {
		kraRows = NormalizeKRA(*patch.KRAScores)
	}
	if patch.SoftSkills != nil {
		skillRows = ScoreSoftSkills(*patch.SoftSkills)
	}
	if err := CheckBounds(kraRows, skillRows, patch.SectionBRaw, patch.SectionCRaw); err != nil {
		return err
	}

	applyComments(&a.Comments, patch.Comments)
	if patch.SectionBRaw != nil {
		a.SectionBRaw = Normalize(patch.SectionBRaw)
	}
	if patch.SectionCRaw != nil {
		a.SectionCRaw = Normalize(patch.SectionCRaw)
	}
	if patch.OverallOverride != nil {
		a.OverallOverride = Normalize(patch.OverallOverride)
	}

	if patch.KRAScores != nil {
		if err := tx.Checkpoint(ctx, "kra_scores", func() error {
			return tx.ReplaceKRAScores(ctx, a.ID, kraRows)
		}); err != nil {
			return err
		}
		a.KRAScores = kraRows
	}
	if patch.SoftSkills != nil {
		if err := tx.Checkpoint(ctx, "soft_skills", func() error {
			return tx.ReplaceSoftSkills(ctx, a.ID, skillRows)
		}); err != nil {
			return err
		}
		a.SoftSkills = skillRows
	}
	if patch.Courses != nil {
		rows := trimCourses(*patch.Courses)
		err := tx.Checkpoint(ctx, "courses", func() error {
			return tx.ReplaceCourses(ctx, a.ID, rows)
		})
		if s.optional(a, "courses", err) {
			a.Courses = rows
		}
	}
	if patch.DevelopmentPlans != nil {
		rows := trimPlans(*patch.DevelopmentPlans)
		err := tx.Checkpoint(ctx, "development_plans", func() error {
			return tx.ReplaceDevelopmentPlans(ctx, a.ID, rows)
		})
		if s.optional(a, "development_plans", err) {
			a.DevelopmentPlans = rows
		}
	}

	refresh(a, s.now())
	return tx.UpdateAppraisal(ctx, *a)
}

// optional reports whether a best-effort step succeeded, recording a
// warning on a when it did not.
func (s *Service) optional(a *Appraisal, step string, err error) bool {
	if err == nil {
		return true
	}
	slog.Warn("appraisal optional save failed", "appraisalId", a.ID, "step", step, "err", ErrOptionalSaveFailed.Wrap(err))
	a.Warnings = append(a.Warnings, step)
	return false
}

func (s *Service) authorizeComments(ctx context.Context, actor auth.UserContext, subject core.User, a Appraisal, patch CommentsPatch) error {
	if patch.Appraisee != nil && actor.UserID != a.SubjectID {
		return ErrCommentSlot.WithDetail("slot", "appraisee")
	}
	if patch.Appraiser != nil && !sameID(a.ApproverID, actor.UserID) {
		return ErrCommentSlot.WithDetail("slot", "appraiser")
	}
	if patch.HOD != nil {
		ok, err := s.resolver.IsDepartmentHOD(ctx, actor.UserID, subject.DepartmentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCommentSlot.WithDetail("slot", "hod")
		}
	}
	if patch.HR != nil && !auth.IsHRRole(actor.RoleName) {
		return ErrCommentSlot.WithDetail("slot", "hr")
	}
	if patch.CEO != nil && !auth.IsCEORole(actor.RoleName) {
		return ErrCommentSlot.WithDetail("slot", "ceo")
	}
	return nil
}

// GetAppraisal hides appraisals the actor has no part in behind NotFound.
func (s *Service) GetAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) (Appraisal, error) {
	a, err := s.store.GetAppraisal(ctx, appraisalID, false)
	if err != nil {
		return Appraisal{}, err
	}
	visible, err := s.canView(ctx, actor, a)
	if err != nil {
		return Appraisal{}, err
	}
	if !visible {
		return Appraisal{}, ErrAppraisalNotFound
	}
	derive(&a)
	return a, nil
}

func (s *Service) ListAppraisals(ctx context.Context, actor auth.UserContext, filter ListFilter, limit, offset int) (ListResult, error) {
	filter.PeriodType = normalizePeriodType(filter.PeriodType)
	if !canSeeAll(actor.RoleName) {
		filter.VisibleTo = actor.UserID
	}
	result, err := s.store.ListAppraisals(ctx, filter, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	for i := range result.Appraisals {
		result.Appraisals[i].Status = DeriveStatus(result.Appraisals[i].Evidence())
	}
	return result, nil
}

func (s *Service) DeleteAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) error {
	if !isPrivileged(actor.RoleName) {
		return ErrNotAllowed
	}
	if err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		return tx.SetDeleted(ctx, appraisalID, true)
	}); err != nil {
		return err
	}
	s.record(ctx, actor.UserID, "appraisal.delete", appraisalID, nil)
	return nil
}

// RestoreAppraisal undeletes an appraisal. Restoring a live appraisal is a
// no-op; a live appraisal for the same period blocks the restore.
func (s *Service) RestoreAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) (Appraisal, error) {
	if !isPrivileged(actor.RoleName) {
		return Appraisal{}, ErrNotAllowed
	}
	restored := false
	var a Appraisal
	err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		var err error
		a, err = tx.GetAppraisalForUpdate(ctx, appraisalID, true)
		if err != nil {
			return err
		}
		if a.DeletedAt == nil {
			return nil
		}
		existingID, found, err := tx.FindLiveByPeriod(ctx, a.SubjectID, a.Period, a.ID)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicatePeriod.WithDetail("existingId", existingID)
		}
		if err := tx.SetDeleted(ctx, a.ID, false); err != nil {
			return err
		}
		a.DeletedAt = nil
		restored = true
		return nil
	})
	if err != nil {
		return Appraisal{}, s.withExistingID(ctx, err, a.SubjectID, a.Period, appraisalID)
	}
	if restored {
		s.record(ctx, actor.UserID, "appraisal.restore", appraisalID, nil)
	}
	derive(&a)
	return a, nil
}

// withExistingID attaches the id of the live appraisal holding the period
// when a write lost the race on the period index. The lookup runs after the
// failed transaction has rolled back.
func (s *Service) withExistingID(ctx context.Context, err error, subjectID int64, period Period, excludeID int64) error {
	appErr, ok := apperror.As(err)
	if !ok || !errors.Is(err, ErrDuplicatePeriod) {
		return err
	}
	if _, set := appErr.Details["existingId"]; set {
		return err
	}
	existingID, found, lookupErr := s.store.FindLiveByPeriod(ctx, subjectID, period, excludeID)
	if lookupErr != nil || !found {
		if lookupErr != nil {
			slog.Warn("duplicate period lookup failed", "subjectId", subjectID, "err", lookupErr)
		}
		return err
	}
	return ErrDuplicatePeriod.WithDetail("existingId", existingID)
}

// approverFor resolves the appraiser of subject. Appraisals may exist without
// one; HR can still carry them through review.
func (s *Service) approverFor(ctx context.Context, subject core.User) (*int64, error) {
	route, err := s.resolver.ResolveFor(ctx, approval.SubjectFromUser(subject), subject.SupervisorID)
	if errors.Is(err, approval.ErrNoApprover) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return route.ApproverID, nil
}

func (s *Service) canView(ctx context.Context, actor auth.UserContext, a Appraisal) (bool, error) {
	if actor.UserID == a.SubjectID || sameID(a.ApproverID, actor.UserID) || canSeeAll(actor.RoleName) {
		return true, nil
	}
	if !auth.IsHODRole(actor.RoleName) {
		return false, nil
	}
	subject, err := s.users.GetUser(ctx, a.SubjectID)
	if err != nil {
		return false, err
	}
	return s.resolver.IsDepartmentHOD(ctx, actor.UserID, subject.DepartmentID)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, appraisalID int64, details any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntityAppraisal,
		EntityID:   appraisalID,
		Details:    details,
	})
}

func (s *Service) count(status Status) {
	if s.metrics != nil {
		s.metrics.Transition("appraisal", status.String())
	}
}

// refresh recomputes totals and status and stamps reached signatures.
func refresh(a *Appraisal, now time.Time) {
	derive(a)
	StampSignatures(&a.Signatures, a.Status, now)
}

func derive(a *Appraisal) {
	totals := ComputeTotals(*a)
	a.SectionBTotal = totals.SectionB
	a.SectionCTotal = totals.SectionC
	a.OverallScore = totals.Overall
	a.Status = DeriveStatus(a.Evidence())
}

func applyComments(c *Comments, patch CommentsPatch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.Appraisee, patch.Appraisee)
	set(&c.Appraiser, patch.Appraiser)
	set(&c.HOD, patch.HOD)
	set(&c.HR, patch.HR)
	set(&c.CEO, patch.CEO)
}

func trimCourses(rows []Course) []Course {
	out := make([]Course, 0, len(rows))
	for _, row := range rows {
		row.Title = strings.TrimSpace(row.Title)
		if row.Title != "" {
			out = append(out, row)
		}
	}
	return out
}

func trimPlans(rows []DevelopmentPlan) []DevelopmentPlan {
	out := make([]DevelopmentPlan, 0, len(rows))
	for _, row := range rows {
		row.Area = strings.TrimSpace(row.Area)
		row.Action = strings.TrimSpace(row.Action)
		if row.Area != "" || row.Action != "" {
			out = append(out, row)
		}
	}
	return out
}

func isPrivileged(roleName string) bool {
	return auth.IsHRRole(roleName) || auth.IsAdminRole(roleName)
}

func canSeeAll(roleName string) bool {
	return isPrivileged(roleName) || auth.IsCEORole(roleName)
}

func sameID(id *int64, userID int64) bool {
	return id != nil && *id == userID
}
