package performance

import "context"

type StoreAPI interface {
	WithinTx(ctx context.Context, fn func(tx StoreAPI) error) error
	// Checkpoint runs fn under a named savepoint of the current transaction.
	Checkpoint(ctx context.Context, name string, fn func() error) error

	GetAppraisal(ctx context.Context, appraisalID int64, includeDeleted bool) (Appraisal, error)
	GetAppraisalForUpdate(ctx context.Context, appraisalID int64, includeDeleted bool) (Appraisal, error)
	FindLiveByPeriod(ctx context.Context, subjectID int64, period Period, excludeID int64) (int64, bool, error)
	ListAppraisals(ctx context.Context, filter ListFilter, limit, offset int) (ListResult, error)

	CreateAppraisal(ctx context.Context, a *Appraisal) error
	UpdateAppraisal(ctx context.Context, a Appraisal) error
	SetDeleted(ctx context.Context, appraisalID int64, deleted bool) error

	ReplaceKRAScores(ctx context.Context, appraisalID int64, rows []KRAScore) error
	ReplaceSoftSkills(ctx context.Context, appraisalID int64, rows []SoftSkillScore) error
	ReplaceCourses(ctx context.Context, appraisalID int64, rows []Course) error
	ReplaceDevelopmentPlans(ctx context.Context, appraisalID int64, rows []DevelopmentPlan) error
}
