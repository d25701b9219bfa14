package performance

import "staffdesk/internal/platform/apperror"

var (
	ErrInvalidPeriod      = apperror.Validation("invalid_period", "period is invalid")
	ErrDuplicatePeriod    = apperror.Conflict("duplicate_period", "an appraisal already exists for this period")
	ErrFinalized          = apperror.Conflict("appraisal_finalized", "appraisal is finalized and can no longer change")
	ErrAppraisalNotFound  = apperror.NotFound("appraisal_not_found", "appraisal not found")
	ErrNotAllowed         = apperror.Authorization("appraisal_forbidden", "you cannot change this appraisal")
	ErrCommentSlot        = apperror.Authorization("comment_slot_forbidden", "you cannot write this comment")
	ErrOptionalSaveFailed = apperror.Dependency("optional_save_failed", "optional appraisal details could not be saved")
	ErrScoreOutOfRange    = apperror.Validation("score_out_of_range", "score is outside the accepted range")
	ErrEmptyPatch         = apperror.Validation("empty_patch", "nothing to update")
)
