// Package reconciler keeps study-volunteer associations consistent with
// appointment assignments. Associations have no surrogate key: every
// mutation re-derives the row's identity from a fresh read, acts on it, and
// verifies the store's end state.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/clients/storeclient"
	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/core/settle"
	"github.com/jakechorley/study-scheduler/pkg/metrics"
)

// AssociationStore defines the association store operations needed by the reconciler
type AssociationStore interface {
	ListAssociations(ctx context.Context, studyID int) ([]model.Association, error)
	CreateAssociation(ctx context.Context, a model.Association) error
	PatchAssociation(ctx context.Context, field storeclient.AssociationField, key model.AssociationKey, value string) error
	DeleteAssociation(ctx context.Context, key model.AssociationKey) error
}

// GroupLookup resolves a group's compensation
type GroupLookup interface {
	GetGroup(ctx context.Context, groupID int) (*model.Group, error)
}

// Options tunes settling, retries and metrics
type Options struct {
	PollInterval   time.Duration
	SettleTimeout  time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Metrics        *metrics.Metrics
}

// Action describes what a reconciliation did
type Action string

const (
	ActionCreated   Action = "created"
	ActionUnchanged Action = "unchanged"
	ActionReplaced  Action = "replaced"
	ActionRemoved   Action = "removed"
	ActionAbsent    Action = "absent"
)

// Outcome is the result of a successful reconciliation
type Outcome struct {
	StudyID     int
	VolunteerID int
	GroupID     int
	Action      Action

	// Association is the row in place afterwards, nil after a removal
	Association *model.Association

	// Removed lists the rows deleted or superseded, as first read
	Removed []model.Association

	// Strategies lists every removal strategy attempted, in order
	Strategies []string

	// IVLookupFailed is set when the group compensation could not be read
	// and 0 was used instead
	IVLookupFailed bool
}

// Reconciler brings the association store in line with assignments
type Reconciler struct {
	store   AssociationStore
	groups  GroupLookup
	poller  *settle.Poller
	retry   retryPolicy
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a reconciler
func New(store AssociationStore, groups GroupLookup, logger *zap.Logger, opts Options) *Reconciler {
	return &Reconciler{
		store:   store,
		groups:  groups,
		poller:  settle.NewPoller(opts.PollInterval, opts.SettleTimeout),
		retry:   retryPolicy{attempts: opts.RetryAttempts, baseDelay: opts.RetryBaseDelay},
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// AssignOrReplace guarantees that exactly one association exists for the
// volunteer in the study, in the given group, carrying the group's current
// compensation, paid iff compensation > 0, with status INSCRIT.
// Stale rows are deleted and a fresh row is created with subject number 0;
// subject numbers are re-assigned outside this engine.
func (r *Reconciler) AssignOrReplace(ctx context.Context, studyID, volunteerID, groupID int) (*Outcome, error) {
	if studyID <= 0 || volunteerID <= 0 || groupID <= 0 {
		return nil, model.ValidationErrorf("study, volunteer and group ids are required (study=%d volunteer=%d group=%d)",
			studyID, volunteerID, groupID)
	}

	logger := r.logger.With(zap.Int("study_id", studyID), zap.Int("volunteer_id", volunteerID), zap.Int("group_id", groupID))
	logger.Debug("Reconciling association")

	outcome := &Outcome{StudyID: studyID, VolunteerID: volunteerID, GroupID: groupID}

	// Step 1: Compensation of the target group
	iv, err := r.groupIV(ctx, groupID)
	if err != nil {
		logger.Warn("Group compensation lookup failed, using 0", zap.Error(err))
		outcome.IVLookupFailed = true
		iv = 0
	}

	expected := model.Association{
		StudyID:       studyID,
		GroupID:       groupID,
		VolunteerID:   model.IntPtr(volunteerID),
		IV:            iv,
		SubjectNumber: 0,
		Paid:          model.PaidFor(iv),
		Status:        model.AssociationEnrolled,
	}

	// Step 2: Current rows for the volunteer
	rows, err := r.volunteerRows(ctx, studyID, volunteerID)
	if err != nil {
		r.metrics.Reconciliation("assign", "error")
		return nil, fmt.Errorf("failed to fetch associations: %w", err)
	}
	logger.Debug("Found existing associations", zap.Int("count", len(rows)))

	var keep *model.Association
	var stale []model.Association
	for i := range rows {
		if keep == nil && matchesAssignment(rows[i], expected) {
			keep = &rows[i]
			continue
		}
		stale = append(stale, rows[i])
	}

	// Step 5: Remove stale rows, identity derived from the fresh read
	for _, row := range stale {
		logger.Debug("Removing stale association", zap.Stringer("association", row))
		res, err := r.removeRow(ctx, "replace", row, volunteerID, r.replaceStrategies(row, volunteerID))
		outcome.Strategies = append(outcome.Strategies, res.Attempted...)
		if err != nil {
			r.metrics.Reconciliation("replace", "failed")
			return nil, r.reconciliationError(ctx, "replace", row, volunteerID, res, err)
		}
		outcome.Removed = append(outcome.Removed, row)
	}

	// Step 4: Already in the expected state
	if keep != nil {
		outcome.Action = ActionUnchanged
		outcome.Association = keep
		r.metrics.Reconciliation(string(ActionUnchanged), "ok")
		logger.Debug("Association already up to date", zap.Int("removed_duplicates", len(outcome.Removed)))
		return outcome, nil
	}

	// Step 3 / 5d: Create the fresh row
	if err := r.withRetry(ctx, "create", func() error {
		return r.store.CreateAssociation(ctx, expected)
	}); err != nil {
		r.metrics.Reconciliation("assign", "error")
		return nil, fmt.Errorf("failed to create association: %w", err)
	}

	// Step 6: Verify exactly the expected row is visible
	ok, err := r.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		current, err := r.volunteerRows(ctx, studyID, volunteerID)
		if err != nil {
			return false, err
		}
		return len(current) == 1 && current[0].Key() == expected.Key(), nil
	})
	if err != nil || !ok {
		r.metrics.Reconciliation("assign", "failed")
		return nil, r.verificationError(ctx, "assign", studyID, volunteerID, expected, outcome.Strategies, err)
	}

	outcome.Association = &expected
	outcome.Action = ActionCreated
	if len(rows) > 0 {
		outcome.Action = ActionReplaced
	}
	r.metrics.Reconciliation(string(outcome.Action), "ok")

	logger.Info("Association reconciled",
		zap.String("action", string(outcome.Action)),
		zap.Int("iv", iv),
		zap.Int("removed", len(outcome.Removed)),
		zap.Strings("strategies", outcome.Strategies))

	return outcome, nil
}

// Unassign removes every association of the volunteer in the study. Each
// row goes through the ordered strategy chain until its removal is
// verified, then a final read asserts no row for the volunteer remains.
func (r *Reconciler) Unassign(ctx context.Context, studyID, volunteerID int) (*Outcome, error) {
	if studyID <= 0 || volunteerID <= 0 {
		return nil, model.ValidationErrorf("study and volunteer ids are required (study=%d volunteer=%d)", studyID, volunteerID)
	}

	logger := r.logger.With(zap.Int("study_id", studyID), zap.Int("volunteer_id", volunteerID))
	logger.Debug("Removing associations")

	outcome := &Outcome{StudyID: studyID, VolunteerID: volunteerID}

	rows, err := r.volunteerRows(ctx, studyID, volunteerID)
	if err != nil {
		r.metrics.Reconciliation("unassign", "error")
		return nil, fmt.Errorf("failed to fetch associations: %w", err)
	}

	if len(rows) == 0 {
		outcome.Action = ActionAbsent
		r.metrics.Reconciliation(string(ActionAbsent), "ok")
		logger.Debug("No association to remove")
		return outcome, nil
	}

	for _, row := range rows {
		outcome.GroupID = row.GroupID
		res, err := r.removeRow(ctx, "unassign", row, volunteerID, r.unassignStrategies(row, volunteerID))
		outcome.Strategies = append(outcome.Strategies, res.Attempted...)
		if err != nil {
			r.metrics.Reconciliation("unassign", "failed")
			return nil, r.reconciliationError(ctx, "unassign", row, volunteerID, res, err)
		}
		logger.Debug("Association removed",
			zap.Stringer("association", row),
			zap.String("strategy", res.Accepted))
		outcome.Removed = append(outcome.Removed, row)
	}

	// Final verification over the whole study
	remaining, err := r.volunteerRows(ctx, studyID, volunteerID)
	if err != nil {
		r.metrics.Reconciliation("unassign", "error")
		return nil, fmt.Errorf("failed to verify association removal: %w", err)
	}
	if len(remaining) > 0 {
		r.metrics.Reconciliation("unassign", "failed")
		return nil, &model.ReconciliationError{
			StudyID:     studyID,
			VolunteerID: volunteerID,
			Operation:   "unassign",
			Persisting:  &remaining[0],
			Attempted:   outcome.Strategies,
		}
	}

	outcome.Action = ActionRemoved
	r.metrics.Reconciliation(string(ActionRemoved), "ok")
	logger.Info("Associations removed",
		zap.Int("removed", len(outcome.Removed)),
		zap.Strings("strategies", outcome.Strategies))

	return outcome, nil
}

// CurrentGroup returns the group of the volunteer's association in the study
func (r *Reconciler) CurrentGroup(ctx context.Context, studyID, volunteerID int) (int, bool, error) {
	rows, err := r.volunteerRows(ctx, studyID, volunteerID)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].GroupID, true, nil
}

// unassignStrategies builds the ordered removal chain for an unassignment
func (r *Reconciler) unassignStrategies(target model.Association, volunteerID int) []Strategy {
	strategies := []Strategy{
		{
			Name: StrategyClearVolunteer,
			Attempt: func(ctx context.Context) error {
				current, ok, err := r.locate(ctx, target, volunteerID)
				if err != nil || !ok {
					return err
				}
				return r.patch(ctx, storeclient.FieldVolunteer, current.Key(), "")
			},
		},
	}

	if target.SubjectNumber > 0 {
		strategies = append(strategies, r.resetSubjectNumberStrategy(target, volunteerID))
	}

	return append(strategies,
		r.cancelThenDeleteStrategy(target, volunteerID),
		Strategy{
			Name: StrategyDirectDelete,
			Attempt: func(ctx context.Context) error {
				return r.delete(ctx, target.Key())
			},
		},
	)
}

// replaceStrategies builds the removal chain used before recreating a row
func (r *Reconciler) replaceStrategies(target model.Association, volunteerID int) []Strategy {
	strategies := []Strategy{
		{
			Name: StrategyDirectDelete,
			Attempt: func(ctx context.Context) error {
				current, ok, err := r.locate(ctx, target, volunteerID)
				if err != nil || !ok {
					return err
				}
				return r.delete(ctx, current.Key())
			},
		},
	}

	if target.SubjectNumber > 0 {
		strategies = append(strategies, r.resetSubjectNumberStrategy(target, volunteerID))
	}

	return append(strategies, r.cancelThenDeleteStrategy(target, volunteerID))
}

func (r *Reconciler) resetSubjectNumberStrategy(target model.Association, volunteerID int) Strategy {
	return Strategy{
		Name: StrategyResetSubjectNumber,
		Attempt: func(ctx context.Context) error {
			return r.patchThenDelete(ctx, target, volunteerID, storeclient.FieldSubjectNumber, "0",
				func(a model.Association) bool { return a.SubjectNumber == 0 })
		},
	}
}

func (r *Reconciler) cancelThenDeleteStrategy(target model.Association, volunteerID int) Strategy {
	return Strategy{
		Name: StrategyCancelThenDelete,
		Attempt: func(ctx context.Context) error {
			return r.patchThenDelete(ctx, target, volunteerID, storeclient.FieldStatus, string(model.AssociationCancelled),
				func(a model.Association) bool { return a.Status == model.AssociationCancelled })
		},
	}
}

// patchThenDelete patches one field, waits until the patch is visible, then
// deletes the row using the identity read back from the store
func (r *Reconciler) patchThenDelete(
	ctx context.Context,
	target model.Association,
	volunteerID int,
	field storeclient.AssociationField,
	value string,
	applied func(model.Association) bool,
) error {
	current, ok, err := r.locate(ctx, target, volunteerID)
	if err != nil || !ok {
		return err
	}

	if err := r.patch(ctx, field, current.Key(), value); err != nil {
		return err
	}

	var patched *model.Association
	visible, err := r.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		row, ok, err := r.locate(ctx, target, volunteerID)
		if err != nil {
			return false, err
		}
		if !ok {
			// Row already gone
			return true, nil
		}
		if applied(row) {
			patched = &row
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("%s patch not visible after settling", field)
	}
	if patched == nil {
		return nil
	}

	return r.delete(ctx, patched.Key())
}

// removeRow runs a strategy chain for one row. Removal is verified by
// fewer tracked rows being left than before the chain started.
func (r *Reconciler) removeRow(ctx context.Context, operation string, target model.Association, volunteerID int, strategies []Strategy) (chainResult, error) {
	before, err := r.trackedRows(ctx, target, volunteerID)
	if err != nil {
		return chainResult{}, fmt.Errorf("failed to fetch associations: %w", err)
	}

	verify := func(ctx context.Context) (bool, error) {
		current, err := r.trackedRows(ctx, target, volunteerID)
		if err != nil {
			return false, err
		}
		return len(current) < len(before), nil
	}

	return r.runStrategies(ctx, operation, strategies, verify)
}

// locate finds the current version of target. Exact identity wins;
// otherwise the closest row in the same group, preferring rows that still
// reference the volunteer.
func (r *Reconciler) locate(ctx context.Context, target model.Association, volunteerID int) (model.Association, bool, error) {
	rows, err := r.trackedRows(ctx, target, volunteerID)
	if err != nil {
		return model.Association{}, false, err
	}

	best, bestScore := -1, -1
	for i, row := range rows {
		if row.Key() == target.Key() {
			return row, true, nil
		}
		if row.GroupID != target.GroupID {
			continue
		}
		score := similarity(row, target)
		if row.BelongsTo(volunteerID) {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return model.Association{}, false, nil
	}
	return rows[best], true, nil
}

// trackedRows returns the volunteer's rows. For a target carrying a subject
// number it also returns rows of the same group left behind with the
// volunteer reference cleared: the enrolment still exists until the row is
// gone.
func (r *Reconciler) trackedRows(ctx context.Context, target model.Association, volunteerID int) ([]model.Association, error) {
	all, err := r.studyRows(ctx, target.StudyID)
	if err != nil {
		return nil, err
	}

	rows := make([]model.Association, 0, 1)
	for _, a := range all {
		if a.BelongsTo(volunteerID) || (target.SubjectNumber > 0 && orphanOf(a, target)) {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

// volunteerRows returns the study's rows referencing the volunteer
func (r *Reconciler) volunteerRows(ctx context.Context, studyID, volunteerID int) ([]model.Association, error) {
	all, err := r.studyRows(ctx, studyID)
	if err != nil {
		return nil, err
	}

	rows := make([]model.Association, 0, 1)
	for _, a := range all {
		if a.BelongsTo(volunteerID) {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (r *Reconciler) studyRows(ctx context.Context, studyID int) ([]model.Association, error) {
	var all []model.Association
	err := r.withRetry(ctx, "list", func() error {
		var err error
		all, err = r.store.ListAssociations(ctx, studyID)
		return err
	})
	return all, err
}

func (r *Reconciler) patch(ctx context.Context, field storeclient.AssociationField, key model.AssociationKey, value string) error {
	return r.withRetry(ctx, "patch-"+string(field), func() error {
		return r.store.PatchAssociation(ctx, field, key, value)
	})
}

func (r *Reconciler) delete(ctx context.Context, key model.AssociationKey) error {
	return r.withRetry(ctx, "delete", func() error {
		return r.store.DeleteAssociation(ctx, key)
	})
}

func (r *Reconciler) groupIV(ctx context.Context, groupID int) (int, error) {
	group, err := r.groups.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return group.IV, nil
}

// reconciliationError builds the error for a row that could not be removed,
// naming the row as currently stored when it can still be read
func (r *Reconciler) reconciliationError(ctx context.Context, operation string, target model.Association, volunteerID int, res chainResult, cause error) error {
	persisting := target
	if current, ok, err := r.locate(ctx, target, volunteerID); err == nil && ok {
		persisting = current
	}
	return &model.ReconciliationError{
		StudyID:     target.StudyID,
		VolunteerID: volunteerID,
		Operation:   operation,
		Persisting:  &persisting,
		Attempted:   res.Attempted,
		Err:         cause,
	}
}

// verificationError builds the error for a created row that is not visible as expected
func (r *Reconciler) verificationError(ctx context.Context, operation string, studyID, volunteerID int, expected model.Association, attempted []string, cause error) error {
	recErr := &model.ReconciliationError{
		StudyID:     studyID,
		VolunteerID: volunteerID,
		Operation:   operation,
		Attempted:   attempted,
		Err:         cause,
	}
	if cause == nil {
		recErr.Err = fmt.Errorf("expected %s", expected)
	}
	if rows, err := r.volunteerRows(ctx, studyID, volunteerID); err == nil {
		for i := range rows {
			if rows[i].Key() != expected.Key() {
				recErr.Persisting = &rows[i]
				break
			}
		}
	}
	return recErr
}

// matchesAssignment reports whether row can stand for expected as is.
// Confirmed rows keep their subject number; cancelled or finished rows are
// replaced by a fresh enrolment.
func matchesAssignment(row, expected model.Association) bool {
	if row.Status != model.AssociationEnrolled && row.Status != model.AssociationConfirmed {
		return false
	}
	return row.GroupID == expected.GroupID && row.IV == expected.IV && row.Paid == expected.Paid
}

// orphanOf reports whether row is target with its volunteer reference
// cleared. Strategies never patch group, iv or paid.
func orphanOf(row, target model.Association) bool {
	cleared := row.VolunteerID == nil || *row.VolunteerID == 0
	return cleared && row.StudyID == target.StudyID && row.GroupID == target.GroupID &&
		row.IV == target.IV && row.Paid == target.Paid
}

func similarity(a, b model.Association) int {
	score := 0
	if a.IV == b.IV {
		score++
	}
	if a.SubjectNumber == b.SubjectNumber {
		score++
	}
	if a.Paid == b.Paid {
		score++
	}
	if a.Status == b.Status {
		score++
	}
	return score
}
