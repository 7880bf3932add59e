package script

import (
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/storage"
)

// Comments reported for the two successful outcomes
const (
	CommentCommitted  = "changes committed"
	CommentRolledBack = "changes rolled back"
)

// Op is one inventory operation. It runs inside a single transaction
// and returns its per-device report.
type Op func(tx *storage.Tx) (Output, error)

// Run executes op inside one all-or-nothing transaction.
//
// A cancellation (see Cancel) rolls back and yields a non-fatal
// structured result; the returned error is nil so the surrounding job
// is not marked errored. Any other error rolls back and propagates.
// With commit=false an otherwise-successful operation is rolled back
// (dry run); with commit=true it is durably committed.
func Run(store *storage.Store, commit bool, op Op) (*Result, error) {
	tx, err := store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out, err := op(tx)
	if err != nil {
		tx.Rollback()
		if IsCancel(err) {
			log.Warn("Operation cancelled", "reason", err.Error())
			return &Result{Result: false, Comment: err.Error()}, nil
		}
		log.Error("Operation failed", "error", err)
		return nil, err
	}

	if !commit {
		if err := tx.Rollback(); err != nil {
			return nil, err
		}
		log.Info("Dry run complete, changes rolled back")
		return &Result{Result: true, Comment: CommentRolledBack, Out: out}, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Info("Operation committed")
	return &Result{Result: true, Comment: CommentCommitted, Out: out}, nil
}
