package operation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/xref"
)

// 🚦 Phase is a step of the share workflow
type Phase string

const (
	PhaseIdle                    Phase = "idle"
	PhaseAuthenticating          Phase = "authenticating"
	PhaseResolvingTarget         Phase = "resolving-target"
	PhaseStaging                 Phase = "staging"
	PhaseMigrating               Phase = "migrating"
	PhaseReopeningProject        Phase = "reopening-project"
	PhaseNormalizingLayout       Phase = "normalizing-layout"
	PhaseCollectingAssociations  Phase = "collecting-associations"
	PhaseSigningInDocumentServer Phase = "signing-in-document-server"
	PhaseUploading               Phase = "uploading"
	PhaseClosing                 Phase = "closing"
	PhaseDone                    Phase = "done"
	PhaseCanceled                Phase = "canceled"
	PhaseFailed                  Phase = "failed"
)

// 🏁 Outcome is how a run ended
type Outcome string

const (
	OutcomeDone        Outcome = "done"
	OutcomeNotReady    Outcome = "not-ready"
	OutcomeNothingToDo Outcome = "nothing-to-do"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeFailed      Outcome = "failed"
)

// CanceledMessage is written when a run ends through its context
const CanceledMessage = "The operation was canceled."

// 📊 Result describes a finished run
type Result struct {
	RunID   uuid.UUID
	Outcome Outcome
	// Phase is the last step the run entered before it ended
	Phase Phase
	// Phases are the steps entered, in order
	Phases []Phase
	// Errors holds one entry per underlying failure
	Errors   []error
	Target   *remote.Target
	Uploaded *remote.UploadReceipt
	// Associations are the xrefs sent with the upload, keyed by source path
	Associations xref.Associations
	// Migrated is set when the staged databases were converted to sqlite
	Migrated bool
}

// Err joins the errors of the run, nil when there are none
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return errors.Join(r.Errors...)
}

// Visited reports whether the run entered phase
func (r *Result) Visited(phase Phase) bool {
	for _, p := range r.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Messages returns the error messages of the run
func (r *Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

func (r *Result) String() string {
	s := string(r.Outcome) + " at " + string(r.Phase)
	if len(r.Errors) > 0 {
		s += ": " + strings.Join(r.Messages(), "; ")
	}
	return s
}

func isCanceled(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return err != nil && ctx.Err() != nil
}

// flatten splits joined errors into their leaves. A join found under
// wrapping context keeps that context as a prefix on each leaf.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		if _, ok := inner.(interface{ Unwrap() []error }); !ok {
			continue
		}
		prefix, found := strings.CutSuffix(err.Error(), inner.Error())
		var out []error
		for _, leaf := range flatten(inner) {
			if !found || prefix == "" {
				out = append(out, leaf)
				continue
			}
			out = append(out, errors.Errorf("%s%w", prefix, leaf))
		}
		return out
	}
	return []error{err}
}
