package account

import (
	"context"
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal transition")

// SignupState is a step of the signup flow.
type SignupState string

const (
	SignupEditing             SignupState = "editing"
	SignupSubmitting          SignupState = "submitting"
	SignupVerificationPending SignupState = "verification_pending"
	SignupVerified            SignupState = "verified"
	SignupFailed              SignupState = "failed"
)

// SignupFlow walks one visitor from the signup form to a verified account.
// Editing → Submitting → {VerificationPending, Failed}; an existing email
// sends the flow back to Editing. VerificationPending → {Verified, Failed}.
// Verified is terminal. Not safe for concurrent use.
type SignupFlow struct {
	svc     *Service
	state   SignupState
	email   string
	outcome SignupOutcome
	err     error
}

func NewSignupFlow(svc *Service) *SignupFlow {
	return &SignupFlow{svc: svc, state: SignupEditing}
}

func (f *SignupFlow) State() SignupState { return f.state }
func (f *SignupFlow) Outcome() SignupOutcome { return f.outcome }
func (f *SignupFlow) Err() error { return f.err }

// Edit returns a failed flow to the form.
func (f *SignupFlow) Edit() error {
	switch f.state {
	case SignupEditing, SignupFailed:
		f.state, f.err = SignupEditing, nil
		return nil
	}
	return f.illegal("edit")
}

// Submit runs the signup. Validation errors keep the form open.
func (f *SignupFlow) Submit(ctx context.Context, in SignupInput) (SignupOutcome, error) {
	if f.state != SignupEditing {
		return SignupOutcome{}, f.illegal("submit")
	}
	f.state = SignupSubmitting
	out, err := f.svc.Signup(ctx, in)
	f.outcome, f.err = out, err

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		f.state = SignupEditing
	case err != nil:
		f.state = SignupFailed
	case out.AlreadyExists:
		f.state = SignupEditing
	default:
		f.email = normalizeEmail(in.Email)
		f.state = SignupVerificationPending
	}
	return out, err
}

// Resend emails the verification link again while verification is pending.
func (f *SignupFlow) Resend(ctx context.Context) error {
	if f.state != SignupVerificationPending {
		return f.illegal("resend")
	}
	link, err := f.svc.ResendVerification(ctx, f.email)
	if err != nil {
		return err
	}
	f.outcome.Link, f.outcome.EmailSent = link, true
	return nil
}

// Verify completes the flow with the uid and email from the link.
func (f *SignupFlow) Verify(ctx context.Context, uid, email string) error {
	if f.state != SignupVerificationPending {
		return f.illegal("verify")
	}
	if _, err := f.svc.VerifyEmail(ctx, uid, email); err != nil {
		f.state, f.err = SignupFailed, err
		return err
	}
	f.state = SignupVerified
	return nil
}

func (f *SignupFlow) illegal(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, op, f.state)
}

// ResetState is a step of the password reset flow.
type ResetState string

const (
	ResetEmailEntry    ResetState = "email_entry"
	ResetChecking      ResetState = "checking"
	ResetPasswordEntry ResetState = "password_entry"
	ResetNotFound      ResetState = "not_found"
	ResetSubmitting    ResetState = "submitting"
	ResetLinkSent      ResetState = "reset_link_sent"
	ResetEmailFailed   ResetState = "password_changed_email_failed"
	ResetFailed        ResetState = "failed"
)

// ResetFlow gates the password reset behind an existence check.
// EmailEntry → Checking → {PasswordEntry, NotFound};
// PasswordEntry → Submitting → {ResetLinkSent, EmailFailed, Failed}.
// EmailFailed means the password changed but the link email did not go out.
// The reset itself is only reachable from PasswordEntry.
type ResetFlow struct {
	svc     *Service
	state   ResetState
	email   string
	outcome ResetOutcome
	err     error
}

func NewResetFlow(svc *Service) *ResetFlow {
	return &ResetFlow{svc: svc, state: ResetEmailEntry}
}

func (f *ResetFlow) State() ResetState { return f.state }
func (f *ResetFlow) Outcome() ResetOutcome { return f.outcome }
func (f *ResetFlow) Err() error { return f.err }

// CheckEmail checks whether email is registered.
func (f *ResetFlow) CheckEmail(ctx context.Context, email string) (bool, error) {
	if f.state != ResetEmailEntry && f.state != ResetNotFound {
		return false, f.illegal("check")
	}
	f.state = ResetChecking
	exists, err := f.svc.CheckEmailExists(ctx, email)
	f.err = err
	switch {
	case err != nil:
		f.state = ResetEmailEntry
	case exists:
		f.email = normalizeEmail(email)
		f.state = ResetPasswordEntry
	default:
		f.state = ResetNotFound
	}
	return exists, err
}

// SubmitPassword resets the password of the checked email. Validation
// errors keep the password form open.
func (f *ResetFlow) SubmitPassword(ctx context.Context, password string) (ResetOutcome, error) {
	if f.state != ResetPasswordEntry {
		return ResetOutcome{}, f.illegal("reset")
	}
	f.state = ResetSubmitting
	out, err := f.svc.ResetPassword(ctx, f.email, password)
	f.outcome, f.err = out, err

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		f.state = ResetPasswordEntry
	case err != nil:
		f.state = ResetFailed
	case !out.EmailSent:
		f.state = ResetEmailFailed
	default:
		f.state = ResetLinkSent
	}
	return out, err
}

// Back returns to email entry from NotFound or Failed.
func (f *ResetFlow) Back() error {
	switch f.state {
	case ResetNotFound, ResetFailed, ResetPasswordEntry:
		f.state, f.err, f.email = ResetEmailEntry, nil, ""
		return nil
	}
	return f.illegal("back")
}

func (f *ResetFlow) illegal(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, op, f.state)
}
