package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupFlowHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.newUID = func() string { return "uid-f" }
	ctx := context.Background()
	f := NewSignupFlow(svc)
	assert.Equal(t, SignupEditing, f.State())

	out, err := f.Submit(ctx, signupInput("flow@example.com"))
	require.NoError(t, err)
	assert.True(t, out.AccountCreated)
	assert.Equal(t, SignupVerificationPending, f.State())

	require.NoError(t, f.Resend(ctx))
	assert.Equal(t, SignupVerificationPending, f.State())

	require.NoError(t, f.Verify(ctx, "uid-f", "flow@example.com"))
	assert.Equal(t, SignupVerified, f.State())

	_, err = f.Submit(ctx, signupInput("flow@example.com"))
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.ErrorIs(t, f.Edit(), ErrIllegalTransition)
	assert.Equal(t, SignupVerified, f.State(), "verified is terminal")
}

func TestSignupFlowAlreadyExistsReturnsToEditing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, signupInput("taken@example.com"))
	require.NoError(t, err)
	inserts := store.inserts

	f := NewSignupFlow(svc)
	out, err := f.Submit(ctx, signupInput("taken@example.com"))
	require.NoError(t, err)
	assert.True(t, out.AlreadyExists)
	assert.Equal(t, SignupEditing, f.State())
	assert.Equal(t, inserts, store.inserts)
}

func TestSignupFlowValidationKeepsForm(t *testing.T) {
	svc, _, _ := newTestService(t)
	f := NewSignupFlow(svc)
	_, err := f.Submit(context.Background(), SignupInput{Email: "bad", Password: "secret1", Confirm: "secret1"})
	require.Error(t, err)
	assert.Equal(t, SignupEditing, f.State())
}

func TestSignupFlowVerifyFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	f := NewSignupFlow(svc)
	_, err := f.Submit(ctx, signupInput("x@example.com"))
	require.NoError(t, err)

	err = f.Verify(ctx, "wrong-uid", "x@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, SignupFailed, f.State())

	require.NoError(t, f.Edit())
	assert.Equal(t, SignupEditing, f.State())
}

func TestSignupFlowRejectsVerifyBeforeSubmit(t *testing.T) {
	svc, _, _ := newTestService(t)
	f := NewSignupFlow(svc)
	assert.ErrorIs(t, f.Verify(context.Background(), "u", "e@example.com"), ErrIllegalTransition)
	assert.ErrorIs(t, f.Resend(context.Background()), ErrIllegalTransition)
}

func TestResetFlowUnregisteredNeverResets(t *testing.T) {
	svc, store, sender := newTestService(t)
	ctx := context.Background()
	f := NewResetFlow(svc)

	exists, err := f.CheckEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, ResetNotFound, f.State())

	_, err = f.SubmitPassword(ctx, "newpass1")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Zero(t, store.updates, "no reset was attempted")
	assert.Empty(t, sender.sent)

	require.NoError(t, f.Back())
	assert.Equal(t, ResetEmailEntry, f.State())
}

func TestResetFlowHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, signupInput("known@example.com"))
	require.NoError(t, err)

	f := NewResetFlow(svc)
	exists, err := f.CheckEmail(ctx, "known@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, ResetPasswordEntry, f.State())

	_, err = f.SubmitPassword(ctx, "abc")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ResetPasswordEntry, f.State(), "short password keeps the form")

	out, err := f.SubmitPassword(ctx, "newpass1")
	require.NoError(t, err)
	assert.True(t, out.PasswordChanged)
	assert.Equal(t, ResetLinkSent, f.State())

	_, err = f.CheckEmail(ctx, "known@example.com")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestResetFlowEmailFailureStillChangesPassword(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, signupInput("m@example.com"))
	require.NoError(t, err)
	sender.fail = true

	f := NewResetFlow(svc)
	_, err = f.CheckEmail(ctx, "m@example.com")
	require.NoError(t, err)
	out, err := f.SubmitPassword(ctx, "newpass1")
	require.NoError(t, err)
	assert.True(t, out.PasswordChanged)
	assert.False(t, out.EmailSent)
	assert.Equal(t, ResetEmailFailed, f.State())

	_, err = f.SubmitPassword(ctx, "newpass2")
	assert.ErrorIs(t, err, ErrIllegalTransition, "the password already changed")
}
