package account

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

// Handler serves the signup, verification, reset and sign-in endpoints.
type Handler struct {
	svc          *Service
	issuer       *session.Issuer
	logger       *zap.SugaredLogger
	signInURL    string
	secureCookie bool
}

// RedirectDelay is the pause on the verification landing page before it
// moves on to sign-in.
const RedirectDelay = "3"

func NewHandler(svc *Service, issuer *session.Issuer, logger *zap.SugaredLogger, signInURL string, secureCookie bool) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, issuer: issuer, logger: logger, signInURL: signInURL, secureCookie: secureCookie}
}

type emailRequest struct {
	Email string `json:"email"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup. A created account whose email failed is
// answered with 202 and emailSent=false.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	flow := NewSignupFlow(h.svc)
	out, err := flow.Submit(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out.AlreadyExists {
		utilities.WriteError(w, http.StatusConflict, "already_exists", "an account with this email already exists")
		return
	}
	status := http.StatusCreated
	message := "account created, check your inbox to verify your email"
	if !out.EmailSent {
		status = http.StatusAccepted
		message = "account created, but the verification email could not be sent"
	}
	utilities.WriteJSON(w, status, map[string]any{
		"success":        true,
		"message":        message,
		"state":          flow.State(),
		"accountCreated": out.AccountCreated,
		"emailSent":      out.EmailSent,
	})
}

// Verify handles GET /auth/verify?id=&email=, the landing page of the
// verification link. On success it refreshes to sign-in after a short delay.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	acct, err := h.svc.VerifyEmail(r.Context(), q.Get("id"), q.Get("email"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Refresh", RedirectDelay+"; url="+h.signInURL)
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "email verified, redirecting to sign in",
		"account":  acct.View(),
		"redirect": h.signInURL,
	})
}

// Resend handles POST /auth/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if _, err := h.svc.ResendVerification(r.Context(), in.Email); err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "emailSent": true})
}

// SignIn handles POST /auth/signin and writes the session flag.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	acct, err := h.svc.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	token, exp, err := h.issuer.Issue(session.Identity{
		AccountID:     acct.ID,
		UID:           acct.UID,
		Email:         acct.Email,
		EmailVerified: acct.EmailVerified,
	})
	if err != nil {
		h.logger.Errorw("issue session failed", "uid", acct.UID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "failed", "sign in failed")
		return
	}
	session.SetCookie(w, token, exp, h.secureCookie)
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      token,
		"expires_at": exp.Unix(),
		"account":    acct.View(),
	})
}

// SignOut handles POST /auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w)
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CheckEmail handles POST /auth/reset/check
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	exists, err := h.svc.CheckEmailExists(r.Context(), in.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "exists": exists})
}

// Reset handles POST /auth/reset. The existence check runs first and an
// unregistered email never reaches the password reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	flow := NewResetFlow(h.svc)
	exists, err := flow.CheckEmail(r.Context(), in.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !exists {
		h.writeError(w, ErrNotRegistered)
		return
	}
	out, err := flow.SubmitPassword(r.Context(), in.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if !out.EmailSent {
		status = http.StatusAccepted
	}
	utilities.WriteJSON(w, status, map[string]any{
		"success":         true,
		"state":           flow.State(),
		"passwordChanged": out.PasswordChanged,
		"emailSent":       out.EmailSent,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		utilities.WriteFieldError(w, verr.Field, verr.Message)
	case errors.Is(err, ErrAccountNotFound):
		utilities.WriteError(w, http.StatusNotFound, "account_not_found", "verification link is not valid")
	case errors.Is(err, ErrNotRegistered):
		utilities.WriteError(w, http.StatusNotFound, "not_registered", "no account is registered with this email")
	case errors.Is(err, ErrBadCredentials):
		utilities.WriteError(w, http.StatusUnauthorized, "bad_credentials", err.Error())
	case errors.Is(err, ErrEmailDispatch):
		utilities.WriteError(w, http.StatusBadGateway, "email_failed", "email could not be sent")
	default:
		h.logger.Errorw("account request failed", "err", err)
		utilities.WriteError(w, http.StatusBadGateway, "failed", "request failed, please try again")
	}
}
