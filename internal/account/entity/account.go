package entity

// TimeLayout is the store-local format of account timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Account is one registered identity in the accounts collection.
// PasswordHash is never serialized to API responses; see View.
type Account struct {
	ID               string `json:"-"`
	UID              string `json:"uid"`
	Email            string `json:"email"`
	DisplayName      string `json:"displayName,omitempty"`
	PasswordHash     string `json:"passwordHash"`
	PasswordAlgo     string `json:"passwordAlgo"`
	EmailVerified    bool   `json:"emailVerified"`
	VerificationLink string `json:"verificationLink"`
	CreatedAt        string `json:"createdAt"`
	LastLogin        string `json:"lastLogin,omitempty"`
	VerifiedAt       string `json:"verifiedAt,omitempty"`
	PasswordUpdated  string `json:"passwordUpdatedAt,omitempty"`
}

// View is the projection returned to clients and cached in the session.
type View struct {
	ID            string `json:"id"`
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// View returns the client-safe projection of a.
func (a *Account) View() View {
	return View{ID: a.ID, UID: a.UID, Email: a.Email, DisplayName: a.DisplayName, EmailVerified: a.EmailVerified}
}
