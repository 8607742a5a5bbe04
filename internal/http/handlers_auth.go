package http

import (
	"errors"
	"net/http"

	"budgetmail/internal/auth"
	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
	"budgetmail/internal/services"
	"budgetmail/internal/storage"

	"github.com/go-chi/chi/v5"
)

const (
	msgInvalidLogin = "Invalid email or password"
	msgResetSent    = "If an account exists for that email, a reset link has been sent."
	msgResetInvalid = "This reset link is invalid or has expired."
	msgPasswordDone = "Your password has been reset. Please log in."
	msgServerError  = "Something went wrong. Please try again."
)

// signupMessage maps validation failures to the text shown on the form.
func signupMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, core.ErrEmptyUsername):
		return "Please choose a username.", true
	case errors.Is(err, core.ErrUsernameTooLong):
		return "Usernames can be at most 20 characters.", true
	case errors.Is(err, core.ErrInvalidEmail):
		return "Please enter a valid email address.", true
	case errors.Is(err, core.ErrWeakPassword):
		return "Passwords must be at least 8 characters.", true
	case errors.Is(err, storage.ErrDuplicateUser):
		return "That username or email is already registered.", true
	}
	return "", false
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", s.page(r, "Sign up"))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	username, email, password := p.Get("username"), p.Get("email"), p.GetSecret("password")

	data := s.page(r, "Sign up")
	data.Username, data.Email = username, email

	if _, err := s.deps.Accounts.Signup(r.Context(), username, email, password); err != nil {
		if msg, ok := signupMessage(err); ok {
			data.Error = msg
			s.render(w, r, http.StatusUnprocessableEntity, "signup.html", data)
			return
		}
		s.logger.WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Signup failed", "error", err)
		data.Error = msgServerError
		s.render(w, r, http.StatusInternalServerError, "signup.html", data)
		return
	}

	u, token, err := s.deps.Accounts.Login(r.Context(), email, password)
	if err != nil {
		s.logger.WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Login after signup failed", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.logger.WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "Account created",
		applog.FieldUserID, u.ID)
	s.setSession(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	data := s.page(r, "Log in")
	if r.URL.Query().Get("reset") == "1" {
		data.Notice = msgPasswordDone
	}
	s.render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	email := p.Get("email")

	u, token, err := s.deps.Accounts.Login(r.Context(), email, p.GetSecret("password"))
	if err != nil {
		data := s.page(r, "Log in")
		data.Email = email
		if errors.Is(err, services.ErrInvalidCredentials) {
			data.Error = msgInvalidLogin
			s.render(w, r, http.StatusUnauthorized, "login.html", data)
			return
		}
		s.logger.WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Login failed", "error", err)
		data.Error = msgServerError
		s.render(w, r, http.StatusInternalServerError, "login.html", data)
		return
	}

	s.setSession(w, token)
	s.logger.WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User logged in",
		applog.FieldUserID, u.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := currentUser(r.Context()); ok {
		s.forgetUser(u.ID)
	}
	s.clearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleForgotPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password.html", s.page(r, "Forgot password"))
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	email := p.Get("email")

	// Same answer whether or not the address is known, and whether or not
	// the mail went out.
	if err := s.deps.Accounts.RequestPasswordReset(r.Context(), email); err != nil {
		s.logger.WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Password reset request failed",
			"error", err)
	}

	data := s.page(r, "Forgot password")
	data.Notice = msgResetSent
	s.render(w, r, http.StatusOK, "forgot_password.html", data)
}

func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	data := s.page(r, "Reset password")

	if _, err := s.deps.Accounts.CheckResetToken(r.Context(), token); err != nil {
		s.resetFailed(w, r, data, err)
		return
	}
	data.Token = token
	s.render(w, r, http.StatusOK, "reset_password.html", data)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	data := s.page(r, "Reset password")

	p := NewRequestBodyParser(r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	password, confirm := p.GetSecret("password"), p.GetSecret("confirm_password")

	if password != confirm {
		data.Token = token
		data.Error = "Passwords do not match."
		s.render(w, r, http.StatusUnprocessableEntity, "reset_password.html", data)
		return
	}

	if err := s.deps.Accounts.ResetPassword(r.Context(), token, password); err != nil {
		if errors.Is(err, core.ErrWeakPassword) {
			data.Token = token
			data.Error = "Passwords must be at least 8 characters."
			s.render(w, r, http.StatusUnprocessableEntity, "reset_password.html", data)
			return
		}
		s.resetFailed(w, r, data, err)
		return
	}
	http.Redirect(w, r, "/login?reset=1", http.StatusSeeOther)
}

func (s *Server) resetFailed(w http.ResponseWriter, r *http.Request, data pageData, err error) {
	if errors.Is(err, auth.ErrInvalidToken) {
		data.Error = msgResetInvalid
		s.render(w, r, http.StatusBadRequest, "reset_password.html", data)
		return
	}
	s.logger.WithComponent(applog.ComponentAuth).ErrorContext(r.Context(), "Password reset failed", "error", err)
	data.Error = msgServerError
	s.render(w, r, http.StatusInternalServerError, "reset_password.html", data)
}
