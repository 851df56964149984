package handlers

import (
	"errors"
	"net/http"

	"trendpulse/internal/auth"
	"trendpulse/internal/metrics"
)

var errInternal = errors.New("internal error")

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("email and a password of at least 8 characters are required"))
		return
	}

	user, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			metrics.AuthAttempts.WithLabelValues("register", "duplicate").Inc()
			respondError(w, http.StatusBadRequest, err)
			return
		}
		a.log.Error().Err(err).Msg("register")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Please verify your email.",
		"user":    viewUser(user),
	})
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}

	var userAgent, ip *string
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	if addr := r.RemoteAddr; addr != "" {
		ip = &addr
	}

	result, err := a.auth.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		UserAgent:  userAgent,
		IPAddress:  ip,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.AuthAttempts.WithLabelValues("login", "rejected").Inc()
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		a.log.Error().Err(err).Msg("login")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    result.ExpiresIn,
		"user":          viewUser(result.User),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("refresh_token is required"))
		return
	}

	result, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			metrics.AuthAttempts.WithLabelValues("refresh", "rejected").Inc()
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		a.log.Error().Err(err).Msg("refresh")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	metrics.AuthAttempts.WithLabelValues("refresh", "success").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"token_type":   "bearer",
		"expires_in":   result.ExpiresIn,
	})
}

type logoutRequest struct {
	RefreshToken     string `json:"refresh_token"`
	LogoutAllDevices bool   `json:"logout_all_devices"`
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	// The body is optional: without a refresh token a non-all-devices
	// logout removes nothing, and logout is idempotent either way.
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		req = logoutRequest{}
	}

	removed, err := a.auth.Logout(r.Context(), user.ID, req.RefreshToken, req.LogoutAllDevices)
	if err != nil {
		a.log.Error().Err(err).Msg("logout")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":          "Logged out successfully.",
		"sessions_removed": removed,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("a valid email is required"))
		return
	}

	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.log.Error().Err(err).Msg("forgot password")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	// Identical response whether or not the account exists.
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "If that email is registered, a reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("token and a new password of at least 8 characters are required"))
		return
	}

	if err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalidOrUsed), errors.Is(err, auth.ErrTokenExpired):
			metrics.AuthAttempts.WithLabelValues("reset_password", "rejected").Inc()
			respondError(w, http.StatusBadRequest, err)
		default:
			a.log.Error().Err(err).Msg("reset password")
			respondError(w, http.StatusInternalServerError, errInternal)
		}
		return
	}

	metrics.AuthAttempts.WithLabelValues("reset_password", "success").Inc()
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, errors.New("token query parameter is required"))
		return
	}

	if err := a.auth.VerifyEmail(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalidOrUsed), errors.Is(err, auth.ErrTokenExpired):
			respondError(w, http.StatusBadRequest, err)
		default:
			a.log.Error().Err(err).Msg("verify email")
			respondError(w, http.StatusInternalServerError, errInternal)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified."})
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, errors.New("email query parameter is required"))
		return
	}

	if err := a.auth.ResendVerification(r.Context(), email); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailNotFound), errors.Is(err, auth.ErrAlreadyVerified):
			respondError(w, http.StatusBadRequest, err)
		default:
			a.log.Error().Err(err).Msg("resend verification")
			respondError(w, http.StatusInternalServerError, errInternal)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent."})
}
