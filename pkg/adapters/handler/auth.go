package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/config"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie     = "oauthstate"
	googleUserInfo  = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookieLife = 20 * time.Minute
)

type AuthHandler struct {
	auth          ports.AuthService
	logger        *logging.Logger
	oauthConfig   *oauth2.Config
	userInfoURL   string
	frontendURL   string
	allowedEmails []string
	isProduction  bool
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, auth ports.AuthService, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuthHandler{
		auth:   auth,
		logger: logger,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL:   googleUserInfo,
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
	}
}

// GoogleEnabled reports whether Google login is configured.
func (h *AuthHandler) GoogleEnabled() bool {
	return h.oauthConfig.ClientID != ""
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, token, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "User registered successfully", session{Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Login successful", session{Token: token, User: user})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Profile(r.Context(), PrincipalFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", user)
}

// Refresh issues a new token for the already authenticated caller.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Profile(r.Context(), PrincipalFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	token, _, err := h.auth.IssueToken(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Token refreshed", session{Token: token, User: user})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	oauthState, err := r.Cookie(stateCookie)
	if err != nil {
		h.logger.Warn(ctx, "oauth callback without state cookie")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		h.logger.Warn(ctx, "oauth state mismatch")
		writeFail(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	token, err := h.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		h.logger.Error(ctx, "oauth code exchange failed", "error", err)
		writeFail(w, http.StatusBadGateway, "Code exchange failed")
		return
	}

	googleUser, err := h.fetchGoogleUser(r, token)
	if err != nil {
		h.logger.Error(ctx, "fetching google user failed", "error", err)
		writeFail(w, http.StatusBadGateway, "Failed getting user info")
		return
	}

	email := strings.ToLower(googleUser.Email)
	if len(h.allowedEmails) > 0 && !slices.Contains(h.allowedEmails, email) {
		h.logger.LogAuthEvent(ctx, "google_login_denied", email, false)
		writeFail(w, http.StatusForbidden, "Access denied: your email is not in the allowlist")
		return
	}

	user, _, err := h.auth.LoginExternal(ctx, email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	// The cookie lives exactly as long as the token inside it.
	jwtToken, expiresAt, err := h.auth.IssueToken(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setAuthCookie(w, jwtToken, expiresAt)
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchGoogleUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(r.Context(), token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	if user.Email == "" || !user.VerifiedEmail {
		return nil, fmt.Errorf("google account has no verified email")
	}
	return &user, nil
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setAuthCookie(w, "", time.Now().Add(-1*time.Hour))
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(stateCookieLife),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
