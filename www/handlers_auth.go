package www

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"xmixing/apiclient"
)

// apiFor returns a back-end client addressed through the host the browser
// used for r.
func (h *Handlers) apiFor(r *http.Request) *apiclient.Client {
	api := h.engine.AppConfig().API
	return h.api.WithBaseURL(func() string { return api.APIBaseURL(r) })
}

func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := h.safeRedirect(r.URL.Query().Get("redirect"))
	if h.engine.Session().IsAuthenticated() {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	h.render(w, "login.html", map[string]any{
		"Page":     "login",
		"Redirect": redirect,
		"Username": "",
		"Flashes":  h.flash.take(w, r),
	})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.FormValue("username_or_email"))
	password := r.FormValue("password")
	redirect := h.safeRedirect(r.FormValue("redirect"))

	fail := func(status int, msg string) {
		w.WriteHeader(status)
		h.render(w, "login.html", map[string]any{
			"Page":     "login",
			"Redirect": redirect,
			"Username": username,
			"Error":    msg,
		})
	}

	if username == "" || password == "" {
		fail(http.StatusBadRequest, "Enter your username or email and password")
		return
	}

	resp, err := h.apiFor(r).Login(r.Context(), username, password)
	if errors.Is(err, apiclient.ErrInvalidCredentials) {
		fail(http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		log.Printf("www: login for %s: %v", username, err)
		fail(http.StatusBadGateway, "Sign-in service unavailable")
		return
	}

	if err := h.engine.Login(r.Context(), resp.User, resp.AccessToken); err != nil {
		log.Printf("www: store session for %s: %v", username, err)
		fail(http.StatusInternalServerError, "Could not save the session")
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context()); err != nil {
		log.Printf("www: logout: %v", err)
		http.Error(w, "Could not sign out", http.StatusInternalServerError)
		return
	}
	h.flash.add(w, r, "Signed out")
	http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
}

func (h *Handlers) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register.html", map[string]any{
		"Page": "register",
	})
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := apiclient.RegisterRequest{
		Username:   strings.TrimSpace(r.FormValue("username")),
		Email:      strings.TrimSpace(r.FormValue("email")),
		Password:   r.FormValue("password"),
		FullName:   strings.TrimSpace(r.FormValue("full_name")),
		Department: strings.TrimSpace(r.FormValue("department")),
	}

	fail := func(status int, msg string) {
		w.WriteHeader(status)
		h.render(w, "register.html", map[string]any{
			"Page":  "register",
			"Form":  req,
			"Error": msg,
		})
	}

	if req.Username == "" || req.Email == "" {
		fail(http.StatusBadRequest, "Username and email are required")
		return
	}
	if len(req.Password) < 6 {
		fail(http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	if _, err := h.apiFor(r).Register(r.Context(), req); err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			fail(apiErr.Status, apiErr.Detail)
			return
		}
		log.Printf("www: register %s: %v", req.Username, err)
		fail(http.StatusBadGateway, "Registration service unavailable")
		return
	}
	h.flash.add(w, r, "Account created. Sign in to continue.")
	http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
}

// safeRedirect keeps post-login navigation on this station.
func (h *Handlers) safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return h.homePath
	}
	if target == h.loginPath || strings.HasPrefix(target, h.loginPath+"?") {
		return h.homePath
	}
	return target
}
