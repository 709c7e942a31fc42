package www

import (
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"xmixing/apiclient"
	"xmixing/engine"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	api      *apiclient.Client
	flash    *flashStore
	tmpl     *template.Template
	eventHub *EventHub

	loginPath string
	homePath  string
}

// NewRouter creates the chi router and returns it along with a stop function.
// eng must already be started.
func NewRouter(eng *engine.Engine, api *apiclient.Client) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		api:      api,
		flash:    newFlashStore(eng.AppConfig().Web.SessionSecret),
		eventHub: NewEventHub(),
	}

	funcMap := template.FuncMap{
		"join":      strings.Join,
		"pageTitle": pageTitle,
	}
	h.tmpl = template.Must(template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html", "templates/partials/*.html"))

	h.eventHub.Start()
	h.eventHub.SetupEngineListeners(eng)

	guardCfg := eng.AppConfig().Guard
	h.loginPath = orDefault(guardCfg.LoginPath, "/x80-UserLogin")
	h.homePath = orDefault(guardCfg.HomePath, "/")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(StaticFS()))))
	r.Get("/events", h.eventHub.HandleSSE)

	// Pages go through the navigation guard.
	r.Group(func(r chi.Router) {
		r.Use(eng.Guard().Middleware)

		r.Get(h.homePath, h.handleHome)
		r.Get("/x99-About", h.handleAbout)
		r.Get(h.loginPath, h.handleLoginPage)
		r.Post(h.loginPath, h.handleLogin)
		r.Get("/x81-UserRegister", h.handleRegisterPage)
		r.Post("/x81-UserRegister", h.handleRegister)

		for _, path := range stationPages(guardCfg.Permissions) {
			r.Get(path, h.handleStationPage)
		}
	})

	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)
		r.Get("/session", h.apiSession)
		r.Get("/scanner/status", h.apiScannerStatus)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/scanner/publish", h.apiScannerPublish)
			r.Post("/scanner/connect", h.apiScannerConnect)
			r.Post("/scanner/disconnect", h.apiScannerDisconnect)
		})
	})

	return r, func() {
		h.eventHub.Stop()
	}
}

// requireSession rejects API calls made without a signed-in operator.
func (h *Handlers) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.engine.Session().IsAuthenticated() {
			h.jsonError(w, "not signed in", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) render(w http.ResponseWriter, name string, data map[string]any) {
	user := h.engine.Session().Identity()
	data["User"] = user
	data["Authenticated"] = user != nil
	data["Scanner"] = h.engine.Scanner().Status()
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// stationPages lists the permission-mapped paths in a stable order.
func stationPages(perms map[string]string) []string {
	paths := make([]string, 0, len(perms))
	for p := range perms {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// pageTitle turns "/x30-ProductionPlan/plant-config" into "Production Plan / plant-config".
func pageTitle(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "Home"
	}
	head := parts[0]
	if i := strings.Index(head, "-"); i >= 0 {
		head = head[i+1:]
	}
	var b strings.Builder
	for i, c := range head {
		if i > 0 && c >= 'A' && c <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	parts[0] = b.String()
	return strings.Join(parts, " / ")
}
