package www

import (
	"net/http"

	"xmixing/guard"
)

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Page":     "home",
		"LastScan": h.engine.Scanner().LastScan(),
		"History":  h.engine.Scanner().History(),
		"Flashes":  h.flash.take(w, r),
		"Pages":    h.visiblePages(),
	}
	if r.URL.Query().Get("error") == guard.ReasonNoPermission {
		data["Error"] = "You do not have permission to open that page"
	}
	h.render(w, "home.html", data)
}

func (h *Handlers) handleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, "about.html", map[string]any{
		"Page":     "about",
		"Headless": h.engine.Headless(),
		"Topics":   h.engine.AppConfig().Broker.Topics,
	})
}

func (h *Handlers) handleStationPage(w http.ResponseWriter, r *http.Request) {
	perm, _ := h.engine.Guard().RequiredPermission(r.URL.Path)
	h.render(w, "page.html", map[string]any{
		"Page":       r.URL.Path,
		"Title":      pageTitle(r.URL.Path),
		"Permission": perm,
	})
}

// visiblePages lists the station pages the current operator may open.
func (h *Handlers) visiblePages() []string {
	s := h.engine.Session()
	var out []string
	for _, path := range stationPages(h.engine.AppConfig().Guard.Permissions) {
		perm, _ := h.engine.Guard().RequiredPermission(path)
		if s.HasPermission(perm) {
			out = append(out, path)
		}
	}
	return out
}
