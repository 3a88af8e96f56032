package backend

import (
	"net/http"
	"sort"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/galaxy/core/logger"
)

// routeDescription is one entry of the sitemap
type routeDescription struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

// handleSitemap adds a route which lists all routes of router
func (b *Backend) handleSitemap(router *mux.Router) {
	logger.Default().Debugln("  handle sitemap route: / GET")
	router.Handle("/", handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)

		methodsByPath := map[string]map[string]bool{}
		err := router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
			path, err := route.GetPathTemplate()
			if err != nil {
				return nil
			}
			methods, err := route.GetMethods()
			if err != nil {
				return nil
			}
			if methodsByPath[path] == nil {
				methodsByPath[path] = map[string]bool{}
			}
			for _, method := range methods {
				if method != http.MethodOptions {
					methodsByPath[path][method] = true
				}
			}
			return nil
		})
		if err != nil {
			logger.FromContext(r.Context()).WithError(err).Errorln("Error 4721: cannot walk routes")
			writeMessage(w, http.StatusInternalServerError, "Error 4721: sitemap failed")
			return
		}

		sitemap := []routeDescription{}
		for path, methods := range methodsByPath {
			rd := routeDescription{Path: path, Methods: []string{}}
			for method := range methods {
				rd.Methods = append(rd.Methods, method)
			}
			sort.Strings(rd.Methods)
			sitemap = append(sitemap, rd)
		}
		sort.Slice(sitemap, func(i, j int) bool { return sitemap[i].Path < sitemap[j].Path })
		writeJSON(w, http.StatusOK, sitemap)
	}))).Methods(http.MethodOptions, http.MethodGet)
}
