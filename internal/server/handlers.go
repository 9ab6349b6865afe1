package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/packhouse/packhouse/internal/manager"
	"github.com/packhouse/packhouse/internal/repository"
	"github.com/packhouse/packhouse/internal/types"
)

// repositorySummary is the wire shape of one repository.
type repositorySummary struct {
	Name      string     `json:"name"`
	Directory string     `json:"directory"`
	Packages  int        `json:"packages"`
	Invalid   int        `json:"invalid"`
	LastScan  *time.Time `json:"last_scan,omitempty"`
}

// packageView is the wire shape of one package.
type packageView struct {
	Identifier string            `json:"identifier"`
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	Items      []string          `json:"items"`
	Fields     map[string]string `json:"fields,omitempty"`
	LastWalk   *time.Time        `json:"last_walk,omitempty"`
}

func summarize(repo *repository.Repository) repositorySummary {
	s := repositorySummary{
		Name:      repo.Name(),
		Directory: repo.Root(),
		Packages:  repo.Count(),
		Invalid:   len(repo.InvalidPackages()),
	}
	if last := repo.LastScan(); !last.IsZero() {
		s.LastScan = &last
	}
	return s
}

func viewPackage(pkg *types.PackageInfo) packageView {
	v := packageView{
		Identifier: pkg.Identifier,
		Name:       pkg.Name,
		Path:       pkg.Path,
		Items:      pkg.Items,
		Fields:     pkg.Fields,
	}
	if !pkg.LastWalk.IsZero() {
		walk := pkg.LastWalk
		v.LastWalk = &walk
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeManagerError maps the manager's typed errors onto HTTP statuses.
func writeManagerError(w http.ResponseWriter, err error) {
	var repoNotFound *manager.ErrRepositoryNotFound
	var pkgNotFound *manager.ErrPackageNotFound
	switch {
	case errors.As(err, &repoNotFound), errors.As(err, &pkgNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListRepositories(w http.ResponseWriter, _ *http.Request) {
	repos := s.manager.Repositories()
	summaries := make([]repositorySummary, 0, len(repos))
	for _, repo := range repos {
		summaries = append(summaries, summarize(repo))
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "repo")
	if err := s.manager.ScanRepository(r.Context(), name); err != nil {
		writeManagerError(w, err)
		return
	}
	repo, _ := s.manager.Repository(name)
	writeJSON(w, http.StatusOK, summarize(repo))
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.manager.Repository(chi.URLParam(r, "repo"))
	if !ok {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	packages := repo.Packages()
	views := make([]packageView, 0, len(packages))
	for _, pkg := range packages {
		views = append(views, viewPackage(pkg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListInvalid(w http.ResponseWriter, r *http.Request) {
	invalid, err := s.manager.InvalidPackages(chi.URLParam(r, "repo"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	views := make([]packageView, 0, len(invalid))
	for _, pkg := range invalid {
		views = append(views, viewPackage(pkg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.manager.Package(chi.URLParam(r, "repo"), chi.URLParam(r, "identifier"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPackage(pkg))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	repoName := chi.URLParam(r, "repo")
	identifier := chi.URLParam(r, "identifier")

	// resolve first so lookup failures still get a JSON error response
	if _, err := s.manager.Package(repoName, identifier); err != nil {
		writeManagerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", identifier+".zip"))
	if err := s.manager.ExportPackage(r.Context(), repoName, identifier, w); err != nil {
		// headers are already out; the truncated stream is the signal
		s.log.Error("archive export failed",
			"repository", repoName, "identifier", identifier, "error", err)
	}
}
