package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/uidai-stress/internal/export"
)

// DownloadHandler serves the run artefacts for download.
type DownloadHandler struct {
	Dir string
}

// downloadable maps URL names to artefact files; nothing else under the
// output directory is served.
var downloadable = map[string]string{
	"recommendations": export.RecommendationsFile,
	"requirements":    export.RequirementsFile,
	"master":          export.MasterFile,
	"workbook":        export.WorkbookFile,
	"quality":         export.QualityFile,
}

// Download streams one export artefact.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	file, ok := downloadable[name]
	if !ok {
		writeError(w, "unknown download "+name, http.StatusNotFound)
		return
	}

	path := filepath.Join(h.Dir, file)
	if _, err := os.Stat(path); err != nil {
		writeError(w, file+" has not been generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+file)
	http.ServeFile(w, r, path)
}
