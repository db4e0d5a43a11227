package handlers

import "net/http"

// assetStatus reports cache and queue counters.
func (r *Router) assetStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.cache.Status())
}

// clearAssets wipes the current cache generation and the download queue.
func (r *Router) clearAssets(w http.ResponseWriter, req *http.Request) {
	if err := r.cache.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear asset cache")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// resumeAssets kicks the download worker, e.g. after connectivity returns.
func (r *Router) resumeAssets(w http.ResponseWriter, req *http.Request) {
	r.cache.Resume()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "resumed"})
}

// getAsset serves one cached binary by its source URL (?url=...). The
// terminal uses this instead of hitting the CDN, so images work offline.
func (r *Router) getAsset(w http.ResponseWriter, req *http.Request) {
	url := req.URL.Query().Get("url")
	if url == "" {
		respondError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	asset, err := r.repo.CachedAsset(url)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load asset")
		return
	}
	if asset == nil {
		respondError(w, http.StatusNotFound, "Asset not cached")
		return
	}

	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Write(asset.Data)
}
