package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docseg/internal/pipeline"
	"github.com/dgallion1/docseg/internal/segmenter"
)

// formOverhead is the extra request budget allowed for multipart framing.
const formOverhead = 1024 * 1024

// handleSegment segments one upload synchronously and returns the segments.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromUpload(w, r)
	if !ok {
		return
	}

	s.orchestrator.Run(r.Context(), job)

	snap := job.Snapshot()
	code := http.StatusOK
	if snap.Status == pipeline.StatusFailed {
		code = http.StatusUnprocessableEntity
		if snap.Phase == "detecting" {
			code = http.StatusUnsupportedMediaType
		}
		jsonError(w, strings.Join(snap.Progress.Errors, "; "), code)
		return
	}

	resp := map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"progress": snap.Progress,
	}
	addSegments(resp, job, r.FormValue("format"))
	writeJSON(w, code, resp)
}

// handleSubmitJob queues one upload and returns immediately.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromUpload(w, r)
	if !ok {
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   pipeline.StatusQueued,
		"poll_url": pollURL(job.ID),
	})
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes*int64(s.cfg.MaxBatchFiles) + 10*formOverhead
	if !parseUploadForm(w, r, limit, 64<<20) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > s.cfg.MaxBatchFiles {
		jsonError(w, fmt.Sprintf("too many files (%d > %d)", len(files), s.cfg.MaxBatchFiles), http.StatusBadRequest)
		return
	}

	opts, err := s.segmentOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)

		data, err := s.readFile(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, "", data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"job_id":   job.ID,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"doc_id":   job.DocID,
			"status":   pipeline.StatusQueued,
			"poll_url": pollURL(job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

// jobFromUpload reads the multipart "file" field and the option overrides.
// On failure the error response has been written and ok is false.
func (s *Server) jobFromUpload(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	if !parseUploadForm(w, r, s.cfg.MaxUploadBytes+formOverhead, 32<<20) {
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	opts, err := s.segmentOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	return pipeline.NewJob(sanitizeFilename(header.Filename), r.FormValue("title"), data, opts), true
}

// parseUploadForm caps the request body at limit and parses the multipart
// form. A body over the cap is answered with 413, any other form error with
// 400.
func parseUploadForm(w http.ResponseWriter, r *http.Request, limit, maxMemory int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(maxMemory)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		return false
	}
	jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
	return false
}

var errFileTooLarge = errors.New("file too large")

func (s *Server) readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.cfg.MaxUploadBytes {
		return nil, errFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, errFileTooLarge
	}
	return data, nil
}

// segmentOptions applies form overrides on top of the configured defaults.
func (s *Server) segmentOptions(r *http.Request) (segmenter.Options, error) {
	opts := s.orchestrator.DefaultOptions()
	if v := r.FormValue("include_sub_chapters"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("include_sub_chapters: %q is not a boolean", v)
		}
		opts.IncludeSubChapters = b
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"min_chapter_length", &opts.MinChapterLength},
		{"max_chapter_length", &opts.MaxChapterLength},
	}
	for _, f := range ints {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("%s: %q is not a positive integer", f.name, v)
		}
		*f.dst = n
	}
	return opts, nil
}

// addSegments renders the job's segments, as langchaingo documents when
// format is "langchain".
func addSegments(resp map[string]any, job *pipeline.Job, format string) {
	segs := job.Segments()
	if format == "langchain" {
		resp["documents"] = segmenter.ToSchemaDocuments(segs)
		return
	}
	if segs == nil {
		resp["segments"] = []any{}
		return
	}
	resp["segments"] = segs
}

func pollURL(jobID string) string {
	return fmt.Sprintf("/api/segment/jobs/%s", jobID)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
