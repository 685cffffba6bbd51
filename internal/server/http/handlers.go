package internalhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gatherly/gatherly/internal/app"
	"github.com/gatherly/gatherly/internal/auth"
	"github.com/gatherly/gatherly/internal/storage"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxUploadSize = 10 << 20

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeStoreError maps storage and core errors onto the API statuses. No
// internal detail crosses the boundary; unexpected errors get logged and
// turn into a generic 500.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFoundEvent):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, storage.ErrAlreadyJoined):
		writeError(w, http.StatusBadRequest, "you have already joined this event")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "only the event owner may do this")
	case errors.Is(err, storage.ErrEmptyField), errors.Is(err, storage.ErrIncorrectEventTime):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.auth.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) || errors.Is(err, storage.ErrEmptyField) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, u, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  storage.User `json:"user"`
	}{Token: token, User: u})
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	e := storage.Event{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		Time:        r.FormValue("time"),
		Location:    r.FormValue("location"),
		Tags:        parseTags(r.Form["tags"]),
	}
	image, err := s.saveImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to store image")
		return
	}
	e.Image = image

	created, err := s.app.CreateEvent(r.Context(), e, userID)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyField) || errors.Is(err, storage.ErrIncorrectEventTime) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Creation failures surface as 400 regardless of cause.
		log.Errorf("failed to create event: %v", err)
		writeError(w, http.StatusBadRequest, "event creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.app.ListEvents(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.GetEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) joinEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	e, err := s.app.JoinEvent(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	var u storage.EventUpdate
	u.Title = formValue(r, "title")
	u.Description = formValue(r, "description")
	u.Date = formValue(r, "date")
	u.Time = formValue(r, "time")
	u.Location = formValue(r, "location")
	if _, ok := r.Form["tags"]; ok {
		u.Tags = parseTags(r.Form["tags"])
	}
	if image, err := s.saveImage(r); err != nil {
		writeError(w, http.StatusBadRequest, "failed to store image")
		return
	} else if image != "" {
		u.Image = &image
	}

	updated, err := s.app.UpdateEvent(r.Context(), mux.Vars(r)["id"], u, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := s.app.RemoveEvent(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "event removed"})
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadSize)
	}
	return r.ParseForm()
}

// parseTags accepts either repeated tags fields or one comma-separated
// value; insertion order is kept for stable display.
func parseTags(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			tags = append(tags, v)
		}
	}
	return tags
}

func formValue(r *http.Request, key string) *string {
	values, ok := r.Form[key]
	if !ok && r.MultipartForm != nil {
		values, ok = r.MultipartForm.Value[key]
	}
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// saveImage stores the optional multipart image and returns its reference;
// empty means no image was attached.
func (s *Server) saveImage(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	return s.blobs.Save(header.Filename, file)
}
