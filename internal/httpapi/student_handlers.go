package httpapi

import (
	"net/http"

	"studentportal.org/internal/aggregate"
)

type enrollRequest struct {
	CourseID string `json:"course_id"`
}

type dropRequest struct {
	CourseID string `json:"course_id"`
	Reason   string `json:"reason"`
}

func (a *API) handleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.StudentDashboard(r.Context(), currentSession(r).SubjectID)
	if err != nil {
		a.handleError(w, r, err, "Failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleBrowseCourses(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.BrowseCourses(r.Context(), currentSession(r).SubjectID)
	if err != nil {
		a.handleError(w, r, err, "Failed to load courses")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleMyCourses(w http.ResponseWriter, r *http.Request) {
	filter, err := aggregate.ParseFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "status must be one of all, enrolled, completed, dropped")
		return
	}
	view, err := a.queries.MyCourses(r.Context(), currentSession(r).SubjectID, filter)
	if err != nil {
		a.handleError(w, r, err, "Failed to load your courses")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.ops.Enroll(r.Context(), currentSession(r).SubjectID, req.CourseID)
	a.writeMutation(w, r, view, err, "Failed to enroll")
}

func (a *API) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.ops.Drop(r.Context(), currentSession(r).SubjectID, req.CourseID, req.Reason)
	a.writeMutation(w, r, view, err, "Failed to drop course")
}
