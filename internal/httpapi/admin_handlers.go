package httpapi

import (
	"net/http"
	"strconv"

	"studentportal.org/internal/mutate"
	"studentportal.org/internal/portal"
)

func (a *API) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.AdminDashboard(r.Context())
	if err != nil {
		a.handleError(w, r, err, "Failed to load dashboard data")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleManageStudents(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.ManageStudents(r.Context())
	if err != nil {
		a.handleError(w, r, err, "Failed to load students")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleStudentDetail(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.StudentDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err, "Failed to load student enrollments")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleManageCourses(w http.ResponseWriter, r *http.Request) {
	view, err := a.queries.ManageCourses(r.Context())
	if err != nil {
		a.handleError(w, r, err, "Failed to load courses")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var in portal.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.ops.CreateCourse(r.Context(), in)
	if err != nil {
		a.handleError(w, r, err, "Failed to save course")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var in portal.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.ops.UpdateCourse(r.Context(), r.PathValue("id"), in)
	a.writeMutation(w, r, view, err, "Failed to save course")
}

func (a *API) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	view, err := a.ops.DeleteCourse(r.Context(), r.PathValue("id"), mutate.Confirmed(confirmed))
	if err != nil && statusFor(err) == http.StatusPreconditionRequired {
		writeError(w, r, http.StatusPreconditionRequired, "deleting a course requires confirm=true")
		return
	}
	a.writeMutation(w, r, view, err, "Failed to delete course")
}
