package handlers

import (
	"net/http"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/models"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
)

// NavItem is one entry of the dashboard sidebar
type NavItem struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Group string `json:"group,omitempty"`
}

// NavResponse is the protected dashboard shell
type NavResponse struct {
	User  models.UserInfo `json:"user"`
	Items []NavItem       `json:"items"`
}

// navCatalog is the fixed set of dataset views behind the gate
var navCatalog = []NavItem{
	{Key: "dashboard", Title: "Dashboard", Path: "/"},
	{Key: "intern-entry", Title: "Student Intern Entry", Path: "/internship/entry", Group: "Internship"},
	{Key: "intern-database", Title: "Intern Database", Path: "/internship/database", Group: "Internship"},
	{Key: "course-entry", Title: "Course Entry", Path: "/course/entry", Group: "Course"},
	{Key: "course-database", Title: "Course Database", Path: "/course/database", Group: "Course"},
	{Key: "career-registration", Title: "Career Registration", Path: "/registrations/careers", Group: "Registrations"},
	{Key: "course-registration", Title: "Course Registration", Path: "/registrations/course", Group: "Registrations"},
	{Key: "internship-registration", Title: "Internship Registration", Path: "/registrations/internship", Group: "Registrations"},
	{Key: "rd-registration", Title: "R & D Registration", Path: "/registrations/rd", Group: "Registrations"},
	{Key: "ideaforge", Title: "IdeaForge", Path: "/ideaforge"},
}

// NavHandler serves the dashboard navigation
type NavHandler struct{}

// NewNavHandler creates a new NavHandler
func NewNavHandler() *NavHandler {
	return &NavHandler{}
}

// Nav handles GET /dashboard/nav. Must run behind auth.RequireSession.
func (h *NavHandler) Nav(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not signed in")
		return
	}

	items := make([]NavItem, len(navCatalog))
	copy(items, navCatalog)
	pkghttp.WriteJSON(w, http.StatusOK, NavResponse{
		User:  models.UserInfo{Username: claims.Username, Role: claims.Role},
		Items: items,
	})
}
