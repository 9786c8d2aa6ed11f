// Package root serves GET /, a static description of the API that doubles
// as a "the server is up" check.
package root

import (
	"net/http"

	"github.com/aanand-mishra/student-records/internal/utils/response"
)

// Version is reported by GET / and logged at startup.
const Version = "1.0.0"

// Descriptor is the body of GET /.
type Descriptor struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

var descriptor = Descriptor{
	Message: "Students API",
	Version: Version,
	Endpoints: map[string]string{
		"create": "POST /students/",
		"list":   "GET /students/",
		"get":    "GET /students/{id}",
		"update": "PUT /students/{id}",
		"delete": "DELETE /students/{id}",
	},
}

// Index handles GET /.
func Index() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = response.WriteJSON(w, http.StatusOK, descriptor)
	}
}
