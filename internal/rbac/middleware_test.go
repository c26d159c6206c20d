package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"webconferencing/internal/auth"

	"github.com/gin-gonic/gin"
)

func withIdentity(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdministratorBypasses(t *testing.T) {
	if code := serve(t, withIdentity("u", RoleAdministrator), RequireAnyRole(RoleUser)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_GuestDeniedUnlessAllowed(t *testing.T) {
	if code := serve(t, withIdentity("g", RoleGuest), RequireAnyRole(RoleUser)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, withIdentity("g", RoleGuest), RequireAnyRole(RoleUser, RoleGuest)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireUser(t *testing.T) {
	if code := serve(t, RequireUser()); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := serve(t, withIdentity("u", RoleUser), RequireUser()); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}
