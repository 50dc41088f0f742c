//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestLogin_WrongPassword(t *testing.T) {
	_, status, err := login(adminEmail, "not-the-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, status, err := login("nobody@example.com", "whatever1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestProtectedRoute_NoToken(t *testing.T) {
	resp := doGet(t, "/api/v1/products", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRoute_InvalidToken(t *testing.T) {
	resp := doGet(t, "/api/v1/products", "not-a-valid-token")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRefresh_IssuesNewPair(t *testing.T) {
	pair, status, err := login(adminEmail, adminPassword)
	if err != nil || status != http.StatusOK {
		t.Fatalf("login: status %d, err %v", status, err)
	}

	resp := doPost(t, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	rotated := decodeJSON[tokenPair](t, resp)
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatal("refresh returned an empty token pair")
	}

	// The new access token must work on a protected route.
	check := doGet(t, "/api/v1/products", rotated.AccessToken)
	defer check.Body.Close()
	if check.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with rotated token, got %d", check.StatusCode)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	resp := doPost(t, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": adminToken})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUsers_RequireAdminRole(t *testing.T) {
	// Create a regular account as admin, then sign in with it.
	create := doPost(t, "/api/v1/users", adminToken, map[string]string{
		"email":    "vendedor@distriplus.local",
		"password": "vendedor-pass-1",
		"name":     "Juan",
		"lastname": "Perez",
		"role":     "user",
	})
	defer create.Body.Close()
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", create.StatusCode)
	}

	pair, status, err := login("vendedor@distriplus.local", "vendedor-pass-1")
	if err != nil || status != http.StatusOK {
		t.Fatalf("login as user: status %d, err %v", status, err)
	}

	// A regular account can use the catalog but not manage accounts.
	catalog := doGet(t, "/api/v1/products", pair.AccessToken)
	defer catalog.Body.Close()
	if catalog.StatusCode != http.StatusOK {
		t.Fatalf("catalog as user: expected 200, got %d", catalog.StatusCode)
	}

	users := doGet(t, "/api/v1/users", pair.AccessToken)
	defer users.Body.Close()
	if users.StatusCode != http.StatusForbidden {
		t.Fatalf("users as user: expected 403, got %d", users.StatusCode)
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	pair, status, err := login(adminEmail, adminPassword)
	if err != nil || status != http.StatusOK {
		t.Fatalf("login: status %d, err %v", status, err)
	}

	out := doPost(t, "/api/v1/auth/logout", pair.AccessToken, nil)
	defer out.Body.Close()
	if out.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", out.StatusCode)
	}

	refresh := doPost(t, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	defer refresh.Body.Close()
	if refresh.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", refresh.StatusCode)
	}
}
