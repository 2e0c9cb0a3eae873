package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

const testKey = "anon-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != testKey {
			http.Error(w, `{"message":"no api key"}`, http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewClient(config.BackendConfig{URL: server.URL, APIKey: testKey}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRecordsListOrdered(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/repair_requests" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("order"); got != "createdAt.desc,id.desc" {
			t.Errorf("order = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `[
			{"id":"REQ-B","status":"pending","technician_note":null,"attachments":null,"createdAt":"2026-02-12T10:05:00.123+00:00"},
			{"id":"REQ-A","status":"completed","technician_note":"done","attachments":["https://x/y.png"],"createdAt":"2026-02-11T09:00:00Z"}
		]`)
	})

	records, err := NewRecords(client).ListOrdered(context.Background())
	if err != nil {
		t.Fatalf("ListOrdered: %v", err)
	}
	if len(records) != 2 || records[0].ID != "REQ-B" {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Attachments == nil || records[0].TechnicianNote != "" {
		t.Errorf("null columns not normalised: %+v", records[0])
	}
	if records[1].TechnicianNote != "done" || records[1].Status != domain.StatusCompleted {
		t.Errorf("second = %+v", records[1])
	}
}

func TestRecordsGetByIDNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "eq.REQ-NOPE" {
			t.Errorf("id filter = %q", got)
		}
		io.WriteString(w, `[]`)
	})
	if _, err := NewRecords(client).GetByID(context.Background(), "REQ-NOPE"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRecordsInsert(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("method %s prefer %q", r.Method, r.Header.Get("Prefer"))
		}
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil || len(rows) != 1 {
			t.Errorf("body = %v, %v", rows, err)
			return
		}
		if rows[0]["id"] == "REQ-TAKEN" {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate key value", "code": "23505"})
			return
		}
		writeJSON(w, http.StatusCreated, rows)
	})
	records := NewRecords(client)
	request := &domain.RepairRequest{
		ID:        "REQ-NEW",
		Email:     "a@company.com",
		Status:    domain.StatusPending,
		CreatedAt: time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC),
	}
	created, err := records.Insert(context.Background(), request)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created.ID != "REQ-NEW" || !created.CreatedAt.Equal(request.CreatedAt) {
		t.Errorf("created = %+v", created)
	}

	request.ID = "REQ-TAKEN"
	if _, err := records.Insert(context.Background(), request); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("duplicate error = %v, want ErrConflict", err)
	}
}

func TestRecordsUpdateSendsOnlyPatchedField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body) != 1 || body["technician_note"] != "swapped cable" {
			t.Errorf("patch body = %v", body)
		}
		if r.URL.Query().Get("id") == "eq.REQ-GONE" {
			io.WriteString(w, `[]`)
			return
		}
		io.WriteString(w, `[{"id":"REQ-1"}]`)
	})
	records := NewRecords(client)
	note := "swapped cable"
	if err := records.Update(context.Background(), "REQ-1", repository.RequestPatch{TechnicianNote: &note}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := records.Update(context.Background(), "REQ-GONE", repository.RequestPatch{TechnicianNote: &note}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing row error = %v", err)
	}
}

func TestRecordsCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.Header.Get("Prefer") != "count=exact" {
			t.Errorf("method %s prefer %q", r.Method, r.Header.Get("Prefer"))
		}
		w.Header().Set("Content-Range", "*/7")
	})
	n, err := NewRecords(client).Count(context.Background())
	if err != nil || n != 7 {
		t.Errorf("Count = (%d, %v), want 7", n, err)
	}
}

func TestParseContentRange(t *testing.T) {
	for header, want := range map[string]int{"0-9/42": 42, "*/0": 0} {
		if got, err := parseContentRange(header); err != nil || got != want {
			t.Errorf("parseContentRange(%q) = (%d, %v)", header, got, err)
		}
	}
	if _, err := parseContentRange(""); err == nil {
		t.Error("empty header accepted")
	}
}

func TestRecordsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "relation does not exist"})
	})
	_, err := NewRecords(client).ListOrdered(context.Background())
	if err == nil || !strings.Contains(err.Error(), "relation does not exist") {
		t.Errorf("error = %v", err)
	}
}

func TestRolesFromProfiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "eq.u-admin":
			io.WriteString(w, `[{"role":"admin"}]`)
		case "eq.u-odd":
			io.WriteString(w, `[{"role":"superuser"}]`)
		default:
			io.WriteString(w, `[]`)
		}
	})
	roles := NewRoles(client)
	ctx := context.Background()
	if role, err := roles.RoleFor(ctx, "u-admin"); err != nil || role != domain.RoleAdmin {
		t.Errorf("admin = (%q, %v)", role, err)
	}
	if role, _ := roles.RoleFor(ctx, "u-odd"); role != domain.RoleUser {
		t.Errorf("unknown role value = %q, want user", role)
	}
	if _, err := roles.RoleFor(ctx, "u-none"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing profile error = %v", err)
	}
}

func TestIdentityPasswordAndSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if r.URL.Query().Get("grant_type") != "password" || body["password"] != "right" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "user-jwt",
				"expires_in":   3600,
				"user":         map[string]string{"id": "u-1", "email": body["email"]},
			})
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer user-jwt" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "u-1", "email": "a@company.com"})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	identity := NewIdentity(client, "")
	ctx := context.Background()

	var changes []auth.SessionChange
	identity.OnSessionChange(func(c auth.SessionChange) { changes = append(changes, c) })

	_, err := identity.SignInWithPassword(ctx, "a@company.com", "wrong")
	var perr *auth.ProviderError
	if !errors.As(err, &perr) || perr.Message != "Invalid login credentials" {
		t.Fatalf("wrong password error = %v", err)
	}

	session, err := identity.SignInWithPassword(ctx, "a@company.com", "right")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if session.UserID != "u-1" || session.ExpiresAt == 0 {
		t.Errorf("session = %+v", session)
	}

	current, err := identity.GetCurrentSession(ctx, "user-jwt")
	if err != nil || current.UserID != "u-1" {
		t.Errorf("GetCurrentSession = (%+v, %v)", current, err)
	}
	if _, err := identity.GetCurrentSession(ctx, "stale"); !errors.Is(err, auth.ErrInvalidSession) {
		t.Errorf("stale token error = %v", err)
	}
	if err := identity.EndSession(ctx, "user-jwt"); err != nil {
		t.Errorf("EndSession: %v", err)
	}
	if len(changes) != 2 || changes[0].Event != auth.SessionSignedIn || changes[1].Event != auth.SessionSignedOut {
		t.Errorf("changes = %+v", changes)
	}
}

func TestIdentityMagicLinkAndSignUp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/otp":
			if r.URL.Query().Get("redirect_to") != "http://localhost:5173" {
				t.Errorf("redirect_to = %q", r.URL.Query().Get("redirect_to"))
			}
			writeJSON(w, http.StatusOK, map[string]any{})
		case "/auth/v1/signup":
			writeJSON(w, http.StatusOK, map[string]string{"id": "u-2", "email": "b@company.com"})
		}
	})
	identity := NewIdentity(client, "http://localhost:5173")
	if err := identity.BeginPasswordlessChallenge(context.Background(), "b@company.com"); err != nil {
		t.Errorf("BeginPasswordlessChallenge: %v", err)
	}
	session, err := identity.SignUp(context.Background(), "b@company.com", "s3cret-pass")
	if err != nil || session != nil {
		t.Errorf("SignUp awaiting confirmation = (%+v, %v), want (nil, nil)", session, err)
	}
}

func TestIdentityUnreachable(t *testing.T) {
	client := NewClient(config.BackendConfig{URL: "http://127.0.0.1:1", APIKey: testKey}, nil)
	err := NewIdentity(client, "").BeginPasswordlessChallenge(context.Background(), "a@company.com")
	if !errors.Is(err, auth.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestStorageUploadAndPublicURL(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusOK, map[string]string{"Key": "repair-attachments/x.png"})
	})
	storage := NewStorage(client)
	err := storage.Upload(context.Background(), "repair-attachments", "abc_1700000000.png", bytes.NewReader([]byte("png!")), 4, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath != "/storage/v1/object/repair-attachments/abc_1700000000.png" || gotType != "image/png" || string(gotBody) != "png!" {
		t.Errorf("request = %s %s %q", gotPath, gotType, gotBody)
	}
	url := storage.PublicURL("repair-attachments", "abc_1700000000.png")
	if !strings.HasSuffix(url, "/storage/v1/object/public/repair-attachments/abc_1700000000.png") {
		t.Errorf("PublicURL = %q", url)
	}
}
