package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"

	"noiserelay/internal/models"
)

func TestToMessagesPreservesOrder(t *testing.T) {
	handle := models.Handle{Name: "files/abc", URI: "https://example.test/files/abc", MIMEType: "audio/wav"}
	msgs, err := ToMessages([]models.Part{
		models.TextPart("describe this"),
		models.HandlePart(handle),
	})
	if err != nil {
		t.Fatalf("ToMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a single message, got %d", len(msgs))
	}
	if msgs[0].Role != schema.User {
		t.Errorf("role = %q, want user", msgs[0].Role)
	}
	parts := msgs[0].MultiContent
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Type != schema.ChatMessagePartTypeText || parts[0].Text != "describe this" {
		t.Errorf("first part = %+v", parts[0])
	}
	if parts[1].Type != schema.ChatMessagePartTypeAudioURL || parts[1].AudioURL == nil ||
		parts[1].AudioURL.URI != handle.URI || parts[1].AudioURL.MIMEType != "audio/wav" {
		t.Errorf("second part = %+v", parts[1])
	}
}

func TestToMessagesSingleText(t *testing.T) {
	msgs, err := ToMessages([]models.Part{models.TextPart("prefix:\nDog")})
	if err != nil {
		t.Fatalf("ToMessages: %v", err)
	}
	if msgs[0].Content != "prefix:\nDog" || msgs[0].MultiContent != nil {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestToMessagesErrors(t *testing.T) {
	if _, err := ToMessages(nil); err == nil {
		t.Error("expected error for empty parts")
	}
	if _, err := ToMessages([]models.Part{models.HandlePart(models.Handle{Name: "files/x"})}); err == nil {
		t.Error("expected error for handle without uri")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func newFakeGemini(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(context.Background(), "test-key", Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerate(t *testing.T) {
	var gotBody string
	var gotPath string
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "Dog barking. Car horn."}},
				},
			}},
		})
	})

	text, err := client.Generate(context.Background(), "gemini-2.0-flash", []models.Part{models.TextPart("prefix:\nDog")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Dog barking. Car horn." {
		t.Errorf("text = %q", text)
	}
	if !strings.HasSuffix(gotPath, "gemini-2.0-flash:generateContent") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotBody, `prefix:\nDog`) {
		t.Errorf("prompt not forwarded, body = %s", gotBody)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"audio could not be decoded","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := client.Generate(context.Background(), "gemini-2.0-flash", []models.Part{models.TextPart("x")})
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if !strings.Contains(err.Error(), "audio could not be decoded") {
		t.Errorf("upstream message lost: %v", err)
	}
}

func TestReleaseWithoutName(t *testing.T) {
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	if err := client.Release(context.Background(), models.Handle{}); err != nil {
		t.Errorf("Release of empty handle = %v", err)
	}
}

func TestGenerateWithHandle(t *testing.T) {
	var gotBody string
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Siren."}]}}]}`)
	})

	handle := models.Handle{Name: "files/abc", URI: "https://example.test/files/abc", MIMEType: "audio/wav"}
	text, err := client.Generate(context.Background(), "gemini-2.0-flash",
		[]models.Part{models.TextPart("describe"), models.HandlePart(handle)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Siren." {
		t.Errorf("text = %q", text)
	}
	textAt := strings.Index(gotBody, `"describe"`)
	uriAt := strings.Index(gotBody, `"fileUri":"https://example.test/files/abc"`)
	if textAt < 0 || uriAt < 0 || textAt > uriAt {
		t.Errorf("expected instruction then file reference, body = %s", gotBody)
	}
}

func TestUpload(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []string
		size int
	)
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cmd := r.Header.Get("X-Goog-Upload-Command")
		mu.Lock()
		reqs = append(reqs, r.Method+" "+r.URL.Path+" "+cmd)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/upload/v1beta/files" && cmd == "start":
			if got := r.Header.Get("X-Goog-Upload-Header-Content-Type"); got != AudioMIMEType {
				t.Errorf("upload content type = %q, want %q", got, AudioMIMEType)
			}
			w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/resumable")
			_, _ = io.WriteString(w, `{}`)
		case r.URL.Path == "/resumable" && strings.Contains(cmd, "finalize"):
			mu.Lock()
			size = len(body)
			mu.Unlock()
			w.Header().Set("X-Goog-Upload-Status", "final")
			_, _ = io.WriteString(w, `{"file":{"name":"files/abc","uri":"https://x/files/abc","mimeType":"audio/wav"}}`)
		default:
			t.Errorf("unexpected request %s %s %q", r.Method, r.URL.Path, cmd)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	handle, err := client.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := models.Handle{Name: "files/abc", URI: "https://x/files/abc", MIMEType: "audio/wav"}
	if handle != want {
		t.Errorf("handle = %+v, want %+v", handle, want)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 2 {
		t.Fatalf("expected start and finalize requests, got %v", reqs)
	}
	if size != len("RIFFdata") {
		t.Errorf("uploaded %d bytes, want %d", size, len("RIFFdata"))
	}
}

func TestUploadMissingFile(t *testing.T) {
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	if _, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRelease(t *testing.T) {
	var gotMethod, gotPath string
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})

	if err := client.Release(context.Background(), models.Handle{Name: "files/abc"}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1beta/files/abc" {
		t.Errorf("request = %s %s, want DELETE /v1beta/files/abc", gotMethod, gotPath)
	}
}

func TestReleaseUpstreamError(t *testing.T) {
	client := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"file not found","status":"NOT_FOUND"}}`)
	})

	err := client.Release(context.Background(), models.Handle{Name: "files/gone"})
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("Release error = %v", err)
	}
}
