package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hadiqa-go/internal/auth"
	"hadiqa-go/internal/config"
	"hadiqa-go/internal/hq"
)

const listing = `{"resources":[
 {"public_id":"app_videos/corridor","format":"mp4","version":1,"width":720,"height":1280,"context":{"custom":{"caption":"الممر"}}},
 {"public_id":"app_videos/cellar","format":"mp4","version":2,"width":1920,"height":1080}
]}`

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/video/list/") {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(listing))
			return
		}
		w.Write([]byte("frames"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, catalogURL string) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Store = config.StoreConfig{Type: "memory"}
	cfg.Upload = config.UploadConfig{Type: "memory", Name: "test", PublicBaseURL: "https://media.test"}
	cfg.Offline = config.OfflineConfig{Type: "memory", MaxSize: 1 << 20}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Catalog.BaseURL = catalogURL
	cfg.Catalog.CloudName = "demo"
	cfg.Catalog.TimeoutSeconds = 2
	cfg.Oracle.APIKeyEnv = "HADIQA_TEST_API_KEY"
	cfg.Server.JWTSecretEnv = "HADIQA_TEST_JWT_SECRET"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *HadiqaApp {
	t.Helper()
	a, err := NewHadiqaApp(context.Background(), cfg, operation)
	if err != nil {
		t.Fatalf("NewHadiqaApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewHadiqaApp_UnknownStore(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Store.Type = "cassandra"

	if _, err := NewHadiqaApp(context.Background(), cfg, "Refresh"); err == nil {
		t.Fatal("NewHadiqaApp() expected error for unknown store type")
	}
}

func TestHadiqaApp_RefreshAndInteract(t *testing.T) {
	srv := newCatalogServer(t)
	a := newTestApp(t, testConfig(t, srv.URL), "Like")
	ctx := context.Background()

	entries, err := a.Refresh(ctx, false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Refresh() returned %d entries, want 2", len(entries))
	}

	if err := a.Interact(ctx, "like", "app_videos/corridor"); err != nil {
		t.Fatalf("Interact(like) error = %v", err)
	}
	if err := a.Interact(ctx, "dislike", "app_videos/cellar"); err != nil {
		t.Fatalf("Interact(dislike) error = %v", err)
	}
	if err := a.RecordProgress(ctx, "app_videos/corridor", 1.7); err != nil {
		t.Fatalf("RecordProgress() error = %v", err)
	}

	liked, err := a.Feed("liked")
	if err != nil {
		t.Fatalf("Feed(liked) error = %v", err)
	}
	if len(liked) != 1 || liked[0].ID != "app_videos/corridor" {
		t.Errorf("liked feed = %v", liked)
	}
	home, _ := a.Feed("home")
	if len(home) != 0 {
		t.Errorf("home feed has %d entries, want liked and disliked entries gone", len(home))
	}
	hidden, _ := a.Feed("hidden")
	if len(hidden) != 1 || hidden[0].ID != "app_videos/cellar" {
		t.Errorf("hidden feed = %v", hidden)
	}
	if got := a.Progress("app_videos/corridor"); got != 1 {
		t.Errorf("Progress() = %v, want clamped to 1", got)
	}

	if _, err := a.Feed("cinema"); err == nil {
		t.Error("Feed(cinema) expected error for unknown view")
	}
	if err := a.Interact(ctx, "share", "app_videos/corridor"); err == nil {
		t.Error("Interact(share) expected error for unknown action")
	}
	if !a.op.Failed() {
		t.Error("operation status should be error after a failed step")
	}
}

func TestHadiqaApp_WarmAndClearCache(t *testing.T) {
	srv := newCatalogServer(t)
	a := newTestApp(t, testConfig(t, srv.URL), "WarmCache")
	ctx := context.Background()

	if _, err := a.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh(hard) error = %v", err)
	}
	n, err := a.WarmCache(ctx)
	if err != nil {
		t.Fatalf("WarmCache() error = %v", err)
	}
	if n != 2 {
		t.Errorf("WarmCache() cached %d, want 2", n)
	}
	if !a.Service().OfflineReady(ctx) {
		t.Error("OfflineReady() = false after warm")
	}
	st, err := a.CacheStatus(ctx)
	if err != nil {
		t.Fatalf("CacheStatus() error = %v", err)
	}
	if st.Count != 2 || st.Bytes != int64(2*len("frames")) || st.RefreshedAt == nil {
		t.Errorf("CacheStatus() = %+v", st)
	}

	if err := a.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if a.Service().OfflineReady(ctx) {
		t.Error("OfflineReady() = true after clear")
	}
}

func TestHadiqaApp_CheckStoreAndKeys(t *testing.T) {
	srv := newCatalogServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Store = config.StoreConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}
	a := newTestApp(t, cfg, "Check")
	ctx := context.Background()

	if err := a.CheckStore(); err != nil {
		t.Fatalf("CheckStore() error = %v", err)
	}

	if err := a.AddCategory(ctx, "مقابر"); err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	keys, err := a.StateKeys(ctx)
	if err != nil {
		t.Fatalf("StateKeys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != hq.KeyCategories {
		t.Errorf("StateKeys() = %v", keys)
	}

	t.Run("memory store has no schema", func(t *testing.T) {
		m := newTestApp(t, testConfig(t, srv.URL), "Check")
		if err := m.CheckStore(); err != nil {
			t.Errorf("CheckStore() error = %v", err)
		}
	})
}

func TestHadiqaApp_ExportImportState(t *testing.T) {
	srv := newCatalogServer(t)
	ctx := context.Background()

	src := newTestApp(t, testConfig(t, srv.URL), "ExportState")
	if err := src.Interact(ctx, "save", "app_videos/cellar"); err != nil {
		t.Fatalf("Interact(save) error = %v", err)
	}
	if err := src.AddCategory(ctx, "أساطير"); err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}

	var sealed bytes.Buffer
	if err := src.ExportState(ctx, &sealed, "correct horse"); err != nil {
		t.Fatalf("ExportState() error = %v", err)
	}

	dst := newTestApp(t, testConfig(t, srv.URL), "ImportState")
	if err := dst.ImportState(ctx, bytes.NewReader(sealed.Bytes()), "wrong"); err == nil {
		t.Fatal("ImportState() with wrong passphrase expected error")
	}
	if err := dst.ImportState(ctx, bytes.NewReader(sealed.Bytes()), "correct horse"); err != nil {
		t.Fatalf("ImportState() error = %v", err)
	}

	if !dst.Service().Interactions().IsSaved("app_videos/cellar") {
		t.Error("imported state lost the saved entry")
	}
	cats := dst.Categories()
	if len(cats) == 0 || cats[len(cats)-1] != "أساطير" {
		t.Errorf("imported categories = %v", cats)
	}
}

func TestHadiqaApp_AdminToken(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"), "AdminToken")

	t.Run("requires secret", func(t *testing.T) {
		t.Setenv("HADIQA_TEST_JWT_SECRET", "")
		if _, err := a.AdminToken("cli", time.Hour); err == nil {
			t.Fatal("AdminToken() expected error without secret")
		}
	})

	t.Run("mints admin token", func(t *testing.T) {
		t.Setenv("HADIQA_TEST_JWT_SECRET", "s3cret")
		token, err := a.AdminToken("cli", time.Hour)
		if err != nil {
			t.Fatalf("AdminToken() error = %v", err)
		}
		claims, err := auth.ValidateToken("s3cret", token)
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if !claims.Admin || claims.Subject != "cli" {
			t.Errorf("claims = %+v, want admin subject cli", claims)
		}
	})
}

func TestHadiqaApp_TalkRequiresAPIKey(t *testing.T) {
	t.Setenv("HADIQA_TEST_API_KEY", "")
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"), "Talk")

	var out bytes.Buffer
	err := a.Talk(context.Background(), "input.pcm", &out)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("Talk() error = %v, want ErrNoAPIKey", err)
	}

	used, limit := a.Usage(context.Background())
	if used != 0 || limit != 10 {
		t.Errorf("Usage() = %d/%d, want 0/10", used, limit)
	}
}

func TestHadiqaApp_UploadDir(t *testing.T) {
	a := newTestApp(t, testConfig(t, "http://127.0.0.1:1"), "Upload")
	ctx := context.Background()

	dir := t.TempDir()
	for name, body := range map[string]string{
		"scream.mp4":       "aaaa",
		"nested/knock.mov": "bb",
		"notes.txt":        "not media",
	} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := a.CheckUpload(ctx); err != nil {
		t.Fatalf("CheckUpload() error = %v", err)
	}

	entries, err := a.UploadDir(ctx, dir, false, hq.UploadMeta{Width: 720, Height: 1280})
	if err != nil {
		t.Fatalf("UploadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("UploadDir() uploaded %d, want 1 without recursion", len(entries))
	}
	if entries[0].Title != "scream" || entries[0].Kind != hq.KindShort {
		t.Errorf("entry = %+v, want title from file name and short kind", entries[0])
	}

	entries, err = a.UploadDir(ctx, dir, true, hq.UploadMeta{})
	if err != nil {
		t.Fatalf("UploadDir(recursive) error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("UploadDir(recursive) uploaded %d, want 2", len(entries))
	}
	if got := len(a.Service().Catalog()); got != 3 {
		t.Errorf("catalog holds %d entries, want 3 uploads", got)
	}
}
