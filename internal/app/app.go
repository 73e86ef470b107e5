package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hadiqa-go/internal/auth"
	"hadiqa-go/internal/catalog"
	"hadiqa-go/internal/config"
	"hadiqa-go/internal/database"
	"hadiqa-go/internal/encryption"
	"hadiqa-go/internal/fs"
	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/offline"
	"hadiqa-go/internal/oracle"
	"hadiqa-go/internal/server"
	"hadiqa-go/internal/upload"
)

// ErrNoAPIKey is returned by operations that need the oracle when its API key is unset.
var ErrNoAPIKey = errors.New("oracle api key not set")

// HadiqaApp is the application layer between the CLI and HQService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings and paths, and releases the state store on Close.
type HadiqaApp struct {
	cfg     *config.Config
	store   hq.StateStore
	media   *fs.OSMediaManager
	uploads hq.UploadTarget
	sealer  hq.Sealer
	service *hq.HQService
	usage   *oracle.UsageCounter
	history *oracle.History
	clock   hq.Clock
	logger  *slog.Logger
	op      *Operation
	logFile *os.File
}

// NewHadiqaApp creates a fully wired HadiqaApp from the given config and
// seeds the service from persisted state. operation names the CLI command
// being run (e.g. "Refresh", "Serve"). The caller must call Close when done.
func NewHadiqaApp(ctx context.Context, cfg *config.Config, operation string) (*HadiqaApp, error) {
	clock := hq.RealClock{}
	idgen := hq.UUIDGenerator{}
	op := NewOperation(operation, clock.Now())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID, op.Name)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	hqLogger := &slogAdapter{l: logger}

	store, err := database.NewStateStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating state store: %w", err)
	}

	fail := func(format string, err error) (*HadiqaApp, error) {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf(format, err)
	}

	uploads, err := upload.NewUploadTargetFromConfig(ctx, cfg.Upload, clock, idgen)
	if err != nil {
		return fail("creating upload target: %w", err)
	}

	cache, err := offline.NewOfflineCacheFromConfig(cfg.Offline, nil)
	if err != nil {
		return fail("creating offline cache: %w", err)
	}

	sealer, err := encryption.NewSealerFromConfig(cfg.Encryption)
	if err != nil {
		return fail("creating sealer: %w", err)
	}

	timeout := time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second
	source := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.CloudName, cfg.Catalog.Tag, timeout, clock)

	var analyzer hq.Analyzer
	if key := apiKey(cfg); key != "" {
		analyzer = oracle.NewClient(cfg.Oracle.Endpoint, key, cfg.Oracle.Model)
	} else {
		logger.Debug("oracle api key not set, analysis falls back to placeholder", "env", cfg.Oracle.APIKeyEnv)
	}

	media := fs.NewOSMediaManager()
	svc := hq.NewHQService(store, source, uploads, cache, analyzer, media, hqLogger, clock)
	svc.Open(ctx)

	return &HadiqaApp{
		cfg:     cfg,
		store:   store,
		media:   media,
		uploads: uploads,
		sealer:  sealer,
		service: svc,
		usage:   oracle.NewUsageCounter(store, clock, cfg.Oracle.DailyLimit),
		history: oracle.NewHistory(store, hqLogger),
		clock:   clock,
		logger:  logger,
		op:      op,
		logFile: logFile,
	}, nil
}

func apiKey(cfg *config.Config) string {
	if cfg.Oracle.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(cfg.Oracle.APIKeyEnv)
}

func jwtSecret(cfg *config.Config) string {
	if cfg.Server.JWTSecretEnv == "" {
		return ""
	}
	return os.Getenv(cfg.Server.JWTSecretEnv)
}

// Service exposes the wired core for callers that need direct access.
func (a *HadiqaApp) Service() *hq.HQService {
	return a.service
}

// track records the outcome of the operation and passes err through.
func (a *HadiqaApp) track(err error) error {
	a.op.Record(err)
	return err
}

// Refresh fetches the live catalog. hard clears the cached catalog first.
func (a *HadiqaApp) Refresh(ctx context.Context, hard bool) ([]hq.VideoEntry, error) {
	var (
		entries []hq.VideoEntry
		err     error
	)
	if hard {
		entries, err = a.service.HardReset(ctx)
	} else {
		entries, err = a.service.Refresh(ctx)
	}
	return entries, a.track(err)
}

// Feed returns the entries of the named view.
func (a *HadiqaApp) Feed(name string) ([]hq.VideoEntry, error) {
	v, err := hq.ParseView(name)
	if err != nil {
		return nil, err
	}
	return a.service.Feed(v), nil
}

// Search returns the catalog entries whose title matches query.
func (a *HadiqaApp) Search(query string) []hq.VideoEntry {
	return a.service.Search(query)
}

// Interact applies a named interaction ("like", "unlike", "dislike", "save",
// "unsave" or "restore") to the video id.
func (a *HadiqaApp) Interact(ctx context.Context, action, id string) error {
	var fn func(context.Context, string) error
	switch action {
	case "like":
		fn = a.service.Like
	case "unlike":
		fn = a.service.Unlike
	case "dislike":
		fn = a.service.Dislike
	case "save":
		fn = a.service.Save
	case "unsave":
		fn = a.service.Unsave
	case "restore":
		fn = a.service.Restore
	default:
		return a.track(fmt.Errorf("unknown interaction: %s", action))
	}
	return a.track(fn(ctx, id))
}

// RecordProgress stores watch progress for id. Values outside [0,1] are clamped.
func (a *HadiqaApp) RecordProgress(ctx context.Context, id string, progress float64) error {
	return a.track(a.service.RecordProgress(ctx, id, progress))
}

// Stats returns the pseudo view and like counts of an entry.
func (a *HadiqaApp) Stats(e hq.VideoEntry) hq.VideoStats {
	return hq.Stats(e.URL)
}

// Progress returns the recorded watch progress of id.
func (a *HadiqaApp) Progress(id string) float64 {
	return a.service.Interactions().ProgressOf(id)
}

// DeleteVideo hides a video from every feed.
func (a *HadiqaApp) DeleteVideo(ctx context.Context, id string) error {
	return a.track(a.service.DeleteVideo(ctx, id))
}

// UndeleteVideo lifts a previous DeleteVideo.
func (a *HadiqaApp) UndeleteVideo(ctx context.Context, id string) error {
	return a.track(a.service.UndeleteVideo(ctx, id))
}

func (a *HadiqaApp) Categories() []string {
	return a.service.Categories()
}

func (a *HadiqaApp) AddCategory(ctx context.Context, name string) error {
	return a.track(a.service.AddCategory(ctx, name))
}

func (a *HadiqaApp) RemoveCategory(ctx context.Context, name string) error {
	return a.track(a.service.RemoveCategory(ctx, name))
}

// Upload resolves rawPath and pushes it to the upload target.
func (a *HadiqaApp) Upload(ctx context.Context, rawPath string, meta hq.UploadMeta) (hq.VideoEntry, error) {
	file, err := a.media.Resolve(rawPath)
	if err != nil {
		return hq.VideoEntry{}, a.track(fmt.Errorf("resolving media: %w", err))
	}
	entry, err := a.service.Upload(ctx, file, meta)
	return entry, a.track(err)
}

// UploadDir uploads every media file found under dir. Files without a
// title in meta are titled after their base name.
func (a *HadiqaApp) UploadDir(ctx context.Context, dir string, recursive bool, meta hq.UploadMeta) ([]hq.VideoEntry, error) {
	files, err := a.media.FindMedia(dir, recursive)
	if err != nil {
		return nil, a.track(fmt.Errorf("finding media: %w", err))
	}

	var entries []hq.VideoEntry
	for _, f := range files {
		m := meta
		if m.Title == "" {
			base := filepath.Base(f.String())
			m.Title = strings.TrimSuffix(base, filepath.Ext(base))
		}
		entry, err := a.service.Upload(ctx, f, m)
		if err != nil {
			return entries, a.track(fmt.Errorf("uploading %s: %w", f, err))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CheckUpload verifies that the configured upload target is reachable.
func (a *HadiqaApp) CheckUpload(ctx context.Context) error {
	if err := a.uploads.ValidateSetup(ctx); err != nil {
		return a.track(fmt.Errorf("upload target %s: %w", a.cfg.Upload.Name, err))
	}
	return nil
}

// migrationChecker is implemented by stores that track a schema version.
type migrationChecker interface {
	CheckMigrations() error
}

// CheckStore verifies that the state store schema is current.
// Stores without a schema always pass.
func (a *HadiqaApp) CheckStore() error {
	checker, ok := a.store.(migrationChecker)
	if !ok {
		return nil
	}
	if err := checker.CheckMigrations(); err != nil {
		return a.track(fmt.Errorf("state store %s: %w", a.cfg.Store.Type, err))
	}
	return nil
}

// Analyze resolves rawPath and asks the oracle to describe it.
func (a *HadiqaApp) Analyze(ctx context.Context, rawPath string) (hq.VideoInsight, error) {
	file, err := a.media.Resolve(rawPath)
	if err != nil {
		return hq.VideoInsight{}, fmt.Errorf("resolving media: %w", err)
	}
	return a.service.Analyze(ctx, file), nil
}

// WarmCache downloads the first catalog entries for offline playback.
func (a *HadiqaApp) WarmCache(ctx context.Context) (int, error) {
	n, err := a.service.WarmOfflineCache(ctx)
	return n, a.track(err)
}

// ClearCache empties the offline cache.
func (a *HadiqaApp) ClearCache(ctx context.Context) error {
	return a.track(a.service.ClearOfflineCache(ctx))
}

// CacheStatus reports the offline cache contents.
func (a *HadiqaApp) CacheStatus(ctx context.Context) (hq.OfflineStatus, error) {
	st, err := a.service.OfflineStatus(ctx)
	return st, a.track(err)
}

// StateKeys lists the keys held by the state store.
func (a *HadiqaApp) StateKeys(ctx context.Context) ([]string, error) {
	keys, err := a.service.StoredKeys(ctx)
	return keys, a.track(err)
}

// ExportState writes every persisted state key, sealed with passphrase, to w.
func (a *HadiqaApp) ExportState(ctx context.Context, w io.Writer, passphrase string) error {
	bundle, err := a.service.ExportState(ctx)
	if err != nil {
		return a.track(err)
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return a.track(fmt.Errorf("encoding state bundle: %w", err))
	}
	if err := a.sealer.Seal(passphrase, bytes.NewReader(data), w); err != nil {
		return a.track(fmt.Errorf("sealing state bundle: %w", err))
	}
	a.logger.Info("state exported", "keys", len(bundle))
	return nil
}

// ImportState opens a sealed bundle from r and replaces the persisted state keys it holds.
func (a *HadiqaApp) ImportState(ctx context.Context, r io.Reader, passphrase string) error {
	var buf bytes.Buffer
	if err := a.sealer.Open(passphrase, r, &buf); err != nil {
		return a.track(fmt.Errorf("opening state bundle: %w", err))
	}
	var bundle hq.StateBundle
	if err := json.Unmarshal(buf.Bytes(), &bundle); err != nil {
		return a.track(fmt.Errorf("decoding state bundle: %w", err))
	}
	if err := a.service.ImportState(ctx, bundle); err != nil {
		return a.track(err)
	}
	a.logger.Info("state imported", "keys", len(bundle))
	return nil
}

// AdminToken mints a bearer token carrying the admin capability.
func (a *HadiqaApp) AdminToken(subject string, duration time.Duration) (string, error) {
	secret := jwtSecret(a.cfg)
	if secret == "" {
		return "", fmt.Errorf("jwt secret not set (export %s)", a.cfg.Server.JWTSecretEnv)
	}
	return auth.GenerateAdminToken(secret, subject, a.clock.Now(), duration)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *HadiqaApp) Serve(ctx context.Context) error {
	secret := jwtSecret(a.cfg)
	if secret == "" {
		a.logger.Warn("jwt secret not set, admin endpoints will reject every request", "env", a.cfg.Server.JWTSecretEnv)
	}
	srv := server.New(server.Config{
		Service:   a.service,
		Media:     a.media,
		History:   a.history,
		Usage:     a.usage,
		JWTSecret: secret,
		RateLimit: a.cfg.Server.RateLimit,
		RateBurst: a.cfg.Server.RateBurst,
		TempDir:   os.TempDir(),
		Logger:    a.logger,
	})
	a.logger.Info("serving api", "addr", a.cfg.Server.Addr)
	return a.track(srv.ListenAndServe(ctx, a.cfg.Server.Addr))
}

// Talk runs a live voice session, streaming raw 16 kHz PCM from inputPath and
// writing the 24 kHz reply audio to out. It returns when ctx is cancelled or
// the oracle closes the session.
func (a *HadiqaApp) Talk(ctx context.Context, inputPath string, out io.Writer) error {
	key := apiKey(a.cfg)
	if key == "" {
		return ErrNoAPIKey
	}
	dialer := oracle.NewWebSocketDialer(a.cfg.Oracle.LiveURL, key, a.cfg.Oracle.LiveModel)
	speaker := oracle.NewPCMWriterSpeaker(out)
	session := oracle.NewSession(dialer, oracle.FileMicrophone{Path: inputPath}, speaker, a.usage, a.history, &slogAdapter{l: a.logger})

	if err := session.Start(ctx); err != nil {
		return a.track(err)
	}
	select {
	case <-ctx.Done():
		session.Stop()
		return nil
	case <-session.Done():
		session.Stop()
	}
	if err := session.Err(); err != nil {
		return a.track(err)
	}
	return a.track(speaker.Err())
}

// ChatHistory returns the persisted voice transcripts.
func (a *HadiqaApp) ChatHistory(ctx context.Context) []oracle.ChatMessage {
	return a.history.Messages(ctx)
}

// ClearChatHistory forgets every persisted voice transcript.
func (a *HadiqaApp) ClearChatHistory(ctx context.Context) error {
	return a.track(a.history.Clear(ctx))
}

// Usage returns today's committed voice exchanges and the daily limit.
func (a *HadiqaApp) Usage(ctx context.Context) (used, limit int) {
	return a.usage.Today(ctx), a.usage.Limit()
}

// Close logs the operation outcome and closes all resources.
func (a *HadiqaApp) Close() error {
	var firstErr error

	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"elapsed", a.op.Elapsed(a.clock.Now()).String())

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing state store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
