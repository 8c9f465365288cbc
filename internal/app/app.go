// Package app wires the scraping, persistence, ranking, and reply components
// into the operations the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/auth"
	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
	"github.com/siomako12099999999999999999/XRANKING/internal/browser"
	"github.com/siomako12099999999999999999/XRANKING/internal/config"
	"github.com/siomako12099999999999999999/XRANKING/internal/media"
	"github.com/siomako12099999999999999999/XRANKING/internal/pipeline"
	"github.com/siomako12099999999999999999/XRANKING/internal/ranking"
	"github.com/siomako12099999999999999999/XRANKING/internal/record"
	"github.com/siomako12099999999999999999/XRANKING/internal/replybot"
	"github.com/siomako12099999999999999999/XRANKING/internal/scraper"
	"github.com/siomako12099999999999999999/XRANKING/internal/store"
)

// Counts reports a run's per-item outcomes. Pending records failed to
// persist and are spilled to disk for the next run.
type Counts struct {
	Succeeded int
	Failed    int
	Pending   int
}

// App owns the long-lived pieces (config, store) and builds the per-run
// pieces (browser session, scraper, workflow) on demand.
type App struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// New creates an App over an already-open store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *App {
	return &App{cfg: cfg, store: st, logger: logger}
}

func (a *App) credentials() auth.Credentials {
	return auth.Credentials{
		Email:    a.cfg.Twitter.Email,
		Password: a.cfg.Twitter.Password,
		Username: a.cfg.Twitter.Username,
	}
}

func (a *App) authManager() (*auth.Manager, error) {
	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, fmt.Errorf("resolve cookie store path: %w", err)
	}
	return auth.NewManager(a.credentials(), auth.NewCookieStore(cookiePath), a.logger), nil
}

func (a *App) openSession(ctx context.Context) (*automation.Session, error) {
	return automation.NewSession(ctx, browser.Options(a.cfg.Scraping.Headless))
}

func (a *App) spillFile() (*pipeline.SpillFile, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve spill path: %w", err)
	}
	return pipeline.NewSpillFile(filepath.Join(dir, "pending.json"), a.logger), nil
}

// writePath builds the upsert engine and resilience buffer, restoring any
// records spilled by an earlier run so they get flushed alongside this one's.
func (a *App) writePath() (*pipeline.Buffer, *pipeline.UpsertEngine, *pipeline.SpillFile, error) {
	engine := pipeline.NewUpsertEngine(a.store, media.IsMediaURL, a.logger)
	buffer := pipeline.NewBuffer(engine, a.logger)

	spill, err := a.spillFile()
	if err != nil {
		return nil, nil, nil, err
	}
	spilled, err := spill.Load()
	if err != nil {
		a.logger.Warn("could not load spilled records", "error", err)
	}
	buffer.Restore(spilled)

	return buffer, engine, spill, nil
}

// settle drains what it can, spills the rest to disk, and folds the result
// into the run's counts: late flushes count as succeeded, records still
// unpersisted count as failed and pending.
//
// The run's context is usually already cancelled here (interrupt, scrape
// timeout); the drain detaches from it so the shutdown flush still reaches
// storage. The backoff's retry cap bounds how long it can take.
func (a *App) settle(ctx context.Context, buffer *pipeline.Buffer, spill *pipeline.SpillFile, counts *Counts) {
	counts.Succeeded += buffer.FlushFinal(context.WithoutCancel(ctx))
	counts.Pending = buffer.Len()
	counts.Failed += counts.Pending
	if err := spill.Save(buffer.Snapshot()); err != nil {
		a.logger.Error("could not spill pending records", "error", err)
	}
}

// RunIngestion scrapes up to limit video posts for keyword and upserts each
// into the store. Storage failures are buffered and retried; whatever still
// cannot be written when the run ends is spilled to disk.
func (a *App) RunIngestion(ctx context.Context, keyword string, limit int) (Counts, error) {
	var counts Counts

	if keyword == "" {
		return counts, errors.New("keyword is required")
	}
	if limit <= 0 {
		limit = a.cfg.Scraping.DefaultLimit
	}

	buffer, engine, spill, err := a.writePath()
	if err != nil {
		return counts, err
	}

	session, err := a.openSession(ctx)
	if err != nil {
		return counts, fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	manager, err := a.authManager()
	if err != nil {
		return counts, err
	}
	if err := manager.EnsureSession(ctx, session); err != nil {
		return counts, fmt.Errorf("authenticate: %w", err)
	}

	resolver := media.NewResolver(session, a.logger)
	sc := scraper.New(session, resolver, a.logger,
		time.Duration(a.cfg.Scraping.ScrollIntervalS)*time.Second)

	lastFlush := time.Now()
	handle := func(raw record.RawPost) {
		rec := record.Build(raw)
		if res := engine.Upsert(ctx, rec); res.Outcome == pipeline.Failed {
			buffer.Enqueue(rec)
		} else {
			counts.Succeeded++
		}

		// Cooperative drain between posts; the scrape loop itself stays
		// single-threaded.
		if time.Since(lastFlush) >= pipeline.FlushInterval {
			flushed, _ := buffer.Flush(ctx)
			counts.Succeeded += flushed
			lastFlush = time.Now()
		}
	}

	scrapeErr := sc.SearchVideos(ctx, keyword, limit, handle)
	a.settle(ctx, buffer, spill, &counts)

	a.logger.Info("ingestion finished", "keyword", keyword,
		"succeeded", counts.Succeeded, "failed", counts.Failed, "pending", counts.Pending)
	return counts, scrapeErr
}

// RunRefresh revisits every stored post and re-applies its current on-page
// fields through the same merge rules as ingestion. With all set, media URLs
// and author fields are re-resolved too; otherwise only metrics are
// refreshed, plus media for records that never got a valid URL.
func (a *App) RunRefresh(ctx context.Context, all bool) (Counts, error) {
	var counts Counts

	posts, err := a.store.All(ctx)
	if err != nil {
		return counts, fmt.Errorf("list stored posts: %w", err)
	}
	if len(posts) == 0 {
		a.logger.Info("refresh: nothing stored yet")
		return counts, nil
	}

	buffer, engine, spill, err := a.writePath()
	if err != nil {
		return counts, err
	}

	session, err := a.openSession(ctx)
	if err != nil {
		return counts, fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	manager, err := a.authManager()
	if err != nil {
		return counts, err
	}
	if err := manager.EnsureSession(ctx, session); err != nil {
		return counts, fmt.Errorf("authenticate: %w", err)
	}

	resolver := media.NewResolver(session, a.logger)
	sc := scraper.New(session, resolver, a.logger,
		time.Duration(a.cfg.Scraping.ScrollIntervalS)*time.Second)

	a.logger.Info("refresh: starting", "posts", len(posts), "all", all)
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			a.settle(ctx, buffer, spill, &counts)
			return counts, err
		}
		if post.SourceURL == "" {
			continue
		}

		resolveMedia := all || !media.IsMediaURL(post.MediaURL)
		raw, err := sc.Revisit(ctx, post.SourceURL, resolveMedia)
		if err != nil {
			a.logger.Warn("refresh: post unreadable", "key", post.Key, "error", err)
			counts.Failed++
			continue
		}

		rec := record.Build(raw)
		if res := engine.Upsert(ctx, rec); res.Outcome == pipeline.Failed {
			buffer.Enqueue(rec)
		} else {
			counts.Succeeded++
		}
	}

	a.settle(ctx, buffer, spill, &counts)
	a.logger.Info("refresh finished",
		"succeeded", counts.Succeeded, "failed", counts.Failed, "pending", counts.Pending)
	return counts, nil
}

// RunRankingReplies computes the Top-N ranking and drives the reply workflow
// over it. testMode composes but never submits.
func (a *App) RunRankingReplies(ctx context.Context, appURL string, testMode bool) (replybot.Summary, error) {
	var sum replybot.Summary

	if appURL == "" {
		appURL = a.cfg.Reply.ApplicationURL
	}
	if appURL == "" {
		return sum, errors.New("application URL is required (flag or reply.application_url)")
	}

	ranked, err := ranking.NewEngine(a.store).TopN(ctx, a.cfg.Reply.RankingSize)
	if err != nil {
		return sum, err
	}
	if len(ranked) == 0 {
		a.logger.Info("reply: no ranked posts yet")
		return sum, nil
	}

	session, err := a.openSession(ctx)
	if err != nil {
		return sum, fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	manager, err := a.authManager()
	if err != nil {
		return sum, err
	}

	workflow := replybot.New(session,
		replybot.AuthenticatorFunc(func(ctx context.Context) error {
			return manager.EnsureSession(ctx, session)
		}),
		a.logger,
		replybot.WithCooldown(time.Duration(a.cfg.Reply.CooldownSeconds)*time.Second),
		replybot.WithTestMode(testMode),
	)
	return workflow.Run(ctx, ranked, appURL)
}

// FlushPending retries the records spilled by earlier runs, without opening
// a browser. Whatever still fails is spilled again.
func (a *App) FlushPending(ctx context.Context) (Counts, error) {
	var counts Counts

	buffer, _, spill, err := a.writePath()
	if err != nil {
		return counts, err
	}
	if buffer.Len() == 0 {
		a.logger.Info("flush: nothing pending")
		return counts, nil
	}

	flushed, remaining := buffer.Flush(ctx)
	counts.Succeeded = flushed
	counts.Pending = remaining
	if err := spill.Save(buffer.Snapshot()); err != nil {
		a.logger.Error("could not spill pending records", "error", err)
	}

	a.logger.Info("flush finished", "flushed", flushed, "pending", remaining)
	return counts, nil
}

// Login forces a fresh interactive login and stores the session cookies.
func (a *App) Login(ctx context.Context) error {
	session, err := a.openSession(ctx)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	manager, err := a.authManager()
	if err != nil {
		return err
	}
	if err := manager.Logout(); err != nil {
		a.logger.Warn("could not clear stored cookies", "error", err)
	}
	return manager.EnsureSession(ctx, session)
}

// CheckDatabase runs the store's insert/read/delete probe.
func (a *App) CheckDatabase(ctx context.Context) error {
	return a.store.Probe(ctx)
}
