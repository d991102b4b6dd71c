// Package scan runs lead discovery passes: every configured channel is searched
// for every configured keyword, relevant posts are ranked, and each channel's
// leads are inserted as one batch keyed by URL.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
	"github.com/JakeFAU/freelance-lead-finder/internal/metrics"
	"github.com/JakeFAU/freelance-lead-finder/internal/scoring"
)

const (
	defaultSort          = "new"
	defaultWindow        = "week"
	defaultArchivePrefix = "scans"
	tracerName           = "github.com/JakeFAU/freelance-lead-finder/internal/scan"
)

// Relevance decides whether a post is worth keeping.
type Relevance interface {
	IsRelevant(post lead.Post) (bool, error)
}

// Config controls which searches a pass performs and where side outputs go.
type Config struct {
	Channels      []string
	Keywords      []string
	Sort          string
	Window        string
	Topic         string
	ArchivePrefix string
}

// Orchestrator executes scan passes. It keeps no state between passes, so the
// scheduler and manual triggers may call Run concurrently.
type Orchestrator struct {
	forum     lead.Forum
	store     lead.Store
	relevance Relevance
	publisher lead.Publisher
	archive   lead.BlobStore
	clock     lead.Clock
	idGen     lead.IDGenerator
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New constructs an Orchestrator. publisher and archive are optional.
func New(
	forum lead.Forum,
	store lead.Store,
	relevance Relevance,
	publisher lead.Publisher,
	archive lead.BlobStore,
	clock lead.Clock,
	idGen lead.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Sort == "" {
		cfg.Sort = defaultSort
	}
	if cfg.Window == "" {
		cfg.Window = defaultWindow
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = defaultArchivePrefix
	}
	metrics.Init()
	return &Orchestrator{
		forum:     forum,
		store:     store,
		relevance: relevance,
		publisher: publisher,
		archive:   archive,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run performs one full pass and returns its summary. Failures of a single
// search, post, or channel batch are logged and skipped; failing to prepare
// the store or authenticate with the forum aborts the pass with an error.
func (o *Orchestrator) Run(ctx context.Context, trigger lead.Trigger) (lead.ScanResult, error) {
	scanID, err := o.idGen.NewID()
	if err != nil {
		return lead.ScanResult{}, fmt.Errorf("generate scan id: %w", err)
	}
	started := o.clock.Now()
	logger := o.logger.With(zap.String("scan_id", scanID), zap.String("trigger", string(trigger)))
	result := lead.ScanResult{ScanID: scanID, Trigger: trigger, StartedAt: started}

	ctx, span := o.tracer.Start(ctx, "scan.pass", trace.WithAttributes(
		attribute.String("scan.id", scanID),
		attribute.String("scan.trigger", string(trigger)),
	))
	defer span.End()
	metrics.IncScansInFlight()
	defer metrics.DecScansInFlight()

	logger.Info("starting lead search",
		zap.Int("channels", len(o.cfg.Channels)),
		zap.Int("keywords", len(o.cfg.Keywords)))

	if err := o.store.EnsureSchema(ctx); err != nil {
		return result, o.abort(ctx, span, logger, result, false, fmt.Errorf("prepare lead store: %w", err))
	}
	run := lead.ScanRun{ID: scanID, Trigger: trigger, Status: lead.ScanStatusRunning, StartedAt: started}
	if err := o.store.StartScan(ctx, run); err != nil {
		logger.Warn("record scan start failed", zap.Error(err))
	}
	if err := o.forum.Authenticate(ctx); err != nil {
		return result, o.abort(ctx, span, logger, result, true, fmt.Errorf("authenticate forum client: %w", err))
	}

	for _, channel := range o.cfg.Channels {
		if err := ctx.Err(); err != nil {
			return result, o.abort(ctx, span, logger, result, true, fmt.Errorf("scan interrupted: %w", err))
		}
		channelResult, inserted := o.scanChannel(ctx, scanID, channel, logger)
		result.Channels = append(result.Channels, channelResult)
		result.NewLeads += channelResult.NewLeads
		result.SearchErrors += channelResult.SearchErrors
		result.Leads = append(result.Leads, inserted...)
	}

	result.FinishedAt = o.clock.Now()
	o.finish(ctx, logger, result, lead.ScanStatusSucceeded, "")
	o.archiveResult(ctx, logger, result)
	span.SetAttributes(attribute.Int("scan.new_leads", result.NewLeads))

	logger.Info("finished lead search",
		zap.Int("new_leads", result.NewLeads),
		zap.Int("search_errors", result.SearchErrors),
		zap.Duration("duration", result.FinishedAt.Sub(started)))
	return result, nil
}

func (o *Orchestrator) scanChannel(
	ctx context.Context,
	scanID string,
	channel string,
	logger *zap.Logger,
) (lead.ChannelResult, []lead.Lead) {
	ctx, span := o.tracer.Start(ctx, "scan.channel", trace.WithAttributes(attribute.String("scan.channel", channel)))
	defer span.End()
	logger = logger.With(zap.String("channel", channel))

	res := lead.ChannelResult{Channel: channel}
	var batch []lead.Lead
	for _, keyword := range o.cfg.Keywords {
		posts, err := o.forum.Search(ctx, lead.SearchQuery{
			Channel: channel,
			Keyword: keyword,
			Sort:    o.cfg.Sort,
			Window:  o.cfg.Window,
		})
		if err != nil {
			res.SearchErrors++
			metrics.ObserveSearchError(channel)
			span.RecordError(err)
			logger.Error("search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		for _, post := range posts {
			if post.Channel == "" {
				post.Channel = channel
			}
			res.Evaluated++
			relevant, err := o.relevance.IsRelevant(post)
			if err != nil {
				metrics.ObservePost(metrics.OutcomeError)
				logger.Warn("relevance check failed", zap.String("url", post.URL), zap.Error(err))
				continue
			}
			if !relevant {
				metrics.ObservePost(metrics.OutcomeIrrelevant)
				continue
			}
			metrics.ObservePost(metrics.OutcomeRelevant)
			res.Relevant++
			batch = append(batch, lead.FromPost(post, scoring.Score(post)))
		}
	}

	inserted, err := o.store.InsertLeads(ctx, batch)
	if err != nil {
		metrics.ObserveBatchError(channel)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lead batch failed")
		logger.Error("lead batch failed", zap.Int("candidates", len(batch)), zap.Error(err))
		return res, nil
	}
	res.NewLeads = len(inserted)
	metrics.ObserveNewLeads(channel, res.NewLeads)
	logger.Debug("channel scanned",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("relevant", res.Relevant),
		zap.Int("new_leads", res.NewLeads))

	o.notify(ctx, scanID, inserted, logger)
	return res, inserted
}

func (o *Orchestrator) notify(ctx context.Context, scanID string, leads []lead.Lead, logger *zap.Logger) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	for _, l := range leads {
		if _, err := o.publisher.Publish(ctx, o.cfg.Topic, lead.Event{ScanID: scanID, Lead: l}); err != nil {
			logger.Warn("publish lead event failed", zap.String("url", l.URL), zap.Error(err))
		}
	}
}

func (o *Orchestrator) abort(
	ctx context.Context,
	span trace.Span,
	logger *zap.Logger,
	result lead.ScanResult,
	recorded bool,
	err error,
) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	result.FinishedAt = o.clock.Now()
	if recorded {
		o.finish(ctx, logger, result, lead.ScanStatusFailed, err.Error())
	} else {
		metrics.ObserveScan(string(result.Trigger), string(lead.ScanStatusFailed), result.FinishedAt.Sub(result.StartedAt))
	}
	logger.Error("lead search aborted", zap.Error(err))
	return err
}

func (o *Orchestrator) finish(
	ctx context.Context,
	logger *zap.Logger,
	result lead.ScanResult,
	status lead.ScanStatus,
	errMsg string,
) {
	finished := result.FinishedAt
	run := lead.ScanRun{
		ID:           result.ScanID,
		Trigger:      result.Trigger,
		Status:       status,
		StartedAt:    result.StartedAt,
		FinishedAt:   &finished,
		NewLeads:     result.NewLeads,
		SearchErrors: result.SearchErrors,
		ErrorMessage: errMsg,
	}
	// The run row is written even when the pass was interrupted.
	if err := o.store.FinishScan(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("record scan finish failed", zap.Error(err))
	}
	metrics.ObserveScan(string(result.Trigger), string(status), finished.Sub(result.StartedAt))
}

func (o *Orchestrator) archiveResult(ctx context.Context, logger *zap.Logger, result lead.ScanResult) {
	if o.archive == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("marshal scan archive failed", zap.Error(err))
		return
	}
	path := ArchivePath(o.cfg.ArchivePrefix, result.StartedAt, result.ScanID)
	uri, err := o.archive.PutObject(ctx, path, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warn("write scan archive failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Debug("scan archived", zap.String("uri", uri))
}

// ArchivePath returns prefix/YYYY/MM/DD/<scanID>.json for a pass started at t.
func ArchivePath(prefix string, t time.Time, scanID string) string {
	return fmt.Sprintf("%s/%s/%s.json", prefix, t.UTC().Format("2006/01/02"), scanID)
}
