package carousel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carouselbot/pkg/config"
	"carouselbot/pkg/history"
	"carouselbot/pkg/notify"
	"carouselbot/pkg/publisher"
)

var ErrUnknownAccount = errors.New("no account found with TikTok username")

type Publisher interface {
	UploadCarousel(ctx context.Context, u publisher.Upload) (*publisher.Response, error)
}

type Captioner interface {
	CTA() string
	Complete(ctx context.Context, cta string, recent []string) (hook, caption string)
}

// NotifierFunc returns the notifier for an account's webhook URL.
type NotifierFunc func(webhookURL string) notify.Notifier

type RunnerOptions struct {
	Accounts    []config.Account
	Platform    string
	RecentHooks int
	Notifiers   NotifierFunc
	History     history.Store
	Logger      *zap.Logger
}

type Runner struct {
	builder   *Builder
	captions  Captioner
	publisher Publisher
	accounts  []config.Account
	platform  string
	recent    int
	notifiers NotifierFunc
	history   history.Store
	logger    *zap.Logger
}

func NewRunner(builder *Builder, captions Captioner, pub Publisher, opts RunnerOptions) *Runner {
	if opts.Platform == "" {
		opts.Platform = "tiktok"
	}
	if opts.Notifiers == nil {
		opts.Notifiers = func(string) notify.Notifier { return notify.Nop }
	}
	if opts.History == nil {
		opts.History = history.Nop
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		builder:   builder,
		captions:  captions,
		publisher: pub,
		accounts:  opts.Accounts,
		platform:  opts.Platform,
		recent:    opts.RecentHooks,
		notifiers: opts.Notifiers,
		history:   opts.History,
		logger:    opts.Logger,
	}
}

// Result is what a successful run published.
type Result struct {
	RunID  string
	Post   *Post
	Status publisher.PlatformResult
}

// SuccessMessage is the webhook text for a published carousel.
func SuccessMessage(hook string, slides int, res publisher.PlatformResult) string {
	return fmt.Sprintf("Successfully posted carousel!\n**Hook:** %s\n**Slides:** %d\n**Status:** %s\n**Post ID:** %s\n**URL:** %s",
		hook, slides, res.Status, res.PublishID, res.URL)
}

// FailureMessage explains a failed run in terms an operator can act on.
func FailureMessage(account string, err error) string {
	switch {
	case errors.Is(err, publisher.ErrPhotoPullFailed):
		return fmt.Sprintf("🔄 TikTok temporarily rejected photos for %s. This is usually temporary and will retry automatically.", account)
	case errors.Is(err, publisher.ErrRateLimited):
		return fmt.Sprintf("⏰ Daily upload limit reached for %s. Try again tomorrow!", account)
	default:
		return fmt.Sprintf("Failed to create carousel post: %v", err)
	}
}

// Run builds and publishes one carousel for account. Progress and the
// outcome go to the account's webhook and the history store.
func (r *Runner) Run(ctx context.Context, account config.Account) (*Result, error) {
	runID := uuid.NewString()
	log := r.logger.With(
		zap.String("run_id", runID),
		zap.String("account", account.Name),
		zap.String("user", account.Username))
	n := r.notifiers(account.WebhookURL)

	n.Notify(ctx, notify.Info, account.Name, "Starting carousel generation for "+account.Name, nil)
	log.Info("starting carousel generation")

	rec := history.Record{RunID: runID, Account: account.Username}
	res, err := r.run(ctx, log, n, account, &rec)
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
		msg := FailureMessage(account.Name, err)
		log.Error("carousel run failed", zap.String("reason", msg), zap.Error(err))
		n.Notify(ctx, notify.Error, account.Name, msg, err)
	} else {
		rec.Status = history.StatusPosted
		rec.PublishID = res.Status.PublishID
		rec.URL = res.Status.URL
	}

	if herr := r.history.Record(ctx, rec); herr != nil {
		log.Warn("failed to record history", zap.Error(herr))
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, n notify.Notifier, account config.Account, rec *history.Record) (*Result, error) {
	cta := r.captions.CTA()
	rec.CTA = cta
	log.Debug("selected CTA", zap.String("cta", cta))

	recent, err := r.history.RecentHooks(ctx, account.Username, r.recent)
	if err != nil {
		log.Warn("failed to load recent hooks", zap.Error(err))
	}
	hook, caption := r.captions.Complete(ctx, cta, recent)
	rec.Hook = hook
	log.Info("generated text", zap.String("hook", hook), zap.Int("caption_len", len(caption)))

	post, err := r.builder.Build(ctx, hook, cta)
	if err != nil {
		return nil, err
	}
	post.Caption = caption
	rec.Slides = len(post.Slides)

	n.Notify(ctx, notify.Info, account.Name, fmt.Sprintf("Uploading carousel with %d slides", len(post.Slides)), nil)
	resp, err := r.publisher.UploadCarousel(ctx, publisher.Upload{
		Photos:   post.Slides,
		Caption:  caption,
		Title:    hook,
		Username: account.Username,
	})
	if err != nil {
		return nil, err
	}

	status, err := resp.Check(r.platform)
	log.Info("upload result",
		zap.Bool("success", status.Success),
		zap.String("status", status.Status),
		zap.String("publish_id", status.PublishID),
		zap.String("url", status.URL))
	if err != nil {
		return nil, err
	}

	n.Notify(ctx, notify.Info, account.Name, SuccessMessage(hook, len(post.Slides), status), nil)
	return &Result{RunID: rec.RunID, Post: post, Status: status}, nil
}

// RunCycle posts once for every account, or only for username when set.
// Per-account failures are reported through the webhooks and do not stop
// the cycle; only an unknown username or a cancelled context is returned.
func (r *Runner) RunCycle(ctx context.Context, username string) error {
	accounts := r.accounts
	var n notify.Notifier

	if username != "" {
		a, ok := findAccount(r.accounts, username)
		if !ok {
			names := make([]string, len(r.accounts))
			for i, acc := range r.accounts {
				names[i] = acc.Username
			}
			return fmt.Errorf("%w: %s (available: %s)", ErrUnknownAccount, username, strings.Join(names, ", "))
		}
		accounts = []config.Account{a}
		n = r.notifiers(a.WebhookURL)
		n.Notify(ctx, notify.Info, "", "Starting single cycle run for account: "+username, nil)
	} else {
		if len(accounts) == 0 {
			return errors.New("no accounts configured")
		}
		n = r.notifiers(accounts[0].WebhookURL)
		n.Notify(ctx, notify.Info, "", "Starting single cycle run for all accounts", nil)
	}

	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Info("processing account", zap.String("account", a.Name), zap.String("user", a.Username))
		_, _ = r.Run(ctx, a)
	}

	n.Notify(ctx, notify.Info, "", "Single cycle completed", nil)
	return nil
}

func findAccount(accounts []config.Account, username string) (config.Account, bool) {
	for _, a := range accounts {
		if a.Username == username {
			return a, true
		}
	}
	return config.Account{}, false
}
