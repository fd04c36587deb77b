package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carouselbot/pkg/config"
	"carouselbot/pkg/imagekit"
	"carouselbot/pkg/notify"
	"carouselbot/pkg/schedule"
	"carouselbot/pkg/workflow"
)

type rootOptions struct {
	configPath string
	debug      bool
	once       bool
	account    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "carouselbot",
		Short:         "Build and post TikTok photo carousels from Google Drive images",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yml", "path to the YAML config")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.Flags().BoolVar(&opts.once, "once", false, "run a single cycle and exit instead of scheduling")
	root.Flags().StringVar(&opts.account, "account", "", "TikTok username to post for (only with --once)")

	root.AddCommand(newRenderCmd(opts), newWorkflowCmd(opts), newCheckCmd(opts), newStatusCmd(opts))
	return root
}

func runRoot(ctx context.Context, opts *rootOptions) error {
	if opts.account != "" && !opts.once {
		return errors.New("--account can only be used with --once")
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		logger.Error("missing credentials", zap.Error(err))
		return err
	}

	a, err := newApp(ctx, cfg, secrets, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	if opts.once {
		account := opts.account
		if account == "" {
			account = secrets.TargetAccount
		}
		if account != "" {
			logger.Info("running single cycle", zap.String("account", account))
		} else {
			logger.Info("running single cycle for all accounts")
		}
		if err := a.runner.RunCycle(ctx, account); err != nil {
			logger.Error("cycle failed", zap.Error(err))
			return err
		}
		return nil
	}
	return runScheduler(ctx, a)
}

func runScheduler(ctx context.Context, a *app) error {
	n := a.primaryNotifier()
	n.Notify(ctx, notify.Info, "", "Setting up scheduled posts", nil)

	if err := a.source.Refresh(ctx); err != nil {
		a.logger.Warn("failed to pre-load folder listings", zap.Error(err))
	}

	s := schedule.New(a.cfg.Location(), a.logger.Named("schedule"))
	for _, acc := range a.cfg.Accounts {
		err := s.AddAccount(acc, func(ctx context.Context, acc config.Account) {
			_, _ = a.runner.Run(ctx, acc)
		})
		if err != nil {
			return err
		}
	}

	n.Notify(ctx, notify.Info, "", fmt.Sprintf("Scheduled %d jobs across %d accounts", s.Len(), len(a.cfg.Accounts)), nil)
	return s.Run(ctx)
}

type renderOptions struct {
	text string
	kind string
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <input> <output>",
		Short: "Render a slide from a local image for previewing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(root.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := renderSlide(cfg, logger, data, opts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d bytes)\n", args[1], cfg.Geometry(), len(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", "overlay text")
	cmd.Flags().StringVar(&opts.kind, "kind", "hook", "slide kind: hook, cta or screen")
	return cmd
}

func renderSlide(cfg *config.Config, logger *zap.Logger, data []byte, opts *renderOptions) ([]byte, error) {
	normalizer := imagekit.NewNormalizer(cfg.Image.Quality)
	var spec imagekit.OverlaySpec
	switch opts.kind {
	case "screen":
		jpg, err := normalizer.NormalizeFormat(data)
		if err != nil {
			return nil, err
		}
		return normalizer.ResizeToFrame(jpg, cfg.Geometry())
	case "hook":
		spec = cfg.Text.Hook.OverlaySpec()
	case "cta":
		spec = cfg.Text.CTA.OverlaySpec()
	default:
		return nil, fmt.Errorf("unknown slide kind %q", opts.kind)
	}
	if opts.text == "" {
		return nil, errors.New("--text is required for hook and cta slides")
	}

	renderer := imagekit.NewRenderer(fontResolver(cfg, logger), cfg.Image.Quality, logger)
	overlaid, err := renderer.RenderOverlay(data, opts.text, spec)
	if err != nil {
		return nil, err
	}
	return normalizer.ResizeToFrame(overlaid, cfg.Geometry())
}

func newWorkflowCmd(root *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "workflow <tiktok_username>",
		Short: "Generate a GitHub Actions workflow that posts for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				cfg = config.Default()
			}

			opts := workflow.Options{Location: cfg.Location()}
			acc, known := cfg.Account(username)
			if known {
				opts.PostTimes = acc.PostTimes
			}

			path, err := workflow.Write(dir, username, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Generated workflow file: %s\n", path)
			if !known {
				example, err := workflow.ExampleAccount(username, opts.PostTimes)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n📝 Add this account to %s:\n\n%s", root.configPath, example)
			}
			fmt.Fprintln(out, "\n🔐 Repository secrets needed: GOOGLE_SERVICE_ACCOUNT_JSON, UPLOAD_POST_API_KEY")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "repository root to write .github/workflows into")
	return cmd
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the upload API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			secrets, _ := config.LoadSecrets()
			if secrets.UploadPostAPIKey == "" {
				return errors.New("UPLOAD_POST_API_KEY is not set")
			}
			logger, err := newLogger(root.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ok, err := newPublisher(cfg, secrets.UploadPostAPIKey, logger).ValidateAPIKey(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("upload API key is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key is valid")
			return nil
		},
	}
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <publish_id>",
		Short: "Show the upload API's status for a published carousel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			secrets, _ := config.LoadSecrets()
			if secrets.UploadPostAPIKey == "" {
				return errors.New("UPLOAD_POST_API_KEY is not set")
			}
			status, err := newPublisher(cfg, secrets.UploadPostAPIKey, zap.NewNop()).UploadStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}
