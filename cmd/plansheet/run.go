package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plansheet/internal/api"
	"plansheet/internal/capture"
	"plansheet/internal/config"
	appLog "plansheet/internal/log"
	"plansheet/internal/pipeline"
	"plansheet/internal/profile"
	"plansheet/internal/schedule"
	"plansheet/internal/selector"
	"plansheet/internal/tui"
)

type runFlags struct {
	serviceID   string
	planID      string
	interactive string
	resetOutput bool
	keepHTML    bool
	outputDir   string
}

func newRunCmd(rf *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the target plan and write one PDF per profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := rf.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			return execute(ctx, *cfg)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.serviceID, "service-id", "", "render this service, skipping the search")
	fl.StringVar(&f.planID, "plan-id", "", "render this plan, skipping service and plan selection")
	fl.StringVar(&f.interactive, "interactive", "", "selection prompts: auto, always or never")
	fl.BoolVar(&f.resetOutput, "reset-output", false, "clear the output directory before rendering")
	fl.BoolVar(&f.keepHTML, "keep-html", false, "keep the markup next to each PDF")
	fl.StringVar(&f.outputDir, "output-dir", "", "artifact directory")
	return cmd
}

// apply lets explicitly set flags override file and environment values.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("service-id") {
		cfg.ServiceID = f.serviceID
	}
	if fl.Changed("plan-id") {
		cfg.PlanID = f.planID
	}
	if fl.Changed("interactive") {
		cfg.Interactive = f.interactive
	}
	if fl.Changed("reset-output") {
		cfg.Output.Reset = f.resetOutput
	}
	if fl.Changed("keep-html") {
		cfg.Output.KeepHTML = f.keepHTML
	}
	if fl.Changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	cfg.Normalize()
}

func execute(ctx context.Context, cfg config.Config) error {
	opts, err := runOptions(cfg)
	if err != nil {
		return err
	}
	conv, err := converter(cfg)
	if err != nil {
		return err
	}

	appLog.With("version", version)
	appLog.Info("plansheet starting",
		"base_url", cfg.API.BaseURL,
		"weekday", cfg.Search.Weekday,
		"service_id", cfg.ServiceID,
		"plan_id", cfg.PlanID,
		"output_dir", cfg.Output.Dir,
		"converter", cfg.Converter.Kind,
		"interactive", cfg.Interactive,
	)

	httpClient, tok, err := api.Authenticate(ctx, api.Credentials{
		TokenURL:     cfg.API.TokenURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		Username:     cfg.API.Username,
		Password:     cfg.API.Password,
	}, cfg.APITimeout())
	if err != nil {
		return err
	}
	appLog.Debug("token acquired", "expires", tok.Expiry)

	client, err := api.NewClient(cfg.API.BaseURL, httpClient, "plansheet/"+version)
	if err != nil {
		return err
	}

	sel := &selector.Selector{Fetcher: client, Interactive: interactive(cfg.Interactive), Zone: opts.DisplayZone}
	if sel.Interactive {
		sel.Chooser = tui.New()
	}

	runner := &pipeline.Runner{
		Source:    client,
		Selector:  sel,
		Converter: conv,
		Options:   opts,
	}
	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, r := range sum.Results {
		if r.Artifact.PDF != "" {
			fmt.Println(r.Artifact.PDF)
		}
	}
	return nil
}

func runOptions(cfg config.Config) (pipeline.Options, error) {
	day, err := schedule.ParseWeekday(cfg.Search.Weekday)
	if err != nil {
		return pipeline.Options{}, err
	}
	searchZone, err := schedule.LoadLocation(cfg.Search.Timezone)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("search.timezone: %w", err)
	}
	displayZone, err := schedule.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("display_timezone: %w", err)
	}
	if cfg.DisplayTimezone == "" {
		appLog.Warn("display_timezone not set; using local zone")
	}
	localZone, err := schedule.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("local_timezone: %w", err)
	}

	return pipeline.Options{
		Weekday:     day,
		Statuses:    cfg.Search.Statuses,
		ServiceID:   strings.TrimSpace(cfg.ServiceID),
		PlanID:      strings.TrimSpace(cfg.PlanID),
		SearchZone:  searchZone,
		DisplayZone: displayZone,
		LocalZone:   localZone,
		Profiles:    profile.Source{Inline: cfg.Profiles.Inline, File: cfg.Profiles.File},
		Stylesheet:  cfg.Stylesheet,
		OutputDir:   cfg.Output.Dir,
		ResetOutput: cfg.Output.Reset,
		KeepHTML:    cfg.Output.KeepHTML,
	}, nil
}

func converter(cfg config.Config) (capture.Converter, error) {
	switch cfg.Converter.Kind {
	case config.ConverterCommand:
		return capture.ParseCommand(cfg.Converter.Command, cfg.ConverterTimeout())
	default:
		return &capture.Chromium{
			ExecPath:  cfg.Converter.ChromePath,
			NoSandbox: cfg.Converter.NoSandbox,
			Timeout:   cfg.ConverterTimeout(),
		}, nil
	}
}
