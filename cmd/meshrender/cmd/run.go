package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/psantana5/meshrender/internal/envconfig"
	"github.com/psantana5/meshrender/internal/hostfacts"
	"github.com/psantana5/meshrender/internal/identity"
	"github.com/psantana5/meshrender/internal/logging"
	"github.com/psantana5/meshrender/internal/meshconfig"
	"github.com/psantana5/meshrender/internal/report"
	"github.com/psantana5/meshrender/internal/shutdown"
	"github.com/psantana5/meshrender/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prepare the install and run the server until it exits",
	Long: `Run resolves the platform environment, discards certificates bound to a
previous hostname, creates or merges config.json and starts the server as a
child process. SIGTERM or SIGINT is forwarded to the server as one SIGINT and
meshrender exits with the server's exit code.

Example:
  PORT=10000 RENDER_EXTERNAL_HOSTNAME=mesh.example.com meshrender run
  meshrender run --root /opt/meshcentral --metrics-addr :9100`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	opts := loadOptions()
	code, err := launch(cmd.Context(), opts, envconfig.FromOS(), report.Global(), opts.logger())
	if err != nil {
		return err
	}
	exitCode = code
	return nil
}

// launch runs the startup sequence (resolve, detect, reconcile, spawn) and
// returns the child's exit code. Only a failure to start the child is an
// error; every step before it degrades and continues.
func launch(ctx context.Context, opts options, resolver *envconfig.Resolver, metrics *report.Metrics, logger *logging.Logger) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	logger = logger.WithField("run_id", runID)

	settings := resolver.Resolve()
	logger.Info("resolved platform settings", logging.Fields{
		"port":                  settings.Port,
		"hostname":              settings.Hostname,
		"session_key_generated": settings.SessionKeyGenerated,
		"new_accounts":          settings.AllowNewAccounts,
		"webrtc":                settings.EnableWebRTC,
		"minify":                settings.Minify,
		"allow_framing":         settings.AllowFraming,
	})
	if settings.SessionKeyGenerated {
		logger.Warn("SESSION_KEY not set, generated one for this run; sessions will not survive a restart")
	}

	paths := opts.paths()
	for _, err := range paths.Ensure() {
		logger.Debug("failed to create directory", logging.Fields{"error": err.Error()})
	}

	detector := identity.NewDetector(paths.DataDir, paths.HostnameFile, paths.Config)
	det := detector.Check(settings.Hostname)
	metrics.RecordDetection(det.Changed(), len(det.Purged))
	for _, err := range det.Errors {
		logger.Debug("failed to remove stale file", logging.Fields{"error": err.Error()})
	}
	if det.Changed() {
		logger.Info("hostname changed, certificates will be regenerated", logging.Fields{
			"reason":        string(det.Reason),
			"previous":      det.Previous,
			"current":       det.Current,
			"purged":        len(det.Purged),
			"config_purged": det.ConfigPurged,
		})
	} else {
		logger.Debug("hostname unchanged", logging.Fields{"hostname": det.Current})
	}

	mode := reconcile(paths.Config, settings, logger)
	metrics.RecordReconcile(string(mode))

	if err := detector.Commit(det); err != nil {
		logger.Warn("failed to write hostname record", logging.Fields{"error": err.Error()})
	}

	shutdownMgr := shutdown.New(5*time.Second, logger)
	defer shutdownMgr.Shutdown()

	if opts.MetricsAddr != "" {
		srv := report.NewServer(opts.MetricsAddr, metrics, logger)
		srv.Start()
		shutdownMgr.Register("metrics server", srv.Shutdown)
	}

	logger.Debug("host facts", hostfacts.Collect().Fields())

	sup := supervisor.New(supervisor.Options{
		Command: supervisor.ServerCommand(opts.node(), opts.script(paths), paths.DataDir, settings.Port),
		RunID:   runID,
		Metrics: metrics,
		Logger:  logger,
	})

	logger.Info("starting MeshCentral", logging.Fields{
		"port":     settings.Port,
		"hostname": settings.Hostname,
		"datapath": paths.DataDir,
	})

	result, err := sup.Run(ctx)
	if err != nil {
		logger.Error("server could not be supervised", logging.Fields{"error": err.Error()})
		return 1, err
	}

	result.SetStartup(det.Verdict.String(), string(mode))
	result.LogSummary(logger)
	return result.ExitCode, nil
}

// modeFailed labels a run whose config could not be created at all.
const modeFailed meshconfig.Mode = "failed"

func reconcile(path string, settings envconfig.Settings, logger *logging.Logger) meshconfig.Mode {
	res, err := meshconfig.NewReconciler(path).Reconcile(settings)
	if err != nil {
		logger.Error("failed to create config, starting server without it", logging.Fields{"error": err.Error()})
		return modeFailed
	}
	if res.Warning != nil {
		logger.Warn("existing config left unchanged", logging.Fields{
			"path":  res.Path,
			"error": res.Warning.Error(),
		})
		return res.Mode
	}
	logger.Info("config reconciled", logging.Fields{"mode": string(res.Mode), "path": res.Path})
	return res.Mode
}
