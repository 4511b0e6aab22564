package main

import (
	"fmt"
	"io"
	"os"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/journal"
	"github.com/glasskube/distr-sub001/internal/shell/updater"
	"github.com/spf13/cobra"
)

// cli holds the state shared by all commands.
type cli struct {
	configPath string
	output     string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "distr",
		Short: "Find and roll out newer application versions on a distr hub",
		Long: `distr compares the application version running on a deployment target
with the versions published on the hub, and updates the deployment to a newer
one. Versions are ordered by semantic version or by creation time.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (yaml, json or toml)")
	flags.StringVarP(&c.output, "output", "o", outputText, "output format: text or json")
	flags.String("strategy", "", "version ordering: semver or chronological")
	flags.String("hub-url", "", "hub API base URL")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		c.applicationsCommand(),
		c.targetsCommand(),
		c.versionsCommand(),
		c.outdatedCommand(),
		c.updateCommand(),
		c.deployCommand(),
		c.pushVersionCommand(),
		c.statusCommand(),
		c.historyCommand(),
		c.serveCommand(),
	)
	return root
}

// withApp loads configuration, wires an app for the duration of fn and
// closes it afterwards.
func (c *cli) withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if c.output != outputText && c.output != outputJSON {
			return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidArgument, c.output)
		}

		cfg, err := LoadConfig(c.configPath, cmd.Flags())
		if err != nil {
			return &ExitError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
		}

		a, err := newApp(cfg, SetupLogger(cfg, c.stderr), c.stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, a, args)
	}
}

func exactArgs(names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != len(names) {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d",
				domain.ErrInvalidArgument, cmd.CommandPath(), len(names), len(args))
		}
		return nil
	}
}

// =============================================================================
// Listing Commands
// =============================================================================

func (c *cli) applicationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "applications",
		Short: "List the applications visible to the token",
		Args:  exactArgs(),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			apps, err := a.client.ListApplications(cmd.Context())
			if err != nil {
				return err
			}
			if apps == nil {
				apps = []domain.Application{}
			}
			return render(c.stdout, c.output, apps, func(w io.Writer) {
				writeApplications(w, apps)
			})
		}),
	}
}

func (c *cli) targetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List deployment targets and the version they run",
		Args:  exactArgs(),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			targets, err := a.client.ListDeploymentTargets(cmd.Context())
			if err != nil {
				return err
			}
			if targets == nil {
				targets = []domain.DeploymentTarget{}
			}
			return render(c.stdout, c.output, targets, func(w io.Writer) {
				writeTargets(w, targets)
			})
		}),
	}
}

// =============================================================================
// Resolver Commands
// =============================================================================

func (c *cli) versionsCommand() *cobra.Command {
	var current string

	cmd := &cobra.Command{
		Use:   "versions <application-id>",
		Short: "List versions newer than a given one",
		Long: `Lists the versions of an application that are newer than --current under
the configured strategy, oldest first. Without --current every version is listed.`,
		Args: exactArgs("application-id"),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			result, err := a.service.ResolveNewerVersions(cmd.Context(), args[0], current)
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, result, func(w io.Writer) {
				if len(result.Versions) == 0 {
					fmt.Fprintf(w, "no newer versions of %s\n", result.Application.Name)
					return
				}
				writeVersions(w, result.Versions)
			})
		}),
	}
	cmd.Flags().StringVar(&current, "current", "", "current application version id")
	return cmd
}

func (c *cli) outdatedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "outdated <deployment-target-id>",
		Short: "Check whether a deployment target runs an outdated version",
		Args:  exactArgs("deployment-target-id"),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			result, err := a.service.IsOutdated(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, result, func(w io.Writer) {
				running := ""
				if d := result.DeploymentTarget.CurrentDeployment(); d != nil {
					running = d.ApplicationVersionID
					if d.ApplicationVersionName != "" {
						running = d.ApplicationVersionName
					}
				}
				if !result.Outdated {
					fmt.Fprintf(w, "%s is up to date (%s)\n", result.DeploymentTarget.Name, running)
					return
				}
				fmt.Fprintf(w, "%s is outdated (%s), newer versions:\n", result.DeploymentTarget.Name, running)
				writeVersions(w, result.NewerVersions)
			})
		}),
	}
}

func (c *cli) updateCommand() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "update <deployment-target-id>",
		Short: "Update a deployment to a newer version",
		Long: `Updates the deployment on a target to --version, or to the latest newer
version when --version is not given. The deployment keeps its release name and
values.`,
		Args: exactArgs("deployment-target-id"),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			deployment, err := a.service.UpdateDeployment(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, deployment, func(w io.Writer) {
				fmt.Fprintf(w, "deployment %s on %s now runs version %s\n",
					deployment.ID, args[0], deployment.ApplicationVersionID)
			})
		}),
	}
	cmd.Flags().StringVar(&version, "version", "", "application version id (default: latest newer version)")
	return cmd
}

func (c *cli) deployCommand() *cobra.Command {
	var (
		req        updater.CreateDeploymentRequest
		targetType string
		valuesFile string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create a deployment target and deploy an application to it",
		Long: `Creates a deployment target, deploys --application to it and prints the
connect credentials for the target. Without --version the latest version is
deployed. The steps are not transactional: when a later step fails, objects
created by earlier steps are reported and left on the hub.`,
		Args: exactArgs(),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			t, err := domain.ParseDeploymentType(targetType)
			if err != nil {
				return err
			}
			req.Target.Type = t
			if valuesFile != "" {
				data, err := os.ReadFile(valuesFile)
				if err != nil {
					return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
				}
				req.ValuesYAML = string(data)
			}

			result, err := a.service.CreateDeployment(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, result, func(w io.Writer) {
				fmt.Fprintf(w, "deployment target:\t%s (%s)\n", result.DeploymentTarget.Name, result.DeploymentTarget.ID)
				if d := result.DeploymentTarget.CurrentDeployment(); d != nil {
					fmt.Fprintf(w, "version:\t%s\n", d.ApplicationVersionID)
				}
				fmt.Fprintf(w, "connect url:\t%s\n", result.Access.ConnectURL)
				fmt.Fprintf(w, "target id:\t%s\n", result.Access.TargetID)
				fmt.Fprintf(w, "target secret:\t%s\n", result.Access.TargetSecret)
			})
		}),
	}

	f := cmd.Flags()
	f.StringVar(&req.Target.Name, "name", "", "deployment target name")
	f.StringVar(&targetType, "type", string(domain.DeploymentTypeDocker), "deployment target type: docker or kubernetes")
	f.StringVar(&req.Target.Namespace, "namespace", "", "kubernetes namespace")
	f.StringVar(&req.ApplicationID, "application", "", "application id")
	f.StringVar(&req.ApplicationVersionID, "version", "", "application version id (default: latest)")
	f.StringVar(&req.ReleaseName, "release-name", "", "helm release name")
	f.StringVar(&valuesFile, "values-file", "", "helm values file")
	return cmd
}

func (c *cli) pushVersionCommand() *cobra.Command {
	var (
		version                              domain.ApplicationVersion
		chartType                            string
		composeFile, valuesFile, templateFile string
	)

	cmd := &cobra.Command{
		Use:   "push-version <application-id>",
		Short: "Publish a new application version",
		Long: `Publishes a new version of an application. Docker applications need
--compose-file; kubernetes applications need the chart flags and usually
--values-file. Files are validated before anything is uploaded.`,
		Args: exactArgs("application-id"),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			version.ChartType = domain.ChartType(chartType)

			var payload domain.VersionPayload
			for _, f := range []struct {
				path string
				dst  *[]byte
			}{
				{composeFile, &payload.ComposeFile},
				{valuesFile, &payload.ValuesFile},
				{templateFile, &payload.TemplateFile},
			} {
				if f.path == "" {
					continue
				}
				data, err := os.ReadFile(f.path)
				if err != nil {
					return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
				}
				*f.dst = data
			}

			created, err := a.service.CreateApplicationVersion(cmd.Context(), args[0], updater.VersionRequest{
				Version: version,
				Payload: payload,
			})
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, created, func(w io.Writer) {
				fmt.Fprintf(w, "published version %s (%s)\n", created.Name, created.ID)
			})
		}),
	}

	f := cmd.Flags()
	f.StringVar(&version.Name, "name", "", "version name")
	f.StringVar(&composeFile, "compose-file", "", "docker compose file")
	f.StringVar(&valuesFile, "values-file", "", "helm values file")
	f.StringVar(&templateFile, "template-file", "", "template file")
	f.StringVar(&chartType, "chart-type", "", "helm chart type: repository or oci")
	f.StringVar(&version.ChartName, "chart-name", "", "helm chart name")
	f.StringVar(&version.ChartURL, "chart-url", "", "helm chart url")
	f.StringVar(&version.ChartVersion, "chart-version", "", "helm chart version")
	return cmd
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <deployment-target-id>",
		Short: "Show the rollout status of a target's deployment",
		Args:  exactArgs("deployment-target-id"),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			result, err := a.service.DeploymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(c.stdout, c.output, result, func(w io.Writer) {
				if len(result.Statuses) == 0 {
					fmt.Fprintf(w, "no status reported for deployment %s yet\n", result.Deployment.ID)
					return
				}
				writeStatuses(w, result.Statuses)
			})
		}),
	}
}

// =============================================================================
// Local Commands
// =============================================================================

func (c *cli) historyCommand() *cobra.Command {
	var opts journal.ListOptions
	var operation string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show what this tool changed on the hub, newest first",
		Args:  exactArgs(),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if a.journal == nil {
				return fmt.Errorf("%w: the journal is disabled (journal.enabled=false)", domain.ErrPreconditionFailed)
			}
			opts.Operation = domain.Operation(operation)

			entries, err := a.journal.List(cmd.Context(), opts)
			if err != nil {
				return &ExitError{Op: "ListJournal", Err: err, ExitCode: ExitDatabaseError}
			}
			if entries == nil {
				entries = []domain.JournalEntry{}
			}
			return render(c.stdout, c.output, entries, func(w io.Writer) {
				writeJournal(w, entries)
			})
		}),
	}

	f := cmd.Flags()
	f.IntVar(&opts.Limit, "limit", journal.DefaultListLimit, "maximum number of entries")
	f.StringVar(&opts.DeploymentTargetID, "target", "", "only entries for this deployment target")
	f.StringVar(&operation, "operation", "", "only entries for this operation")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the update API and watch deployment targets",
		Args:  exactArgs(),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			a.logger.Info("starting distr",
				"version", Version,
				"config", c.configPath,
			)
			return NewServer(a).Start(cmd.Context())
		}),
	}
}
