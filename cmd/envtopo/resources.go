package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vanshmadan/gke-connect/internal/classifier"
	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/validate"
	"github.com/vanshmadan/gke-connect/internal/stream"
	"github.com/vanshmadan/gke-connect/internal/topology"
)

const classifierCacheSize = 256

type resourcesOptions struct {
	namespace  string
	output     string
	classifier string
	watch      bool
}

func newResourcesCmd(root *rootOptions) *cobra.Command {
	opts := &resourcesOptions{}
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Print the topology of a namespace",
		Example: `  envtopo resources -n staging
  envtopo resources -n staging -o json
  envtopo resources -n staging --watch --classifier heuristic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResources(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "namespace (environment) to inspect")
	cmd.Flags().StringVarP(&opts.output, "output", "o", formatTree, "output format: tree, json or yaml")
	cmd.Flags().StringVar(&opts.classifier, "classifier", "embedding", "workload classifier: embedding or heuristic")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep printing the topology as pods change")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

func (o *resourcesOptions) validate() error {
	if !validate.Namespace(o.namespace) {
		return fmt.Errorf("invalid namespace %q", o.namespace)
	}
	switch o.output {
	case formatTree, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q (want tree, json or yaml)", o.output)
	}
	return nil
}

func runResources(cmd *cobra.Command, root *rootOptions, opts *resourcesOptions) error {
	log.SetReportTimestamp(false)
	if root.quiet {
		log.SetLevel(log.WarnLevel)
	}
	if err := opts.validate(); err != nil {
		return err
	}

	cls, err := classifier.New(classifier.Options{Mode: opts.classifier, CacheSize: classifierCacheSize})
	if err != nil {
		return err
	}

	client, err := withSpinner(root.quiet, "Connecting to cluster...", func() (*k8s.Client, error) {
		return k8s.NewClient(root.kubeconfig, root.kubeContext)
	})
	if err != nil {
		return err
	}

	logger := slog.New(log.Default())
	builder := topology.NewBuilder(cls, topology.WithLogger(logger))
	out := cmd.OutOrStdout()

	if opts.watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchResources(ctx, out, stream.New(client, builder, stream.WithLogger(logger)), opts)
	}

	nodes, err := withSpinner(root.quiet, fmt.Sprintf("Building topology of %s...", opts.namespace), func() ([]models.ResourceNode, error) {
		snap, err := k8s.FetchSnapshot(cmd.Context(), client, opts.namespace)
		if err != nil {
			return nil, err
		}
		return builder.Build(cmd.Context(), snap)
	})
	if err != nil {
		return err
	}
	counts := topology.Count(nodes)
	log.Info("topology built", "namespace", opts.namespace,
		"services", counts[models.KindService],
		"deployments", counts[models.KindDeployment],
		"statefulsets", counts[models.KindStatefulSet],
		"pods", counts[models.KindPod])
	return render(out, opts.output, nodes)
}

// topologyStream is the part of the streamer watch mode needs.
type topologyStream interface {
	Stream(ctx context.Context, namespace string) <-chan models.StreamMessage
}

// watchResources prints every update of the stream until ctx ends or the stream fails.
func watchResources(ctx context.Context, out io.Writer, streams topologyStream, opts *resourcesOptions) error {
	updates := 0
	for msg := range streams.Stream(ctx, opts.namespace) {
		if msg.IsError() {
			return errors.New(msg.Message)
		}
		if updates > 0 && opts.output != formatJSON {
			fmt.Fprintln(out)
		}
		if opts.output == formatTree {
			fmt.Fprintf(out, "# %s  %s\n", opts.namespace, time.Now().Format(time.TimeOnly))
		}
		if err := renderUpdate(out, opts.output, msg.Resources); err != nil {
			return err
		}
		updates++
	}
	log.Info("watch ended", "namespace", opts.namespace, "updates", updates)
	return nil
}

// withSpinner runs fn, behind a spinner unless quiet.
func withSpinner[T any](quiet bool, title string, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	if quiet {
		return fn()
	}
	spinErr := spinner.New().
		Title(title).
		Action(func() {
			result, err = fn()
		}).
		Run()
	if spinErr != nil {
		var zero T
		return zero, spinErr
	}
	return result, err
}
