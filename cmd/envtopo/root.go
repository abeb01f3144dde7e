package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	kubeconfig  string
	kubeContext string
	quiet       bool
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "envtopo",
		Short: "Show the resource topology of a Kubernetes namespace",
		Long: `envtopo groups the Services, Deployments, StatefulSets and Pods of a
namespace into a tree: each Service owns the controllers it selects, each
controller owns its Pods. Top-level nodes carry a workload category.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.kubeconfig, "kubeconfig", "", "path to kubeconfig (default: in-cluster, then ~/.kube/config)")
	cmd.PersistentFlags().StringVar(&opts.kubeContext, "context", "", "kubeconfig context to use (default: current-context)")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress indicators and log messages")

	cmd.AddCommand(newResourcesCmd(opts))
	return cmd
}
