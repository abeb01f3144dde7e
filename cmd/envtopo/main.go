package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"k8s.io/klog/v2"
)

var version = "dev"

func init() {
	// client-go logs through klog; keep the terminal for our own output.
	klog.SetOutput(io.Discard)
	klog.LogToStderr(false)

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fs)
}

func main() {
	if err := newRootCmd(version).ExecuteContext(context.Background()); err != nil {
		log.SetReportTimestamp(false)
		log.Error(err.Error())
		os.Exit(1)
	}
}
