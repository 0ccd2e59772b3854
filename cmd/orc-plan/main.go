package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/enigmarikki/cudf/pkg/orcmeta"
)

type arrayFlags []string

func (a *arrayFlags) String() string {
	return strings.Join(*a, ",")
}

func (a *arrayFlags) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func main() {
	var (
		opts        options
		configFile  string
		metricsFile string
	)

	flag.StringVar(&opts.dir, "dir", "", "Directory scanned for *.orc files, each with a .meta.yaml manifest next to it")
	flag.Var(&opts.files, "file", "ORC file to plan against (repeatable)")
	flag.Var(&opts.keys, "key", "Object key to plan against when -s3.bucket is set (repeatable)")
	flag.StringVar(&opts.columns, "columns", "", "Comma-separated column paths, e.g. a.b,c (empty selects every column)")
	flag.Var(&opts.stripes, "stripes", "Comma-separated stripe indices for one source; repeat once per source, in order")
	flag.Int64Var(&opts.rowStart, "row-start", 0, "First row of the read window")
	flag.Int64Var(&opts.rowCount, "row-count", -1, "Rows in the read window; negative reads to the end")
	flag.StringVar(&configFile, "config.file", "", "YAML file with reader settings; overrides the orc.* flags")
	flag.StringVar(&metricsFile, "metrics.file", "", "Write Prometheus metrics in text format to this file on exit")

	flag.StringVar(&opts.object.Endpoint, "s3.endpoint", "", "S3-compatible endpoint (host:port)")
	flag.StringVar(&opts.object.Bucket, "s3.bucket", "", "Bucket holding the ORC objects and their manifests")
	flag.StringVar(&opts.object.AccessKeyID, "s3.access-key-id", "", "S3 access key id")
	flag.StringVar(&opts.object.SecretAccessKey, "s3.secret-access-key", "", "S3 secret access key")
	flag.StringVar(&opts.object.Region, "s3.region", "", "S3 region")
	flag.BoolVar(&opts.object.Insecure, "s3.insecure", false, "Use plain HTTP for the S3 endpoint")

	opts.cfg.RegisterFlagsAndApplyDefaults("", flag.CommandLine)
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if opts.dir == "" && len(opts.files) == 0 && len(opts.keys) == 0 {
		fmt.Fprintf(os.Stderr, "error: one of --dir, --file or --key must be specified\n")
		flag.Usage()
		os.Exit(1)
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			level.Error(logger).Log("msg", "failed to read config file", "path", configFile, "err", err)
			os.Exit(1)
		}
		opts.cfg, err = orcmeta.ParseConfig(data)
		if err != nil {
			level.Error(logger).Log("msg", "invalid config file", "path", configFile, "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		level.Info(logger).Log("msg", "received shutdown signal")
		cancel()
	}()

	reg := prometheus.NewRegistry()
	metrics := orcmeta.NewMetrics(reg)

	err := run(ctx, afero.NewOsFs(), opts, logger, metrics, os.Stdout)

	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, reg); werr != nil {
			level.Warn(logger).Log("msg", "failed to write metrics", "path", metricsFile, "err", werr)
		}
	}

	if err != nil {
		level.Error(logger).Log("msg", "planning failed", "err", err)
		os.Exit(1)
	}
}
