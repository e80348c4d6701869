// Command siblingkit reads, writes and resolves objects from the command line.
//
//	siblingkit [-config client.yaml] get    -bucket carts -key cart:1
//	siblingkit [-config client.yaml] put    -bucket carts -key cart:1 -value '{"items":[]}' -type application/json
//	siblingkit [-config client.yaml] resolve -bucket carts -key cart:1 -resolver last_write_wins
//	siblingkit [-config client.yaml] delete -bucket carts -key cart:1
//
// Settings come from the config file and SIBLINGKIT_* variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c0deZ3R0/go-sibling-kit/config"
	"github.com/c0deZ3R0/go-sibling-kit/logging"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		logging.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type command struct {
	name        string
	bucket      string
	key         string
	value       string
	contentType string
	resolver    string
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("siblingkit", flag.ContinueOnError)
	configPath := global.String("config", os.Getenv("SIBLINGKIT_CONFIG"), "path to the client config file")
	metricsAddr := global.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		return errors.New("expected a command: get, put, resolve or delete")
	}

	cmd := command{name: global.Arg(0)}
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.StringVar(&cmd.bucket, "bucket", "", "bucket name")
	fs.StringVar(&cmd.key, "key", "", "object key (put without a key lets the store assign one)")
	fs.StringVar(&cmd.value, "value", "", "value to store")
	fs.StringVar(&cmd.contentType, "type", "", "content type of the stored value")
	fs.StringVar(&cmd.resolver, "resolver", siblingkit.ResolverLastWriteWins, "resolver used by resolve")
	if err := fs.Parse(global.Args()[1:]); err != nil {
		return err
	}
	if cmd.bucket == "" {
		return errors.New("-bucket is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log)
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		go serveMetrics(*metricsAddr)
	}

	client, err := config.NewClient(ctx, cfg, config.WithClientLogger(logging.Default()))
	if err != nil {
		return err
	}
	defer client.Close()

	bucket, err := client.Bucket(cmd.bucket)
	if err != nil {
		return err
	}
	var objOpts []siblingkit.ObjectOption
	if cmd.key != "" {
		objOpts = append(objOpts, siblingkit.WithKey(cmd.key))
	}
	obj, err := bucket.NewObject(client.Store, objOpts...)
	if err != nil {
		return err
	}

	var deleted bool
	err = logging.Default().LogOperation(ctx, logging.Operation(cmd.name), "cli", func() error {
		switch cmd.name {
		case "get":
			_, err := obj.Reload(ctx)
			return err
		case "put":
			return put(ctx, obj, cmd)
		case "resolve":
			return resolve(ctx, obj, cmd.resolver)
		case "delete":
			deleted = true
			return obj.Delete(ctx)
		default:
			return fmt.Errorf("unknown command %q", cmd.name)
		}
	})
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(out, "deleted %s/%s\n", cmd.bucket, cmd.key)
		return nil
	}
	return printObject(out, obj)
}

func put(ctx context.Context, obj *siblingkit.Object, cmd command) error {
	if cmd.key != "" {
		// carry the causal context of the current value
		if _, err := obj.Reload(ctx); err != nil {
			return err
		}
		if obj.SiblingCount() != 1 {
			fresh := siblingkit.NewContent(obj.Bucket().DefaultContentType())
			if err := obj.SetSiblings([]*siblingkit.Content{fresh}); err != nil {
				return err
			}
		}
	}
	if cmd.contentType != "" {
		if err := obj.SetContentType(cmd.contentType); err != nil {
			return err
		}
	}
	if err := obj.SetEncodedData([]byte(cmd.value)); err != nil {
		return err
	}
	_, err := obj.Store(ctx, siblingkit.WithReturnBody())
	return err
}

func resolve(ctx context.Context, obj *siblingkit.Object, name string) error {
	r, err := siblingkit.ResolverByName(name)
	if err != nil {
		return err
	}
	if _, err := obj.Reload(ctx); err != nil {
		return err
	}
	if err := obj.SetResolver(r); err != nil {
		return err
	}
	if err := obj.Resolve(ctx); err != nil {
		return err
	}
	if obj.State() != siblingkit.StateResolved {
		return fmt.Errorf("resolver %s left %d siblings", name, obj.SiblingCount())
	}
	_, err = obj.Store(ctx, siblingkit.WithReturnBody())
	return err
}

func printObject(out io.Writer, obj *siblingkit.Object) error {
	key, _ := obj.Key()
	fmt.Fprintf(out, "key: %s\nexists: %t\nvclock: %s\nsiblings: %d\n", key, obj.Exists(), obj.VClock(), obj.SiblingCount())
	for i, c := range obj.Siblings() {
		data, err := c.EncodedData()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%d] %s deleted=%t last_modified=%s\n%s\n", i, c.ContentType(), c.Deleted(),
			c.LastModified().Format(time.RFC3339), data)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Warn("metrics server stopped", slog.String("error", err.Error()))
	}
}
