package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/config"
	"github.com/storj-thirdparty/dataproxy/pkg/gate"
	"github.com/storj-thirdparty/dataproxy/pkg/httpgw"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/replication"
	"github.com/storj-thirdparty/dataproxy/pkg/replicationsvc"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the S3 gateway, replication listener, and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.log.Sync() //nolint:errcheck

	g := gate.New(rt.cache, rt.selfID, nil, nil)
	gw := &httpgw.Handler{Gate: g, Tokens: rt.tokens, Adapter: rt.adapter, Metrics: rt.metrics, Log: rt.log}

	group, groupCtx := errgroup.WithContext(ctx)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: gw}
	group.Go(func() error { return serveUntilDone(groupCtx, httpServer) })

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})}
	group.Go(func() error { return serveUntilDone(groupCtx, metricsServer) })

	replLis, err := net.Listen("tcp", cfg.ReplicationListenAddr)
	if err != nil {
		return err
	}
	lookup := sourceLookupFromCache(rt.cache)
	group.Go(func() error { return replicationsvc.Serve(groupCtx, replLis, rt.adapter, lookup, rt.log) })

	sched := newScheduler(rt)
	group.Go(func() error { return sched.Run(groupCtx) })

	return group.Wait()
}

// serveUntilDone runs srv until ctx is canceled, then shuts it down
// gracefully; a clean shutdown is reported as nil, not as an error.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func sourceLookupFromCache(c *cache.Memory) replication.SourceLookup {
	return func(objectID string) (*model.Location, []byte, error) {
		id, err := model.ParseID(objectID)
		if err != nil {
			return nil, nil, err
		}
		loc, ok := c.GetLocation(id)
		if !ok {
			return nil, nil, errors.New("no location cached for object " + objectID)
		}
		return loc, nil, nil
	}
}

// newScheduler wires the replication scheduler against this cache's
// own location table. Peer directory lookup (which endpoints exist,
// what each still needs from us) is driven by the metadata server
// notification stream in a full deployment; that stream is out of
// scope here, so endpoints/pending always return nothing and the
// scheduler's passes find no work.
func newScheduler(rt *runtime) *replication.Scheduler {
	resolve := func(objectID string) (*model.Location, error) {
		id, err := model.ParseID(objectID)
		if err != nil {
			return nil, err
		}
		if loc, ok := rt.cache.GetLocation(id); ok {
			return loc, nil
		}
		return rt.adapter.InitializeLocation(context.Background(), &model.Object{}, nil, &objectID, false)
	}

	endpoints := func() []model.ID { return nil }
	pending := func(model.ID) []string { return nil }
	dial := replicationsvc.NewDialer(func(model.ID) (string, error) {
		return "", errors.New("peer endpoint directory not configured")
	})

	return replication.NewScheduler(rt.selfID, rt.adapter, rt.cache, resolve, pending, dial, endpoints, rt.cfg.ReplicationTick, rt.log, rt.metrics)
}
