package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/alloc"
	"github.com/catalystcommunity/enginecore/internal/config"
	"github.com/catalystcommunity/enginecore/internal/dispatch"
	"github.com/catalystcommunity/enginecore/internal/metrics"
	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/catalystcommunity/enginecore/internal/resource"
	"github.com/catalystcommunity/enginecore/internal/sysgraph"
	"github.com/urfave/cli/v2"
)

var ServeCommand = &cli.Command{
	Name:  "serve",
	Usage: "Assemble the engine runtime systems and serve advisory metrics",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8090, Usage: "HTTP port serving /metrics"},
	},
	Action: func(c *cli.Context) error {
		return Serve(c.Int("port"))
	},
}

// passthroughLoader treats every resource's raw bytes as its own
// container payload. A real deployment registers a Loader per resource
// type; serve has no concrete resource types of its own to decode.
type passthroughLoader struct{}

func (passthroughLoader) Load(ctx context.Context, typeName string, data []byte) (interface{}, error) {
	return data, nil
}

// Serve assembles the context system graph ("dispatch", "resources",
// "http") and blocks serving HTTP until the listener exits. Where the
// teacher's Serve hand-sequenced migrate -> init stores -> listen, here
// each step is a system registered with the graph and the graph derives
// the order from Connect/ConnectedInit dependencies instead of the
// caller getting the sequence right by hand.
func Serve(port int) error {
	graph, server, err := assembleServeGraph(port)
	if err != nil {
		return err
	}
	defer graph.Shutdown()

	logging.Log.WithField("port", port).Info("serve: listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: listen: %w", err)
	}
	return nil
}

// assembleServeGraph builds and readies the system graph without
// blocking on the HTTP listener, so tests can assemble the graph and
// inspect it without binding a real port.
func assembleServeGraph(port int) (*sysgraph.Graph, *http.Server, error) {
	graph := sysgraph.New()

	if err := graph.Register("dispatch", sysgraph.API{
		Create: func(any) (any, error) {
			return dispatch.New(config.DispatchWorkers, alloc.Root().Child("dispatch")), nil
		},
		Destroy: func(sys any) { sys.(*dispatch.Pool).StopWait() },
	}, nil); err != nil {
		return nil, nil, fmt.Errorf("serve: register dispatch: %w", err)
	}

	if err := graph.Register("resources", sysgraph.API{
		Create: func(any) (any, error) {
			return objects.NewObjectStore(objects.ObjectStoreConfig{
				Type: config.ObjectStoreType,
				Config: map[string]string{
					"base_path":         config.ObjectStoreBasePath,
					"bucket":            config.ObjectStoreBucket,
					"prefix":            config.ObjectStorePrefix,
					"pack_path":         config.ObjectStorePackPath,
					"pack_mount_prefix": config.ObjectStorePackMountPrefix,
				},
			})
		},
		ConnectedInit: func(sys any, q sysgraph.Querier) error {
			store := sys.(objects.ObjectStore)
			poolAny, err := q.Query("dispatch")
			if err != nil {
				return err
			}
			pool := poolAny.(*dispatch.Pool)

			provider := resource.New(store, pool, passthroughLoader{}, alloc.Root().Child("resources"), nil)
			scanBudget := time.Duration(config.ScanBudgetMs) * time.Millisecond
			ctx, cancel := context.WithTimeout(context.Background(), scanBudget*10)
			defer cancel()
			if err := provider.Scan(ctx, scanBudget); err != nil {
				return err
			}

			if config.HotReloadEnabled {
				if _, err := resource.WatchProvider(provider); err != nil {
					logging.Log.WithError(err).Warn("serve: hot reload watcher unavailable")
				}
			}

			activeProvider = provider
			return nil
		},
		Destroy: func(any) {},
	}, nil); err != nil {
		return nil, nil, fmt.Errorf("serve: register resources: %w", err)
	}

	if err := graph.Register("http", sysgraph.API{
		Create: func(any) (any, error) {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}, nil
		},
		Destroy: func(any) {},
	}, nil); err != nil {
		return nil, nil, fmt.Errorf("serve: register http: %w", err)
	}

	if err := graph.Assemble(); err != nil {
		return nil, nil, fmt.Errorf("serve: assemble: %w", err)
	}

	// Query resources eagerly so its ConnectedInit (scan + watch) runs
	// before the graph is marked ready, instead of waiting on first demand.
	if _, err := graph.Query("resources"); err != nil {
		return nil, nil, fmt.Errorf("serve: init resources: %w", err)
	}

	httpAny, err := graph.Query("http")
	if err != nil {
		return nil, nil, fmt.Errorf("serve: init http: %w", err)
	}
	server := httpAny.(*http.Server)

	graph.Ready()
	return graph, server, nil
}

// activeProvider exposes the assembled resource provider to future
// systems or diagnostics without round-tripping through the graph.
var activeProvider *resource.Provider
