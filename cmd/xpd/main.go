package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"biomesxp.io/internal/biomes"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/config"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/game"
	"biomesxp.io/internal/persistence/indexdb"
	"biomesxp.io/internal/poll"
	"biomesxp.io/internal/transport/httpapi"
	"biomesxp.io/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		networks  = flag.String("networks", "", "networks.yaml path (default: $XP_NETWORKS)")
		dataDir   = flag.String("data", "", "runtime data directory (default: $XP_DATA_DIR)")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite index (deployments, abis, tx history)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[xpd] ", log.LstdFlags|log.Lmicroseconds)

	env, err := config.Load()
	if err != nil {
		logger.Fatalf("load env: %v", err)
	}
	if *networks == "" {
		*networks = env.NetworksFile
	}
	if *dataDir == "" {
		*dataDir = env.DataDir
	}
	cfg, err := chain.LoadNetworks(*networks)
	if err != nil {
		logger.Fatalf("load networks: %v", err)
	}
	netw, err := env.Network(cfg)
	if err != nil {
		logger.Fatalf("network: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := chain.Dial(ctx, netw.RPCURL, "", logger)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if client.ChainID() != netw.ChainID {
		logger.Fatalf("rpc %s serves chain %d, want %d", netw.RPCURL, client.ChainID(), netw.ChainID)
	}
	logger.Printf("network %s (chain %d) rpc=%s", netw.Name, netw.ChainID, netw.RPCURL)

	reg := &contracts.Registry{Network: netw, Caller: client}
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "xp.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertABIs(embeddedABIs()); err != nil {
			logger.Fatalf("index abis: %v", err)
		}
		reg.Book = idx
	}

	deps := httpapi.Deps{Contracts: reg, Renderer: display.Renderer{ExplorerURL: netw.ExplorerURL}, Logger: logger}
	if idx != nil {
		deps.Txs = idx
	}

	var worldHex string
	if worldAddr, err := env.World(cfg, netw.ChainID); err != nil {
		logger.Printf("stage endpoint disabled: %v", err)
	} else if r, err := registration(worldAddr, client, reg); err != nil {
		logger.Printf("stage endpoint disabled: %v", err)
		worldHex = worldAddr.Hex()
	} else {
		deps.Gates = r
		worldHex = worldAddr.Hex()
	}

	limiter := rate.NewLimiter(rate.Limit(env.ReadRate), env.ReadBurst)
	cache := poll.New(ctx, limiter, logger)
	deployed := reg.Deployed()
	stream := ws.NewServer(cache, reg, ws.Info{
		ChainID:      netw.ChainID,
		WorldAddress: worldHex,
		Contracts:    deployed,
	}, deps.Renderer, logger)
	deps.Stream = stream.Handler()
	logger.Printf("contracts: %v", deployed)

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(deps).Handler())
	mux.HandleFunc("/metrics", metricsHandler(netw.ChainID, cache, idx))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	if err := eg.Wait(); err != nil {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	cache.Wait()
	logger.Printf("stopped")
}

// registration binds the first experience contract found on this chain.
func registration(worldAddr common.Address, caller chain.Caller, reg *contracts.Registry) (game.Registration, error) {
	world, err := biomes.NewWorld(worldAddr, caller, nil)
	if err != nil {
		return game.Registration{}, err
	}
	var lastErr error
	for _, name := range game.ExperienceContracts {
		c, err := reg.Contract(name)
		if err != nil {
			lastErr = err
			continue
		}
		return game.NewRegistration(world, c), nil
	}
	return game.Registration{}, lastErr
}

func embeddedABIs() map[string][]byte {
	out := map[string][]byte{}
	for _, n := range contracts.Names() {
		if raw, err := contracts.ABI(n); err == nil {
			out[n] = raw
		}
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
