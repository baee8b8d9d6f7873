package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/config"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/persistence/indexdb"
	persistlog "biomesxp.io/internal/persistence/log"
)

var (
	networksPath string
	dataDir      string
	chainID      uint64
	disableDB    bool
	asJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "xpctl",
	Short: "Operate a Biomes experience",
	Long:  `Deploy experience contracts, register hooks and delegations, and read or write contract functions`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.Load()
		if err != nil {
			return err
		}
		if networksPath == "" {
			networksPath = env.NetworksFile
		}
		if dataDir == "" {
			dataDir = env.DataDir
		}
		if chainID != 0 {
			env.ChainID = chainID
		}
		settings = env
		return nil
	},
	SilenceUsage: true,
}

// settings is the environment after flag overrides.
var settings config.Env

var logger = log.New(os.Stderr, "[xpctl] ", log.LstdFlags|log.Lmicroseconds)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&networksPath, "networks", "", "networks.yaml path (default: $XP_NETWORKS)")
	pf.StringVar(&dataDir, "data", "", "runtime data directory (default: $XP_DATA_DIR)")
	pf.Uint64Var(&chainID, "chain", 0, "chain id (default: $XP_CHAIN_ID or the networks file default)")
	pf.BoolVar(&disableDB, "disable_db", false, "do not open the sqlite index")
	pf.BoolVar(&asJSON, "json", false, "print JSON")
}

func main() {
	ctx, cancel := signalContext()
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is everything a command needs to talk to one chain.
type session struct {
	Networks chain.Config
	Network  chain.NetworkSpec
	Client   *chain.Client
	Tx       *chain.Transactor
	Registry *contracts.Registry
	Index    *indexdb.SQLiteIndex
	TxLog    *persistlog.TxLogger
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := chain.LoadNetworks(networksPath)
	if err != nil {
		return nil, err
	}
	netw, err := settings.Network(cfg)
	if err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, netw.RPCURL, settings.PrivateKey, logger)
	if err != nil {
		return nil, err
	}
	if client.ChainID() != netw.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc %s serves chain %d, want %d", netw.RPCURL, client.ChainID(), netw.ChainID)
	}
	s := &session{
		Networks: cfg,
		Network:  netw,
		Client:   client,
		Registry: &contracts.Registry{Network: netw, Caller: client},
		TxLog:    persistlog.NewTxLogger(dataDir, logger),
	}
	recorders := []chain.TxRecorder{s.TxLog}
	if !disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "xp.sqlite"))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Index = idx
		s.Registry.Book = idx
		recorders = append(recorders, idx)
	}
	s.Tx = chain.NewTransactor(client, netw.ChainID, logger, recorders...)
	return s, nil
}

// writeOptions applies the network's fee caps.
func (s *session) writeOptions() chain.WriteOptions {
	feeCap, tipCap := s.Network.Fees()
	return chain.WriteOptions{GasFeeCap: feeCap, GasTipCap: tipCap}
}

func (s *session) Close() {
	if s.Index != nil {
		_ = s.Index.Close()
	}
	if s.TxLog != nil {
		_ = s.TxLog.Close()
	}
	s.Client.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
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
