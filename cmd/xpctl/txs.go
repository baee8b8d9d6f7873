package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"biomesxp.io/internal/chain"
	persistlog "biomesxp.io/internal/persistence/log"
)

var (
	txsFrom  string
	txsLimit int
	txsLog   string
)

var txsCmd = &cobra.Command{
	Use:   "txs",
	Short: "List recorded transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var from common.Address
		if txsFrom != "" {
			if !common.IsHexAddress(txsFrom) {
				return fmt.Errorf("invalid --from %q", txsFrom)
			}
			from = common.HexToAddress(txsFrom)
		}
		var (
			recs []chain.TxRecord
			err  error
		)
		if txsLog != "" {
			recs, err = persistlog.ReadTxLog(txsLog)
			if err != nil {
				return err
			}
			recs = filterTxs(recs, from, txsLimit)
		} else {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if s.Index == nil {
				return fmt.Errorf("txs need the index or --log")
			}
			if recs, err = s.Index.RecentTxs(from, txsLimit); err != nil {
				return err
			}
		}
		if asJSON {
			return printJSON(recs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCONTRACT\tMETHOD\tSTATUS\tHASH")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Time.Format("2006-01-02 15:04:05"), r.Contract, r.Method, r.Status, r.Hash)
		}
		return w.Flush()
	},
}

// filterTxs keeps records sent by from, newest first. A log holds records
// oldest first.
func filterTxs(recs []chain.TxRecord, from common.Address, limit int) []chain.TxRecord {
	var out []chain.TxRecord
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if from != (common.Address{}) && common.HexToAddress(r.From) != from {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Print the Biomes world address for the selected chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := chain.LoadNetworks(networksPath)
		if err != nil {
			return err
		}
		netw, err := settings.Network(cfg)
		if err != nil {
			return err
		}
		addr, err := settings.World(cfg, netw.ChainID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%s\n", netw.Name, netw.ChainID, addr.Hex())
		return nil
	},
}

func init() {
	txsCmd.Flags().StringVar(&txsFrom, "from", "", "only transactions sent by this account")
	txsCmd.Flags().IntVar(&txsLimit, "limit", 50, "maximum records")
	txsCmd.Flags().StringVar(&txsLog, "log", "", "read a txs/*.jsonl.zst log instead of the index")
	rootCmd.AddCommand(txsCmd, worldCmd)
}
