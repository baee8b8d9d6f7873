package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"biomesxp.io/internal/deploy"
	persistlog "biomesxp.io/internal/persistence/log"
)

var (
	deployPlan string
	deployTags []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the experience contracts against the chain's Biomes world",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deployPlan == "" {
			deployPlan = settings.DeployPlan
		}
		plan, err := deploy.LoadPlan(deployPlan)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		deployLog := persistlog.NewDeployLogger(dataDir)
		defer deployLog.Close()

		r := &deploy.Runner{
			Deployer:  s.Client,
			Caller:    s.Client,
			Tx:        s.Tx,
			ChainID:   s.Network.ChainID,
			Networks:  s.Networks,
			Lookup:    s.Registry.Address,
			Recorders: []deploy.Recorder{deployLog},
			Logger:    log.New(os.Stderr, "[deploy] ", log.LstdFlags|log.Lmicroseconds),
		}
		if settings.WorldAddress != "" {
			r.World = common.HexToAddress(settings.WorldAddress)
		}
		if s.Index != nil {
			r.Recorders = append(r.Recorders, s.Index)
		}
		out, err := r.Run(cmd.Context(), plan, deployTags)
		if err != nil {
			return fmt.Errorf("deploy: %w", err)
		}
		if asJSON {
			return printJSON(out)
		}
		for _, d := range out {
			fmt.Printf("%s\t%s\n", d.Name, d.Address.Hex())
		}
		return nil
	},
}

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "List contracts recorded by earlier deploys on this chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if s.Index == nil {
			return fmt.Errorf("deployments need the index (drop --disable_db)")
		}
		ds, err := s.Index.Deployments(s.Network.ChainID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(ds)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tBLOCK\tTX")
		for _, d := range ds {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Name, d.Address.Hex(), d.Block, d.TxHash.Hex())
		}
		return w.Flush()
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployPlan, "plan", "", "deploy plan path (default: $XP_DEPLOY_PLAN)")
	deployCmd.Flags().StringSliceVar(&deployTags, "tags", nil, "deploy only steps with these tags")
	rootCmd.AddCommand(deployCmd, deploymentsCmd)
}
