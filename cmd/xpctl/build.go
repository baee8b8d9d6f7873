package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/game"
	"biomesxp.io/internal/voxel"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Check and export Biomes builds and areas",
}

var (
	checkBase     string
	checkRotation int
	checkBlocks   string
)

// blockDump is a local voxel export: one entry per non-air block.
type blockDump []struct {
	X            int32 `json:"x"`
	Y            int32 `json:"y"`
	Z            int32 `json:"z"`
	ObjectTypeID uint8 `json:"objectTypeId"`
}

func loadBlocks(path string) (voxel.BlockGetter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dump blockDump
	if err := json.Unmarshal(b, &dump); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	blocks := make(map[voxel.VoxelCoord]uint8, len(dump))
	for _, e := range dump {
		blocks[voxel.VoxelCoord{X: e.X, Y: e.Y, Z: e.Z}] = e.ObjectTypeID
	}
	return func(c voxel.VoxelCoord) uint8 { return blocks[c] }, nil
}

var buildCheckCmd = &cobra.Command{
	Use:   "check <build.json>",
	Short: "Validate a build export and optionally check it is placed in a block dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		b, err := voxel.ParseBuildJSON(text)
		if err != nil {
			return err
		}
		if !b.Complete() {
			return fmt.Errorf("build has %d object types for %d positions", len(b.ObjectTypeIDs), len(b.RelativePositions))
		}
		var base voxel.VoxelCoord
		if checkBase != "" {
			if base, err = voxel.ParseCoordJSON([]byte(checkBase)); err != nil {
				return err
			}
		}
		bounds := b.Bounds(base, checkRotation)
		out, err := voxel.MarshalArea(bounds)
		if err != nil {
			return err
		}
		fmt.Printf("valid build, %d blocks, bounds %s\n", len(b.ObjectTypeIDs), out)
		if checkBlocks == "" {
			return nil
		}
		get, err := loadBlocks(checkBlocks)
		if err != nil {
			return err
		}
		if !voxel.CheckPlaced(get, b, base, checkRotation) {
			return fmt.Errorf("build is not placed at %s", checkBase)
		}
		fmt.Println("placed")
		return nil
	},
}

var buildExportCmd = &cobra.Command{
	Use:   "export <contract> <function>",
	Short: "Read a build or area getter and print it in the import format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		v, err := c.Read(cmd.Context(), args[1])
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		d := display.Classify(v)
		var out []byte
		switch d.Kind {
		case display.KindBuild:
			out, err = voxel.MarshalBuild(d.Build)
		case display.KindBuildWithPos:
			out, err = voxel.MarshalBuildWithPos(d.BuildWithPos)
		case display.KindArea:
			out, err = voxel.MarshalArea(d.Area)
		default:
			return fmt.Errorf("%s.%s returned %s, not a build or area", c.Name, args[1], d.Kind)
		}
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup <contract>",
	Short: "Print the match area, players and build to paste into the Biomes client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		b, err := game.Setup(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		return printJSON(b)
	},
}

var (
	trendPrice string
	trendName  string
	trendBase  string
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Publish and submit build trends",
}

var trendsCreateCmd = &cobra.Command{
	Use:   "create <contract> <build.json>",
	Short: "Publish a build others pay to copy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		t, err := game.NewTrends(c, s.Tx)
		if err != nil {
			return err
		}
		price, err := game.BuildPrice(trendPrice)
		if err != nil {
			return fmt.Errorf("--price: %w", err)
		}
		r, err := t.Create(cmd.Context(), text, price, trendName)
		if err != nil {
			return wrapTx("create trend", err)
		}
		printReceipt(r)
		return nil
	},
}

var trendsSubmitCmd = &cobra.Command{
	Use:   "submit <contract> <id>",
	Short: "Claim a placed build, paying the trend's price",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, ok := new(big.Int).SetString(args[1], 10)
		if !ok {
			return fmt.Errorf("bad trend id %q", args[1])
		}
		var base *voxel.VoxelCoord
		if trendBase != "" {
			c, err := voxel.ParseBaseWorldCoordJSON([]byte(trendBase))
			if err != nil {
				return err
			}
			base = &c
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		t, err := game.NewTrends(c, s.Tx)
		if err != nil {
			return err
		}
		t.GasFeeCap, t.GasTipCap = s.Network.Fees()
		entry, err := trendEntry(cmd, t, id)
		if err != nil {
			return err
		}
		logger.Printf("submitting trend %s %q for %s", entry.ID, entry.Name, display.FormatEther(entry.Price))
		r, err := t.Submit(cmd.Context(), entry, base)
		if err != nil {
			return wrapTx("submit building", err)
		}
		printReceipt(r)
		return nil
	},
}

// trendEntry reads the trend from chain. --price is only used for
// contracts that expose no trend list.
func trendEntry(cmd *cobra.Command, t *game.Trends, id *big.Int) (voxel.ListEntry, error) {
	entry, err := t.Entry(cmd.Context(), id)
	if err == nil {
		if trendPrice != "" {
			p, perr := game.BuildPrice(trendPrice)
			if perr != nil {
				return voxel.ListEntry{}, fmt.Errorf("--price: %w", perr)
			}
			if p.Cmp(entry.Price) != 0 {
				return voxel.ListEntry{}, fmt.Errorf("--price %s does not match the trend price %s", display.FormatEther(p), display.FormatEther(entry.Price))
			}
		}
		return entry, nil
	}
	if !errors.Is(err, game.ErrNoTrendList) {
		return voxel.ListEntry{}, fmt.Errorf("%s", chain.ParseError(err))
	}
	price, perr := game.BuildPrice(trendPrice)
	if perr != nil {
		return voxel.ListEntry{}, fmt.Errorf("%w; pass --price: %v", err, perr)
	}
	return voxel.ListEntry{ID: id, Price: price}, nil
}

var trendsListCmd = &cobra.Command{
	Use:   "list <contract>",
	Short: "List published trends with their prices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		t, err := game.NewTrends(c, s.Tx)
		if err != nil {
			return err
		}
		list, err := t.Entries(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tBLOCKS\tBUILDERS")
		for _, e := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", e.ID, e.Name, display.FormatEther(e.Price), len(e.Blueprint.ObjectTypeIDs), len(e.Builders))
		}
		return w.Flush()
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <contract>",
	Short: "Print a deathmatch game's status board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		m, err := game.NewMatch(c, s.Client, s.Tx)
		if err != nil {
			return err
		}
		st, err := m.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		if asJSON {
			return printJSON(st)
		}
		fmt.Printf("started: %v\nblocks remaining: %s\nplayers: %d\nreward pool: %s\n",
			st.Started, st.BlocksRemaining, len(st.Players), display.FormatEther(st.RewardPool))
		for i, e := range display.SortLeaderboard(st.Leaderboard) {
			fmt.Printf("%2d. %s %s\n", i+1, e.Player.Hex(), display.FormatBigInt(e.Balance))
		}
		return nil
	},
}

var matchClaimCmd = &cobra.Command{
	Use:   "claim <contract>",
	Short: "Claim the reward pool once the game is over",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := s.Registry.Contract(args[0])
		if err != nil {
			return err
		}
		m, err := game.NewMatch(c, s.Client, s.Tx)
		if err != nil {
			return err
		}
		_, err = m.ClaimRewardPool(cmd.Context(), printReceipt)
		return wrapTx("claim reward pool", err)
	},
}

func init() {
	buildCheckCmd.Flags().StringVar(&checkBase, "base", "", `base world coordinate, e.g. {"x":0,"y":0,"z":0}`)
	buildCheckCmd.Flags().IntVar(&checkRotation, "rotation", 0, "quarter turns or degrees")
	buildCheckCmd.Flags().StringVar(&checkBlocks, "blocks", "", "JSON block dump to check placement against")
	buildCmd.AddCommand(buildCheckCmd, buildExportCmd)

	trendsCmd.PersistentFlags().StringVar(&trendPrice, "price", "", "entry price in ether; submit reads it from chain when the contract lists trends")
	trendsCreateCmd.Flags().StringVar(&trendName, "name", "", "trend name")
	trendsSubmitCmd.Flags().StringVar(&trendBase, "base", "", `base world coordinate, e.g. {"baseWorldCoord":{"x":0,"y":0,"z":0}}`)
	trendsCmd.AddCommand(trendsCreateCmd, trendsSubmitCmd, trendsListCmd)

	matchCmd.AddCommand(matchClaimCmd)
	rootCmd.AddCommand(buildCmd, setupCmd, trendsCmd, matchCmd)
}
