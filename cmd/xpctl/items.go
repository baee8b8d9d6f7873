package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/game"
)

// contractSession opens a session and binds the named contract. The caller
// closes the session.
func contractSession(cmd *cobra.Command, name string) (*session, *chain.Contract, error) {
	s, err := openSession(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	c, err := s.Registry.Contract(name)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, c.WithFrom(s.Tx.From()), nil
}

func parseChest(s string) ([32]byte, error) {
	var out [32]byte
	if !display.IsBytes32(s) {
		return out, fmt.Errorf("chest entity id %q is not 0x-prefixed bytes32", s)
	}
	copy(out[:], hexutil.MustDecode(s))
	return out, nil
}

func parseObjectType(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("object type id %q: want 0-255", s)
	}
	return uint8(n), nil
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Read and withdraw from an experience's vault chest",
}

func withVault(fn func(cmd *cobra.Command, s *session, v *game.Vault, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, c, err := contractSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		v, err := game.NewVault(c, s.Tx)
		if err != nil {
			return err
		}
		return fn(cmd, s, v, args[1:])
	}
}

var vaultItemsCmd = &cobra.Command{
	Use:   "items <contract>",
	Short: "Print the number of items in the vault",
	Args:  cobra.ExactArgs(1),
	RunE: withVault(func(cmd *cobra.Command, s *session, v *game.Vault, _ []string) error {
		n, err := v.NumItems(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		fmt.Println(display.Renderer{}.Render(display.Classify(n), true))
		return nil
	}),
}

var vaultWithdrawCmd = &cobra.Command{
	Use:   "withdraw <contract> <objectTypeId> <count>",
	Short: "Withdraw items of one object type",
	Args:  cobra.ExactArgs(3),
	RunE: withVault(func(cmd *cobra.Command, s *session, v *game.Vault, args []string) error {
		r, err := v.Withdraw(cmd.Context(), args...)
		if err != nil {
			return wrapTx("withdraw", err)
		}
		printReceipt(r)
		return nil
	}),
}

var vaultWithdrawToolCmd = &cobra.Command{
	Use:   "withdraw-tool <contract> <toolEntityId>",
	Short: "Withdraw one tool by entity id",
	Args:  cobra.ExactArgs(2),
	RunE: withVault(func(cmd *cobra.Command, s *session, v *game.Vault, args []string) error {
		r, err := v.WithdrawTool(cmd.Context(), args...)
		if err != nil {
			return wrapTx("withdraw tool", err)
		}
		printReceipt(r)
		return nil
	}),
}

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Run buy and sell chest shops",
}

var (
	shopPrice   string
	shopDeposit string
	shopPlayer  string
)

// openShop binds a buy chest when the contract has the buy functions and a
// sell chest otherwise.
func openShop(c *chain.Contract, tx *chain.Transactor) (*game.Shop, error) {
	shop, err := game.NewBuyChest(c, tx)
	if err == nil || !errors.Is(err, game.ErrMissingFunctions) {
		return shop, err
	}
	return game.NewSellChest(c, tx)
}

func withShop(fn func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, c, err := contractSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		shop, err := openShop(c, s.Tx)
		if err != nil {
			return err
		}
		return fn(cmd, s, shop, args[1:])
	}
}

var shopListCmd = &cobra.Command{
	Use:   "list <contract>",
	Short: "List the shops a player runs",
	Args:  cobra.ExactArgs(1),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, _ []string) error {
		player := s.Tx.From()
		if shopPlayer != "" {
			if !common.IsHexAddress(shopPlayer) {
				return fmt.Errorf("invalid --player %q", shopPlayer)
			}
			player = common.HexToAddress(shopPlayer)
		}
		shops, err := shop.Shops(cmd.Context(), player)
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		if asJSON {
			return printJSON(shops)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHEST\tOBJECT\tPRICE\tBALANCE\tSETUP")
		for _, d := range shops {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%v\n",
				display.TruncateEntity(hexutil.Encode(d.ChestEntityID[:])), d.ShopData.ObjectTypeID,
				display.FormatEther(d.ShopData.Price), display.FormatEther(d.Balance), d.IsSetup)
		}
		return w.Flush()
	}),
}

var shopChestsCmd = &cobra.Command{
	Use:   "chests <contract>",
	Short: "List the buy chests owned by the signing key",
	Args:  cobra.ExactArgs(1),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, _ []string) error {
		chests, err := shop.OwnedChests(cmd.Context(), s.Tx.From())
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		for _, c := range chests {
			fmt.Println(hexutil.Encode(c[:]))
		}
		return nil
	}),
}

var shopSetupCmd = &cobra.Command{
	Use:   "setup <contract> <chestEntityId> <objectTypeId>",
	Short: "Open a shop on a chest",
	Args:  cobra.ExactArgs(3),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error {
		chest, err := parseChest(args[0])
		if err != nil {
			return err
		}
		objectType, err := parseObjectType(args[1])
		if err != nil {
			return err
		}
		price, err := game.BuildPrice(shopPrice)
		if err != nil {
			return fmt.Errorf("--price: %w", err)
		}
		deposit, err := abiform.ParseEther(shopDeposit)
		if err != nil {
			return fmt.Errorf("--deposit: %w", err)
		}
		r, err := shop.Setup(cmd.Context(), chest, objectType, price, deposit)
		if err != nil {
			return wrapTx("setup shop", err)
		}
		printReceipt(r)
		return nil
	}),
}

var shopPriceCmd = &cobra.Command{
	Use:   "price <contract> <chestEntityId> <objectTypeId>",
	Short: "Change a buy chest's price",
	Args:  cobra.ExactArgs(3),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error {
		chest, err := parseChest(args[0])
		if err != nil {
			return err
		}
		objectType, err := parseObjectType(args[1])
		if err != nil {
			return err
		}
		price, err := game.BuildPrice(shopPrice)
		if err != nil {
			return fmt.Errorf("--price: %w", err)
		}
		r, err := shop.ChangePrice(cmd.Context(), chest, objectType, price)
		if err != nil {
			return wrapTx("change price", err)
		}
		printReceipt(r)
		return nil
	}),
}

var shopRefillCmd = &cobra.Command{
	Use:   "refill <contract> <chestEntityId> <objectTypeId> <ether>",
	Short: "Add ether to a buy chest's balance",
	Args:  cobra.ExactArgs(4),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error {
		chest, err := parseChest(args[0])
		if err != nil {
			return err
		}
		objectType, err := parseObjectType(args[1])
		if err != nil {
			return err
		}
		value, err := game.BuildPrice(args[2])
		if err != nil {
			return err
		}
		r, err := shop.Refill(cmd.Context(), chest, objectType, value)
		if err != nil {
			return wrapTx("refill", err)
		}
		printReceipt(r)
		return nil
	}),
}

var shopWithdrawCmd = &cobra.Command{
	Use:   "withdraw <contract> <chestEntityId> <ether>",
	Short: "Take ether out of a buy chest's balance",
	Args:  cobra.ExactArgs(3),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error {
		chest, err := parseChest(args[0])
		if err != nil {
			return err
		}
		amount, err := game.BuildPrice(args[1])
		if err != nil {
			return err
		}
		r, err := shop.WithdrawBalance(cmd.Context(), chest, amount)
		if err != nil {
			return wrapTx("withdraw balance", err)
		}
		printReceipt(r)
		return nil
	}),
}

var shopDestroyCmd = &cobra.Command{
	Use:   "destroy <contract> <chestEntityId> <objectTypeId>",
	Short: "Close a shop",
	Args:  cobra.ExactArgs(3),
	RunE: withShop(func(cmd *cobra.Command, s *session, shop *game.Shop, args []string) error {
		chest, err := parseChest(args[0])
		if err != nil {
			return err
		}
		objectType, err := parseObjectType(args[1])
		if err != nil {
			return err
		}
		r, err := shop.Destroy(cmd.Context(), chest, objectType)
		if err != nil {
			return wrapTx("destroy shop", err)
		}
		printReceipt(r)
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Pay experience contracts with an ERC20",
}

var tokenPayCmd = &cobra.Command{
	Use:   "pay <tokenAddress> <contract> <function> <amount>",
	Short: "Call a paid function, approving the token first when the allowance is short",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid token address %q", args[0])
		}
		s, c, err := contractSession(cmd, args[1])
		if err != nil {
			return err
		}
		defer s.Close()
		token, err := game.NewToken(common.HexToAddress(args[0]), s.Client)
		if err != nil {
			return err
		}
		name, symbol, err := token.Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("token %s: %s", args[0], chain.ParseError(err))
		}
		logger.Printf("paying %s %s (%s) to %s.%s", args[3], symbol, name, c.Name, args[2])
		step, err := game.PayWithToken(cmd.Context(), s.Tx, token, c, args[2], args[3], printReceipt)
		if err != nil {
			return wrapTx("pay", err)
		}
		if step == game.PayApproved {
			fmt.Println("approved; run pay again to call", args[2])
		}
		return nil
	},
}

func init() {
	vaultCmd.AddCommand(vaultItemsCmd, vaultWithdrawCmd, vaultWithdrawToolCmd)

	shopListCmd.Flags().StringVar(&shopPlayer, "player", "", "shop owner (default: the signing key)")
	shopSetupCmd.Flags().StringVar(&shopPrice, "price", "", "price per item in ether")
	shopSetupCmd.Flags().StringVar(&shopDeposit, "deposit", "", "ether to fund a buy chest with")
	shopPriceCmd.Flags().StringVar(&shopPrice, "price", "", "new price per item in ether")
	shopCmd.AddCommand(shopListCmd, shopChestsCmd, shopSetupCmd, shopPriceCmd, shopRefillCmd, shopWithdrawCmd, shopDestroyCmd)

	tokenCmd.AddCommand(tokenPayCmd)
	rootCmd.AddCommand(vaultCmd, shopCmd, tokenCmd)
}
