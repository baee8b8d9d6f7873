package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/biomes"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/game"
	"biomesxp.io/internal/stage"
)

// registration binds the world and the chain's experience contract for the
// signing account.
func (s *session) registration() (game.Registration, error) {
	worldAddr, err := settings.World(s.Networks, s.Network.ChainID)
	if err != nil {
		return game.Registration{}, err
	}
	world, err := biomes.NewWorld(worldAddr, s.Client, s.Tx)
	if err != nil {
		return game.Registration{}, err
	}
	var lastErr error
	for _, name := range game.ExperienceContracts {
		c, err := s.Registry.Contract(name)
		if err != nil {
			lastErr = err
			continue
		}
		return game.NewRegistration(world, c.WithFrom(s.Client.From())), nil
	}
	return game.Registration{}, lastErr
}

func withRegistration(fn func(ctx context.Context, s *session, r game.Registration) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		r, err := s.registration()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), s, r)
	}
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Show or change the experience's system hooks for the signing account",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		ok, err := r.Hooks.Registered(ctx, s.Client.From())
		if err != nil {
			return err
		}
		fmt.Printf("hooks on %v: %v\n", r.Hooks.Systems, registered(ok))
		return nil
	}),
}

var hooksRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the experience hooks in one batch call",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		_, err := r.Hooks.Register(ctx, printReceipt)
		return wrapTx("register hooks", err)
	}),
}

var hooksUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove the experience hooks in one batch call",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		_, err := r.Hooks.Unregister(ctx, printReceipt)
		return wrapTx("unregister hooks", err)
	}),
}

var delegationCmd = &cobra.Command{
	Use:   "delegation",
	Short: "Show or change the unlimited delegation to the experience",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		required, err := r.DelegationRequired(ctx, s.Client.From())
		if err != nil {
			return err
		}
		ok, err := r.Delegation.Registered(ctx, s.Client.From())
		if err != nil {
			return err
		}
		fmt.Printf("delegation to %s: %v (required: %v)\n", r.Delegation.Delegatee.Hex(), registered(ok), required)
		return nil
	}),
}

var delegationRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Delegate to the experience without limit",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		_, err := r.Delegation.Register(ctx, printReceipt)
		return wrapTx("register delegation", err)
	}),
}

var delegationUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove the delegation to the experience",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		_, err := r.Delegation.Unregister(ctx, printReceipt)
		return wrapTx("unregister delegation", err)
	}),
}

var (
	clientSetup bool
	stageWatch  time.Duration
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Print the signing account's registration stage",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		if stageWatch > 0 {
			return watchStage(ctx, s, r)
		}
		g, err := r.Gates(ctx, s.Client.From(), clientSetup)
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		st := stage.Resolve(g)
		if asJSON {
			return printJSON(struct {
				Stage stage.Stage `json:"stage"`
				Gates stage.Gates `json:"gates"`
			}{st, g})
		}
		fmt.Println(st)
		return nil
	}),
}

// watchStage prints the account's stage, then every transition until
// interrupted.
func watchStage(ctx context.Context, s *session, r game.Registration) error {
	g, err := r.Gates(ctx, s.Client.From(), clientSetup)
	if err != nil {
		return fmt.Errorf("%s", chain.ParseError(err))
	}
	m := stage.NewMachine(s.Client.From().Hex(), g)
	printStage := func(st stage.Stage) {
		fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), st)
	}
	printStage(m.Stage())
	m.OnChange(printStage)
	err = r.Follow(ctx, m, stageWatch, func(err error) {
		logger.Printf("stage: %s", chain.ParseError(err))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var playerValue string

var registerPlayerCmd = &cobra.Command{
	Use:   "register-player",
	Short: "Pay the experience's registration fee",
	RunE: withRegistration(func(ctx context.Context, s *session, r game.Registration) error {
		opts := s.writeOptions()
		if playerValue != "" {
			v, err := abiform.ParseEther(playerValue)
			if err != nil {
				return err
			}
			opts.Value = v
		}
		opts.OnConfirmed = printReceipt
		return wrapTx("register player", game.RegisterPlayer(ctx, s.Tx, r.Game, opts))
	}),
}

func registered(ok bool) string {
	if ok {
		return "registered"
	}
	return "not registered"
}

func wrapTx(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", what, chain.ParseError(err))
}

func init() {
	hooksCmd.AddCommand(hooksRegisterCmd, hooksUnregisterCmd)
	delegationCmd.AddCommand(delegationRegisterCmd, delegationUnregisterCmd)
	stageCmd.Flags().BoolVar(&clientSetup, "client-setup", false, "the Biomes client is already set up")
	stageCmd.Flags().DurationVar(&stageWatch, "watch", 0, "keep polling at this interval and print stage changes")
	registerPlayerCmd.Flags().StringVar(&playerValue, "value", "", "ether to pay (default: 0.0015)")
	rootCmd.AddCommand(hooksCmd, delegationCmd, stageCmd, registerPlayerCmd)
}
