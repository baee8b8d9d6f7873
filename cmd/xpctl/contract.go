package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/display"
)

var functionsCmd = &cobra.Command{
	Use:   "functions <contract>",
	Short: "List a contract's variables, reads and writes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := contracts.Catalog(args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cat)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, sec := range []struct {
			title string
			fns   []abiform.Function
		}{
			{"VARIABLES", cat.Variables},
			{"READ", cat.Reads},
			{"WRITE", cat.Writes},
		} {
			fmt.Fprintf(w, "%s\n", sec.title)
			for _, f := range sec.fns {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", f.Name, signature(f.Inputs), f.StateMutability, f.InheritedFrom)
			}
		}
		return w.Flush()
	},
}

func signature(ps []abiform.Param) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		t := p.InternalType
		if t == "" {
			t = p.Type
		}
		if p.Name != "" {
			t += " " + p.Name
		}
		parts = append(parts, t)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// fillForm sets inputs positionally, then name=value pairs by parameter
// name, then applies an optional JSON import.
func fillForm(fn abiform.Function, inputs, named []string, importPath string) (*abiform.Form, error) {
	form := abiform.NewForm(fn)
	for i, v := range inputs {
		if err := form.SetInput(i, v); err != nil {
			return nil, err
		}
	}
	for _, kv := range named {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", kv)
		}
		if err := form.SetNamed(name, value); err != nil {
			return nil, err
		}
	}
	if importPath == "" {
		return form, nil
	}
	kind := abiform.DetectImport(fn)
	if kind == abiform.ImportNone {
		return nil, fmt.Errorf("%s takes no build or area import", fn.Name)
	}
	text, err := os.ReadFile(importPath)
	if err != nil {
		return nil, err
	}
	if err := form.Import(kind, text); err != nil {
		return nil, fmt.Errorf("import %s: %w", kind, err)
	}
	return form, nil
}

var (
	readText bool
	readSet  []string
)

var readCmd = &cobra.Command{
	Use:   "read <contract> <function> [args...]",
	Short: "Call a view function and print the classified result",
	Args:  cobra.MinimumNArgs(2),
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
		fn, ok := c.Form.Function(args[1])
		if !ok {
			return fmt.Errorf("%s has no function %q", c.Name, args[1])
		}
		if !fn.IsView() {
			return fmt.Errorf("%s.%s is not a view function, use write", c.Name, fn.Name)
		}
		form, err := fillForm(fn, args[2:], readSet, "")
		if err != nil {
			return err
		}
		callArgs, err := form.Args()
		if err != nil {
			return err
		}
		v, err := c.Read(cmd.Context(), fn.Method, callArgs...)
		if err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		if asJSON {
			fmt.Println(display.JSON(v, 2))
			return nil
		}
		r := display.Renderer{ExplorerURL: s.Network.ExplorerURL}
		fmt.Println(r.Render(display.Classify(v), readText))
		return nil
	},
}

var (
	writeValue  string
	writeImport string
	writeSet    []string
)

var writeCmd = &cobra.Command{
	Use:   "write <contract> <function> [args...]",
	Short: "Send a state-changing function and wait for the receipt",
	Args:  cobra.MinimumNArgs(2),
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
		fn, ok := c.Form.Function(args[1])
		if !ok || abiform.IsHookFunction(fn.Name) {
			return fmt.Errorf("%s has no writable function %q", c.Name, args[1])
		}
		if fn.IsView() {
			return fmt.Errorf("%s.%s is a view function, use read", c.Name, fn.Name)
		}
		form, err := fillForm(fn, args[2:], writeSet, writeImport)
		if err != nil {
			return err
		}
		opts := s.writeOptions()
		if writeValue != "" {
			if !fn.IsPayable() {
				return fmt.Errorf("%s.%s is not payable", c.Name, fn.Name)
			}
			if opts.Value, err = abiform.ParseEther(writeValue); err != nil {
				return err
			}
		}
		opts.OnConfirmed = printReceipt
		if _, err := s.Tx.WriteForm(cmd.Context(), c, form, opts); err != nil {
			return fmt.Errorf("%s", chain.ParseError(err))
		}
		return nil
	},
}

func printReceipt(r *types.Receipt) {
	fmt.Printf("confirmed %s in block %s (gas %d)\n", r.TxHash.Hex(), r.BlockNumber, r.GasUsed)
}

func init() {
	readCmd.Flags().BoolVar(&readText, "text", false, "render as plain text")
	readCmd.Flags().StringArrayVar(&readSet, "set", nil, "set an input by parameter name, name=value")
	writeCmd.Flags().StringVar(&writeValue, "value", "", "ether to send with a payable function")
	writeCmd.Flags().StringVar(&writeImport, "import", "", "fill build, area or coordinate inputs from a JSON file")
	writeCmd.Flags().StringArrayVar(&writeSet, "set", nil, "set an input by parameter name, name=value")
	rootCmd.AddCommand(functionsCmd, readCmd, writeCmd)
}
