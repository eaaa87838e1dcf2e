package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ens-namer",
		Short:         "Set the ENS primary name of a deployed contract",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $CONFIG_FILE or ./config.yaml)")

	root.AddCommand(newNameCmd(a), newChainsCmd(a), newHistoryCmd(a))
	return root
}

func newNameCmd(a *app) *cobra.Command {
	var opts nameOptions
	cmd := &cobra.Command{
		Use:   "name <ens-name>",
		Short: "Create the subname, point it at the contract and set the reverse record",
		Example: `  ens-namer name counter.myapp.eth --contract 0x5FbDB2315678afecb367f032d93F642f64180aa3 --chain sepolia
  ens-namer name counter.myapp.eth --contract 0x5FbDB2315678afecb367f032d93F642f64180aa3 --chain base-sepolia`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runName(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.contract, "contract", "", "address of the deployed contract")
	cmd.Flags().StringVar(&opts.chain, "chain", "sepolia", "chain the contract lives on")
	cmd.Flags().BoolVar(&opts.noMetric, "no-metrics", false, "do not send metrics events for this run")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}

func newChainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List supported chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChains()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var chainArg, contract string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the last recorded run for a contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd.Context(), chainArg, contract)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "sepolia", "chain argument used for the run")
	cmd.Flags().StringVar(&contract, "contract", "", "address of the contract")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}
