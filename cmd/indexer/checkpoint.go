package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"theragraph/internal/config"
)

func newCheckpointCmd() *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or advance contract checkpoints",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print checkpoints, all of them when --contract is empty",
		RunE:  runCheckpointGet,
	}
	addStoreFlags(getCmd)
	getCmd.Flags().String("contract", "", "contract address")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Advance a contract checkpoint; lower blocks are ignored",
		RunE:  runCheckpointSet,
	}
	addStoreFlags(setCmd)
	setCmd.Flags().String("contract", "", "contract address")
	setCmd.Flags().String("type", "friends", "contract type")
	setCmd.Flags().Uint64("block", 0, "block number")
	_ = setCmd.MarkFlagRequired("contract")
	_ = setCmd.MarkFlagRequired("block")

	checkpointCmd.AddCommand(getCmd, setCmd)
	return checkpointCmd
}

func runCheckpointGet(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	storeCfg, err := config.LoadStore(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	contract, _ := cmd.Flags().GetString("contract")
	if contract == "" {
		checkpoints, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list checkpoints: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, cp := range checkpoints {
			if err := enc.Encode(cp); err != nil {
				return err
			}
		}
		return nil
	}

	if err := config.ValidateAddress(contract); err != nil {
		return err
	}
	block, ok, err := store.LastBlock(ctx, contract)
	if err != nil {
		return fmt.Errorf("get checkpoint: %w", err)
	}
	if !ok {
		return fmt.Errorf("no checkpoint for %s", contract)
	}
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}

func runCheckpointSet(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	storeCfg, err := config.LoadStore(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	contract, _ := cmd.Flags().GetString("contract")
	contractType, _ := cmd.Flags().GetString("type")
	block, _ := cmd.Flags().GetUint64("block")
	if err := config.ValidateAddress(contract); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveLastBlock(ctx, contract, contractType, block); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	current, _, err := store.LastBlock(ctx, contract)
	if err != nil {
		return fmt.Errorf("read back checkpoint: %w", err)
	}
	if current != block {
		logger.Warn("checkpoint already ahead, kept", zap.String("contract", config.FormatAddress(contract)), zap.Uint64("requested", block), zap.Uint64("current", current))
	} else {
		logger.Info("checkpoint saved", zap.String("contract", config.FormatAddress(contract)), zap.String("type", contractType), zap.Uint64("block", block))
	}
	fmt.Fprintln(cmd.OutOrStdout(), current)
	return nil
}
