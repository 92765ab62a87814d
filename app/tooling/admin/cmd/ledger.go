package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/safeguard/fraudledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	limit  int
	offset int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash linkage of the local ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(true)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		v := st.VerifyChain()
		if !v.Valid {
			pterm.Error.Printfln("chain is compromised at block %d: %s", *v.FirstBadIndex, v.Reason)
			return errors.New("verification failed")
		}

		pterm.Success.Printfln("chain verified: %d blocks", len(st.RetrieveChain()))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the transaction counts of the local ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(true)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		s := st.QueryStats()
		info := st.RetrieveNetworkInfo()

		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Network", fmt.Sprintf("%s %s", info.Name, info.Version)},
			{"Hash", st.RetrieveHashAlgorithm()},
			{"Blocks", strconv.Itoa(s.TotalBlocks)},
			{"Transactions", strconv.Itoa(s.TotalTransactions)},
			{"Fraud Reports", strconv.Itoa(s.FraudReports)},
			{"Predictions", strconv.Itoa(s.Predictions)},
			{"Other", strconv.Itoa(s.Other)},
			{"Pending", strconv.Itoa(s.PendingTransactions)},
			{"Integrity", s.ChainIntegrity},
		}).Render()
	},
}

var txCmd = &cobra.Command{
	Use:   "tx <id>",
	Short: "Print a sealed transaction.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(true)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		lookup, found := st.QueryTransaction(args[0])
		if !found {
			return fmt.Errorf("transaction %q not found", args[0])
		}

		data, err := lookup.Tx.MarshalJSON()
		if err != nil {
			return err
		}

		pterm.Info.Printfln("block %d %s", lookup.BlockIndex, lookup.BlockHash)
		fmt.Println(string(data))
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List the sealed fraud reports.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(true)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		data := pterm.TableData{{"ID", "Type", "Description", "Time", "Block"}}
		for _, r := range st.QueryFraudReports(limit, offset) {
			data = append(data, []string{r.ID, r.FraudType, r.Description, r.Timestamp.Format(time.RFC3339), strconv.FormatUint(r.BlockIndex, 10)})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "List the sealed predictions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(true)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		data := pterm.TableData{{"ID", "Type", "Fraud", "Confidence", "Time", "Block"}}
		for _, p := range st.QueryPredictions(limit, offset) {
			data = append(data, []string{
				p.ID,
				p.PredictionType,
				strconv.FormatBool(p.IsFraud),
				strconv.FormatFloat(p.Confidence, 'f', 2, 64),
				p.Timestamp.Format(time.RFC3339),
				strconv.FormatUint(p.BlockIndex, 10),
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal the pending transactions of the local ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLedger(false)
		if err != nil {
			return err
		}
		defer st.Shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Sealing %d transactions at difficulty %d ...", st.QueryMempoolLength(), difficulty))

		block, err := st.ForceSeal(ctx)
		switch {
		case errors.Is(err, database.ErrNoTransactions):
			spinner.Info("nothing to seal")
			return nil
		case errors.Is(err, context.Canceled):
			spinner.Warning("sealing cancelled, transactions stay pending")
			return nil
		case err != nil:
			spinner.Fail(err.Error())
			return err
		}

		spinner.Success(fmt.Sprintf("sealed block %d nonce %d hash %s", block.Index, block.Nonce, block.Hash))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reportsCmd, predictionsCmd} {
		c.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum number of records.")
		c.Flags().IntVarP(&offset, "offset", "o", 0, "Number of records to skip.")
	}

	rootCmd.AddCommand(verifyCmd, statsCmd, txCmd, reportsCmd, predictionsCmd, sealCmd)
}
