package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pterm/pterm"
	"github.com/safeguard/fraudledger/business/web/errs"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

var (
	fraudType   string
	description string
	reporterID  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a running ledger service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status state.NetworkStatus
		if err := call(client().R().SetContext(cmd.Context()).SetResult(&status), "GET", "/v1/ledger/status"); err != nil {
			return err
		}

		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Status", status.Status},
			{"Health", status.NetworkHealth},
			{"Chain Length", strconv.Itoa(status.ChainLength)},
			{"Pending", strconv.Itoa(status.PendingTransactions)},
			{"Last Block", status.LastBlockHash},
			{"Verified", strconv.FormatBool(status.IntegrityVerified)},
			{"Difficulty", strconv.FormatUint(uint64(status.Difficulty), 10)},
		}).Render()
	},
}

var submitFraudCmd = &cobra.Command{
	Use:   "submit-fraud",
	Short: "Submit a fraud report to a running ledger service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"fraud_type":  fraudType,
			"description": description,
			"evidence":    map[string]any{},
		}
		if reporterID != "" {
			body["reporter_id"] = reporterID
		}

		var resp struct {
			ID         string  `json:"id"`
			Status     string  `json:"status"`
			BlockIndex *uint64 `json:"block_index"`
			Warning    string  `json:"warning"`
		}
		if err := call(client().R().SetContext(cmd.Context()).SetBody(body).SetResult(&resp), "POST", "/v1/tx/fraud"); err != nil {
			return err
		}

		if resp.Warning != "" {
			pterm.Warning.Println(resp.Warning)
		}

		switch resp.BlockIndex {
		case nil:
			pterm.Success.Printfln("report %s is %s", resp.ID, resp.Status)
		default:
			pterm.Success.Printfln("report %s is %s in block %d", resp.ID, resp.Status, *resp.BlockIndex)
		}

		return nil
	},
}

func init() {
	submitFraudCmd.Flags().StringVarP(&fraudType, "type", "t", "", "Type of fraud.")
	submitFraudCmd.Flags().StringVar(&description, "description", "", "What happened.")
	submitFraudCmd.Flags().StringVar(&reporterID, "reporter", "", "Id of the reporter.")
	submitFraudCmd.MarkFlagRequired("type")
	submitFraudCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(statusCmd, submitFraudCmd)
}

// =============================================================================

// client constructs the http client for the ledger service.
func client() *resty.Client {
	return resty.New().
		SetBaseURL(serviceURL).
		SetTimeout(2*time.Minute).
		SetHeader("Accept", "application/json")
}

// call executes the request and turns an error response from the service
// into an error.
func call(req *resty.Request, method string, path string) error {
	var er errs.Response
	resp, err := req.SetError(&er).Execute(method, path)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}

	if resp.IsError() {
		if er.Error == "" {
			return fmt.Errorf("calling %s: %s", path, resp.Status())
		}
		return fmt.Errorf("calling %s: %s: %s", path, resp.Status(), er.Error)
	}

	return nil
}
