package cmd

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_LocalCommands(t *testing.T) {
	t.Log("Given the need to administer a local ledger.")
	{
		dir := t.TempDir()

		tests := [][]string{
			{"--path", dir, "--storage", "disk", "--difficulty", "1", "seal"},
			{"--path", dir, "--storage", "disk", "verify"},
			{"--path", dir, "--storage", "disk", "stats"},
			{"--path", dir, "--storage", "disk", "reports", "--limit", "5"},
			{"--path", dir, "--storage", "disk", "predictions"},
			{"--path", dir, "--storage", "bolt", "--difficulty", "1", "seal"},
			{"--path", dir, "--storage", "bolt", "verify"},
		}

		for testID, args := range tests {
			t.Logf("\tTest %d:\tWhen running %v.", testID, args)
			{
				rootCmd.SetArgs(args)
				if err := rootCmd.Execute(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to run the command: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to run the command.", success, testID)
			}
		}

		t.Logf("\tTest %d:\tWhen asking for an unknown transaction.", len(tests))
		{
			rootCmd.SetArgs([]string{"--path", dir, "--storage", "disk", "tx", "0000000000000000"})
			if err := rootCmd.Execute(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould get an error.", failed, len(tests))
			}
			t.Logf("\t%s\tTest %d:\tShould get an error.", success, len(tests))
		}
	}
}

func Test_InspectionIsReadOnly(t *testing.T) {
	t.Log("Given the need to inspect a ledger without changing it.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the ledger file is corrupt.", testID)
		{
			dir := t.TempDir()
			file := filepath.Join(dir, "ledger.json")
			corrupt := []byte(`{"chain":[{"index":0,`)
			if err := os.WriteFile(file, corrupt, 0644); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %s", failed, testID, err)
			}

			for _, command := range []string{"verify", "stats"} {
				rootCmd.SetArgs([]string{"--path", dir, "--storage", "disk", command})
				if err := rootCmd.Execute(); err == nil {
					t.Fatalf("\t%s\tTest %d:\tShould fail %s on a corrupt ledger.", failed, testID, command)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould fail on a corrupt ledger.", success, testID)

			data, err := os.ReadFile(file)
			if err != nil || string(data) != string(corrupt) {
				t.Fatalf("\t%s\tTest %d:\tShould leave the file untouched: %v", failed, testID, err)
			}
			if _, err := os.Stat(filepath.Join(dir, "ledger.corrupt.json")); !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("\t%s\tTest %d:\tShould not write a backup: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the file untouched.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the ledger path doesn't exist.", testID)
		{
			dir := filepath.Join(t.TempDir(), "missing")

			rootCmd.SetArgs([]string{"--path", dir, "--storage", "disk", "verify"})
			if err := rootCmd.Execute(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail without a ledger.", failed, testID)
			}
			if _, err := os.Stat(dir); !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("\t%s\tTest %d:\tShould not create the path: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail without creating the path.", success, testID)
		}
	}
}

func Test_SubmitFraud(t *testing.T) {
	t.Log("Given the need to submit a fraud report to the service.")
	{
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/tx/fraud" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewDecoder(r.Body).Decode(&got)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"00112233aabbccdd","status":"sealed","block_index":1}`))
		}))
		defer srv.Close()

		testID := 0
		t.Logf("\tTest %d:\tWhen posting a report.", testID)
		{
			rootCmd.SetArgs([]string{"--url", srv.URL, "submit-fraud", "--type", "phishing", "--description", "fake bank page"})
			if err := rootCmd.Execute(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the report: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit the report.", success, testID)

			if got["fraud_type"] != "phishing" || got["description"] != "fake bank page" {
				t.Fatalf("\t%s\tTest %d:\tShould send the report fields: %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould send the report fields.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the service rejects the call.", testID)
		{
			rootCmd.SetArgs([]string{"--url", srv.URL, "status"})
			if err := rootCmd.Execute(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould get an error.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get an error.", success, testID)
		}
	}
}
