// Command mls-harness runs the group-keying scenarios spec.md §8 names
// (S1-S6) against the group/ratchettree/keyschedule stack and reports
// pass/fail as a JSON vector file, in the spirit of an offline conformance
// check rather than a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
)

// scenarioResult mirrors the summary-line-plus-detail shape of a vector
// runner: a name, pass/fail, and a free-form detail string for the log.
type scenarioResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type report struct {
	CipherSuite string           `json:"cipher_suite"`
	Scenarios   []scenarioResult `json:"scenarios"`
	AllPassed   bool             `json:"all_passed"`
}

func main() {
	outPath := flag.String("out", "", "write the JSON report to this path instead of stdout")
	onlyName := flag.String("scenario", "", "run only the scenario with this full name (e.g. S1_founder_add_welcome); empty runs all")
	flag.Parse()

	suite := ciphersuite.NewX25519Suite()
	scenarios := []struct {
		name string
		run  func(ciphersuite.Suite) error
	}{
		{"S1_founder_add_welcome", scenarioFounderAddWelcome},
		{"S2_update_path", scenarioUpdatePath},
		{"S3_remove_self_is_removed", scenarioRemoveSelfIsRemoved},
		{"S4_out_of_order_application", scenarioOutOfOrderApplication},
		{"S5_bulk_add_beyond_capacity", scenarioBulkAddBeyondCapacity},
		{"S6_welcome_integrity", scenarioWelcomeIntegrity},
	}

	var results []scenarioResult
	allPassed := true
	for _, s := range scenarios {
		if *onlyName != "" && s.name != *onlyName {
			continue
		}
		err := s.run(suite)
		res := scenarioResult{Name: s.name, Passed: err == nil}
		if err != nil {
			res.Detail = err.Error()
			allPassed = false
		} else {
			res.Detail = "ok"
		}
		results = append(results, res)
	}

	rep := report{CipherSuite: fmt.Sprintf("0x%04x", uint16(suite.ID())), Scenarios: results, AllPassed: allPassed}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("mls-harness: marshal report: %v", err)
	}

	if *outPath == "" {
		os.Stdout.Write(out)
		os.Stdout.Write([]byte("\n"))
	} else {
		if err := os.WriteFile(*outPath, out, 0o644); err != nil {
			log.Fatalf("mls-harness: write report: %v", err)
		}
		log.Printf("mls-harness: wrote report to %s", *outPath)
	}

	if !allPassed {
		os.Exit(1)
	}
}
