package main

import (
	"testing"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
)

func TestScenarios(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	cases := []struct {
		name string
		run  func(ciphersuite.Suite) error
	}{
		{"S1", scenarioFounderAddWelcome},
		{"S2", scenarioUpdatePath},
		{"S3", scenarioRemoveSelfIsRemoved},
		{"S4", scenarioOutOfOrderApplication},
		{"S5", scenarioBulkAddBeyondCapacity},
		{"S6", scenarioWelcomeIntegrity},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.run(suite); err != nil {
				t.Fatalf("%s: %v", c.name, err)
			}
		})
	}
}
