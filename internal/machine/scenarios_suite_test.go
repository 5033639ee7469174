package machine_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMachineScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Machine end-to-end scenarios")
}
