package ids_test

import (
	"sort"
	"testing"

	"github.com/frahmantamala/securemind/internal/ids"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIDs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IDs Suite")
}

var _ = Describe("New", func() {
	It("mints unique ids that sort in creation order", func() {
		minted := make([]string, 200)
		for i := range minted {
			minted[i] = ids.New()
		}
		Expect(sort.StringsAreSorted(minted)).To(BeTrue())

		seen := map[string]struct{}{}
		for _, id := range minted {
			Expect(id).To(HaveLen(26))
			seen[id] = struct{}{}
		}
		Expect(seen).To(HaveLen(len(minted)))
	})
})
