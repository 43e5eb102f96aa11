package traversal

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Accumulator", func() {
	It("should sum concurrent additions", func() {
		a := &Accumulator{}

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				a.Add(time.Duration(n) * time.Millisecond)
			}(i)
		}
		wg.Wait()

		Expect(a.Total()).To(Equal(1275 * time.Millisecond))
		Expect(a.Count()).To(Equal(50))
	})
})
