package station

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Station", func() {
	var s *Station

	BeforeEach(func() {
		s = New(3, 2, 1)
	})

	It("should be named after its ordinal", func() {
		Expect(s.Name()).To(Equal("Room3"))
	})

	It("should track occupancy", func() {
		Expect(s.Occupy()).To(Equal(int64(1)))
		Expect(s.Full()).To(BeFalse())
		Expect(s.Occupy()).To(Equal(int64(2)))
		Expect(s.Full()).To(BeTrue())
		Expect(s.Vacate()).To(Equal(int64(1)))
		Expect(s.Occupancy()).To(Equal(int64(1)))
	})

	It("should panic when vacated while empty", func() {
		Expect(func() { s.Vacate() }).To(Panic())
	})

	It("should count concurrent occupants exactly", func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Occupy()
				s.Vacate()
			}()
		}
		wg.Wait()

		Expect(s.Occupancy()).To(Equal(int64(0)))
	})
})
