package gate

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/station"
)

// contend lets n goroutines pass through g, holding the station for hold, and
// returns the highest occupancy any of them observed.
func contend(g Gate, n int, hold time.Duration) int64 {
	var (
		wg   sync.WaitGroup
		peak atomic.Int64
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			occ := g.Enter()
			for {
				p := peak.Load()
				if occ <= p || peak.CompareAndSwap(p, occ) {
					break
				}
			}

			time.Sleep(hold)
			g.Leave()
		}()
	}
	wg.Wait()

	return peak.Load()
}

var _ = Describe("New", func() {
	It("should pick the gate by policy", func() {
		st := station.New(0, 1, 0)

		g, err := New(config.PolicyOrdered, st)
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&BlockingGate{}))

		g, err = New(config.PolicyDistributed, st)
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&BlockingGate{}))

		g, err = New(config.PolicyNonBlocking, st)
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&PollingGate{}))
		Expect(g.Station()).To(BeIdenticalTo(st))
	})

	It("should fail with a ResourceInitError on zero capacity", func() {
		r := station.NewRegistry(
			station.Descriptor{Capacity: 1, Delay: 1},
			station.Descriptor{Capacity: 0, Delay: 1},
		)

		for _, p := range []config.Policy{
			config.PolicyOrdered, config.PolicyNonBlocking,
		} {
			_, err := NewAll(p, r)

			var initErr *config.ResourceInitError
			Expect(errors.As(err, &initErr)).To(BeTrue())
			Expect(errors.Is(err, ErrNoCapacity)).To(BeTrue())
			Expect(initErr.Resource).To(ContainSubstring("room 1"))
		}
	})

	It("should create one gate per station", func() {
		r := station.NewRegistry(
			station.Descriptor{Capacity: 1, Delay: 1},
			station.Descriptor{Capacity: 2, Delay: 2},
		)

		gates, err := NewAll(config.PolicyDistributed, r)

		Expect(err).NotTo(HaveOccurred())
		Expect(gates).To(HaveLen(2))
		Expect(gates[1].Station().Capacity).To(Equal(2))

		CloseAll(gates)
		Expect(func() { gates[0].Enter() }).To(Panic())
	})
})

var _ = Describe("BlockingGate", func() {
	var (
		st *station.Station
		g  *BlockingGate
	)

	BeforeEach(func() {
		var err error
		st = station.New(0, 2, 0)
		g, err = NewBlocking(st)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should count occupants", func() {
		Expect(g.Enter()).To(Equal(int64(1)))
		Expect(g.Enter()).To(Equal(int64(2)))
		Expect(g.Leave()).To(Equal(int64(1)))
		Expect(g.Leave()).To(Equal(int64(0)))
	})

	It("should suspend entering agents while the station is full", func() {
		g.Enter()
		g.Enter()

		admitted := make(chan struct{})
		go func() {
			g.Enter()
			close(admitted)
		}()

		Consistently(admitted, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(st.Occupancy()).To(Equal(int64(2)))

		g.Leave()

		Eventually(admitted).Should(BeClosed())
		Expect(st.Occupancy()).To(Equal(int64(2)))
	})

	It("should never exceed the capacity", func() {
		peak := contend(g, 16, time.Millisecond)

		Expect(peak).To(BeNumerically("<=", 2))
		Expect(peak).To(BeNumerically(">=", 1))
		Expect(st.Occupancy()).To(Equal(int64(0)))
	})

	It("should panic when released more than acquired", func() {
		Expect(func() { g.Leave() }).To(Panic())
	})

	It("should panic on enter after close", func() {
		g.Close()

		Expect(func() { g.Enter() }).To(Panic())
	})
})

var _ = Describe("PollingGate", func() {
	var (
		st *station.Station
		g  *PollingGate
	)

	BeforeEach(func() {
		var err error
		st = station.New(0, 1, 0)
		g, err = NewPolling(st)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should admit immediately when there is room", func() {
		Expect(g.Enter()).To(Equal(int64(1)))
		Expect(g.Spins()).To(BeZero())
		Expect(g.Leave()).To(Equal(int64(0)))
	})

	It("should spin instead of suspending while the station is full", func() {
		g.Enter()

		admitted := make(chan struct{})
		go func() {
			g.Enter()
			close(admitted)
		}()

		Eventually(g.Spins).Should(BeNumerically(">", 0))
		Consistently(admitted, 20*time.Millisecond).ShouldNot(BeClosed())

		g.Leave()

		Eventually(admitted).Should(BeClosed())
		Expect(st.Occupancy()).To(Equal(int64(1)))
	})

	It("should over-admit by at most the number of contending agents", func() {
		const agents = 8

		peak := contend(g, agents, time.Millisecond)

		Expect(peak).To(BeNumerically(">=", 1))
		Expect(peak).To(BeNumerically("<=", agents))
		Expect(st.Occupancy()).To(Equal(int64(0)))
	})

	It("should panic on enter after close", func() {
		g.Close()

		Expect(func() { g.Enter() }).To(Panic())
	})
})
