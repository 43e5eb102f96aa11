package station

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ratmaze/config"
)

var _ = Describe("Registry", func() {
	It("should number stations in file order", func() {
		r, err := Load(strings.NewReader("1 1\n2 2\n"), 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Len()).To(Equal(2))
		Expect(r.Station(0).ID).To(Equal(0))
		Expect(r.Station(1).ID).To(Equal(1))
		Expect(r.Descriptors()).To(Equal([]Descriptor{
			{Capacity: 1, Delay: 1},
			{Capacity: 2, Delay: 2},
		}))
	})

	It("should ignore lines beyond the maximum", func() {
		r, err := Load(strings.NewReader("1 1\n1 2\n1 3\n"), 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Len()).To(Equal(2))
		Expect(r.TotalDelay()).To(Equal(3))
	})

	It("should read malformed fields as zero", func() {
		r, err := Load(strings.NewReader("3 x\nabc 4\n5\n2 7s\n"), 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Descriptors()).To(Equal([]Descriptor{
			{Capacity: 3, Delay: 0},
			{Capacity: 0, Delay: 4},
			{Capacity: 5, Delay: 0},
			{Capacity: 2, Delay: 7},
		}))
	})

	It("should skip blank lines and accept tabs", func() {
		r, err := Load(strings.NewReader("\n  \n2\t3\r\n"), 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Descriptors()).To(Equal([]Descriptor{{Capacity: 2, Delay: 3}}))
	})

	It("should fail when no station is configured", func() {
		_, err := Load(strings.NewReader("\n\n"), 8)

		var cfgErr *config.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Field).To(Equal("rooms"))
	})

	DescribeTable("should refuse a maximum below one room",
		func(maxStations int) {
			var r *Registry
			var err error
			Expect(func() {
				r, err = Load(strings.NewReader("1 1\n"), maxStations)
			}).NotTo(Panic())

			var cfgErr *config.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("max-rooms"))
			Expect(r).To(BeNil())
		},
		Entry("zero", 0),
		Entry("negative", -1),
	)

	It("should reject negative values", func() {
		_, err := Load(strings.NewReader("1 -1\n"), 8)

		var cfgErr *config.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})

	It("should compute the ideal time", func() {
		r := NewRegistry(Descriptor{1, 1}, Descriptor{2, 2})

		Expect(r.IdealTime(2)).To(Equal(6))
		Expect(r.IdealTime(0)).To(Equal(0))
	})

	Context("when loading from a file", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("should fail with a ConfigError if the file is missing", func() {
			_, err := LoadFile(filepath.Join(dir, "rooms.txt"), 8)

			var cfgErr *config.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})

		It("should load the same sequence every time", func() {
			path := filepath.Join(dir, "rooms.txt")
			Expect(os.WriteFile(path, []byte("1 1\n2 2\n3 0\n"), 0o600)).
				To(Succeed())

			first, err := LoadFile(path, 8)
			Expect(err).NotTo(HaveOccurred())
			second, err := LoadFile(path, 8)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Descriptors()).To(Equal(first.Descriptors()))
		})
	})
})
