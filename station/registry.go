package station

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/ratmaze/config"
)

// Registry is the ordered, read-only list of stations of a maze. Only the
// occupancy of each station changes after loading.
type Registry struct {
	stations []*Station
}

// NewRegistry creates a registry from descriptors, numbering the stations in
// order.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{stations: make([]*Station, 0, len(descriptors))}
	for i, d := range descriptors {
		r.stations = append(r.stations, New(i, d.Capacity, d.Delay))
	}

	return r
}

// Len returns the number of stations.
func (r *Registry) Len() int {
	return len(r.stations)
}

// Station returns the station with the given ordinal.
func (r *Registry) Station(i int) *Station {
	return r.stations[i]
}

// Stations returns all the stations in order.
func (r *Registry) Stations() []*Station {
	return r.stations
}

// Descriptors returns the capacity and delay of every station, in order.
func (r *Registry) Descriptors() []Descriptor {
	ds := make([]Descriptor, len(r.stations))
	for i, s := range r.stations {
		ds[i] = s.Descriptor()
	}

	return ds
}

// TotalDelay returns the sum of the delays of all stations.
func (r *Registry) TotalDelay() int {
	total := 0
	for _, s := range r.stations {
		total += s.Delay
	}

	return total
}

// IdealTime returns the total traversal time of the given number of agents if
// no agent ever waited for a station.
func (r *Registry) IdealTime(agents int) int {
	return r.TotalDelay() * agents
}

// LoadFile loads a registry from a station configuration file.
func LoadFile(path string, maxStations int) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		reason := "cannot open station configuration"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "station configuration not found"
		}

		return nil, &config.ConfigError{Field: "rooms", Reason: reason, Err: err}
	}
	defer f.Close()

	return Load(f, maxStations)
}

// Load reads one station per line, each line being "capacity delay". At most
// maxStations lines are used; the rest are ignored. Blank lines are skipped. A
// missing or non-numeric field reads as zero, the way atoi would.
func Load(src io.Reader, maxStations int) (*Registry, error) {
	if maxStations < 1 {
		return nil, config.NewConfigError("max-rooms", "must be at least 1")
	}

	descriptors := make([]Descriptor, 0, maxStations)

	scanner := bufio.NewScanner(src)
	for scanner.Scan() && len(descriptors) < maxStations {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d, err := parseLine(line, len(descriptors))
		if err != nil {
			return nil, err
		}

		descriptors = append(descriptors, d)
	}

	if err := scanner.Err(); err != nil {
		return nil, &config.ConfigError{
			Field:  "rooms",
			Reason: "cannot read station configuration",
			Err:    err,
		}
	}

	if len(descriptors) == 0 {
		return nil, config.NewConfigError("rooms", "no station configured")
	}

	return NewRegistry(descriptors...), nil
}

func parseLine(line string, index int) (Descriptor, error) {
	fields := strings.Fields(line)

	d := Descriptor{}
	if len(fields) > 0 {
		d.Capacity = atoi(fields[0])
	}

	if len(fields) > 1 {
		d.Delay = atoi(fields[1])
	}

	if d.Capacity < 0 || d.Delay < 0 {
		return d, config.NewConfigError("rooms",
			"station "+strconv.Itoa(index)+" has a negative capacity or delay")
	}

	return d, nil
}

// atoi parses the leading integer of s and returns 0 if there is none.
func atoi(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}

	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}

	return n
}
