package model

import "time"

// Train is the current state of a train as known by the network snapshot.
type Train struct {
	ID             string
	Priority       float64   // higher values are more important
	SectionID      string    // section the train currently occupies
	PositionKm     float64   // distance from the start of the line
	SpeedKmh       float64   // current speed
	MaxSpeedKmh    float64   // line speed limit for the train
	ScheduledEntry time.Time // planned entry in the contested area
	ScheduledExit  time.Time // planned exit from the contested area
	Route          []string  // ordered sections of the current route
	Alternatives   []Route   // alternative routes the train may take
}

// Route is an ordered list of sections. ExtraMinutes is the running time
// penalty of the route compared to the planned one.
type Route struct {
	ID           string
	Sections     []string
	ExtraMinutes float64
}

// Uses reports whether the route goes through the section.
func (r Route) Uses(section string) bool {
	for _, s := range r.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// Section describes a block of track.
type Section struct {
	ID            string
	Capacity      int           // simultaneous trains allowed
	LengthKm      float64       // length of the section
	Occupancy     int           // trains currently inside the section
	OccupiedUntil time.Time     // when current occupants are expected to clear
	MinHeadway    time.Duration // minimum spacing between consecutive trains
}

// NetworkSnapshot is the state of trains and sections at a point in time.
type NetworkSnapshot struct {
	Timestamp time.Time
	Trains    map[string]Train
	Sections  map[string]Section
}

// Train returns the train with the given id.
func (n NetworkSnapshot) Train(id string) (Train, bool) {
	t, ok := n.Trains[id]
	return t, ok
}

// Section returns the section with the given id.
func (n NetworkSnapshot) Section(id string) (Section, bool) {
	s, ok := n.Sections[id]
	return s, ok
}
