package profile

// Car is the default profile, classifying OSM ways for motor-vehicle
// routing. It generalizes the teacher's isCarAccessible/directionFlags
// helpers (pkg/osm/parser.go in the reference repo) from a single
// accessible/not-accessible boolean into the full ExtractionWay verdict
// spec section 3 requires: per-direction speeds, name, roundabout flag,
// access-restriction flag, and bidirectionality.
type Car struct {
	// SpeedsByHighway maps a highway tag value to its default speed in
	// km/h. Ways without an explicit maxspeed tag use this table.
	SpeedsByHighway map[string]float64

	// TrafficSignalPenaltySec is added to every turn through a traffic
	// light, in seconds.
	TrafficSignalPenaltySec float64

	// UTurnPenaltySec is added to every U-turn, in seconds.
	UTurnPenaltySec float64
}

// NewCar returns a Car profile with the teacher's highway speed table
// generalized from a pure accessibility check into per-class speeds.
func NewCar() *Car {
	return &Car{
		SpeedsByHighway: map[string]float64{
			"motorway":       100,
			"motorway_link":  50,
			"trunk":          80,
			"trunk_link":     40,
			"primary":        65,
			"primary_link":   40,
			"secondary":      55,
			"secondary_link": 35,
			"tertiary":       45,
			"tertiary_link":  30,
			"unclassified":   35,
			"residential":    30,
			"living_street":  15,
			"service":        15,
		},
		TrafficSignalPenaltySec: 2,
		UTurnPenaltySec:         20,
	}
}

func (c *Car) NodeFunction(node *ImportNode) {
	barrier := node.Tags["barrier"]
	if barrier != "" && barrier != "no" {
		access := node.Tags["access"]
		node.Barrier = access != "yes"
	}

	signal := node.Tags["highway"]
	if signal == "traffic_signals" {
		node.TrafficLight = true
	}
}

func (c *Car) WayFunction(way *ExtractionWay) {
	hw := way.Tags["highway"]
	speed, accessible := c.SpeedsByHighway[hw]
	if !accessible {
		return // both speeds stay zero; way is dropped by the caller
	}

	if way.Tags["area"] == "yes" {
		return
	}
	access := way.Tags["access"]
	if access == "no" || access == "private" {
		way.IsAccessRestricted = true
		return
	}
	if way.Tags["motor_vehicle"] == "no" {
		return
	}

	if ms := parseMaxSpeed(way.Tags["maxspeed"]); ms > 0 {
		speed = ms
	}

	way.IsRoundabout = way.Tags["junction"] == "roundabout"
	way.Name = way.Tags["name"]
	way.TravelMode = TravelModeDriving
	way.IgnoreInGrid = way.Tags["highway"] == "motorway" || way.Tags["highway"] == "motorway_link"

	forward, backward := true, true
	if hw == "motorway" || hw == "motorway_link" || way.IsRoundabout {
		backward = false
	}
	switch way.Tags["oneway"] {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
		way.IsOppositeOfOneway = true
	case "no":
		forward, backward = true, true
	case "reversible":
		// Time-dependent direction: not modeled, skip entirely.
		forward, backward = false, false
	}

	way.IsBidirectional = forward && backward
	if forward {
		way.ForwardSpeedKMH = speed
	}
	if backward {
		way.BackwardSpeedKMH = speed
	}
}

func (c *Car) Exceptions() []string {
	return []string{"motor_vehicle", "motorcar"}
}

func (c *Car) RestrictionAllowed(cand RestrictionCandidate) bool {
	except := cand.Tags["except"]
	if except == "" {
		return true
	}
	for _, tok := range splitExcept(except) {
		for _, mode := range c.Exceptions() {
			if tok == mode {
				return false
			}
		}
	}
	return true
}

func (c *Car) TurnPenalty(angleDegrees float64) uint32 {
	return 0
}

func (c *Car) UseTurnRestrictions() bool { return true }

func (c *Car) TrafficSignalPenalty() uint32 {
	return uint32(c.TrafficSignalPenaltySec * 10)
}

func (c *Car) UTurnPenalty() uint32 {
	return uint32(c.UTurnPenaltySec * 10)
}

func (c *Car) HasTurnPenaltyFunction() bool { return false }

// parseMaxSpeed parses an OSM maxspeed tag (e.g. "50", "30 mph") into
// km/h. Unparseable or qualitative values (e.g. "none", "walk") return 0,
// meaning "fall back to the highway-class default".
func parseMaxSpeed(raw string) float64 {
	if raw == "" {
		return 0
	}
	n := 0
	haveDigit := false
	i := 0
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		n = n*10 + int(raw[i]-'0')
		haveDigit = true
		i++
	}
	if !haveDigit {
		return 0
	}
	rest := raw[i:]
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	if rest == "mph" {
		return float64(n) * 1.60934
	}
	return float64(n)
}

// splitExcept splits an OSM `except` tag's semicolon-delimited mode list.
func splitExcept(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ';' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
