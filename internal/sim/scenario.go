package sim

import (
	"github.com/nerrad567/iotsim-core/internal/broker"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/config"
	"github.com/nerrad567/iotsim-core/internal/mobility"
	"github.com/nerrad567/iotsim-core/internal/node"
	"github.com/nerrad567/iotsim-core/internal/phy"
)

// defaultGatewayRangeM is the coverage radius reported for gateways that
// don't configure one.
const defaultGatewayRangeM = 100.0

// Scenario is the fully resolved description of one run.
type Scenario struct {
	Name string
	Seed int64

	DurationS         float64
	TickIntervalS     float64
	SnapshotIntervalS float64

	AreaX, AreaY     float64
	DutyCycleWindowS float64

	Broker   broker.Config
	Failover *Failover
	Gateways []Gateway
	Devices  []Device
}

// Failover schedules one broker outage inside the run.
type Failover struct {
	AtS   float64
	DownS float64
}

// Gateway places one gateway and its uplink.
type Gateway struct {
	ID     string
	X, Y   float64
	RangeM float64
	Link   broker.Link

	// Mobility, when non-nil, makes the gateway itself move (vehicle-mounted
	// gateways). The placement above is then just the starting point.
	Mobility *mobility.Profile
}

// Device pairs a node config with its placement and movement.
type Device struct {
	Node     node.Config
	Mobility mobility.Profile

	// Position pins the starting coordinates; nil means a seeded random
	// placement inside the area.
	Position *mobility.Position
}

// FromConfig resolves a loaded configuration into a Scenario. The config is
// assumed validated; this is a pure mapping.
func FromConfig(cfg *config.Config) Scenario {
	sc := Scenario{
		Name:              cfg.Run.Name,
		Seed:              cfg.Run.Seed,
		DurationS:         cfg.Run.DurationS,
		TickIntervalS:     cfg.Run.TickIntervalS,
		SnapshotIntervalS: cfg.Run.SnapshotIntervalS,
		AreaX:             cfg.Scenario.Area.X,
		AreaY:             cfg.Scenario.Area.Y,
		DutyCycleWindowS:  cfg.Scenario.DutyCycleWindowS,
		Broker: broker.Config{
			QueueCapacity:        cfg.Scenario.Broker.QueueCapacity,
			RetryLimit:           cfg.Scenario.Broker.RetryLimit,
			DuplicateProb:        cfg.Scenario.Broker.DuplicateProbOrDefault(),
			WANLatencyMS:         cfg.Scenario.Broker.WAN.LatencyMS,
			WANJitterMS:          cfg.Scenario.Broker.WAN.JitterMS,
			WANLossRate:          cfg.Scenario.Broker.WAN.LossRate,
			ReconnectBackoffMinS: cfg.Scenario.Broker.ReconnectBackoffMinS,
			ReconnectBackoffMaxS: cfg.Scenario.Broker.ReconnectBackoffMaxS,
			RetransmitFloorS:     cfg.Scenario.Broker.RetransmitFloorS,
		},
	}

	if cfg.Scenario.Failover.Enabled {
		sc.Failover = &Failover{
			AtS:   cfg.Scenario.Failover.AtS,
			DownS: cfg.Scenario.Failover.DownS,
		}
	}

	for _, gw := range cfg.Scenario.Gateways {
		g := Gateway{
			ID:     gw.ID,
			X:      gw.X,
			Y:      gw.Y,
			RangeM: gw.RangeM,
			Link: broker.Link{
				LatencyMS: gw.WAN.LatencyMS,
				LossRate:  gw.WAN.LossRate,
			},
		}
		if g.RangeM <= 0 {
			g.RangeM = defaultGatewayRangeM
		}
		if p := toProfile(gw.Mobility); p.Pattern != mobility.PatternStationary {
			prof := p
			g.Mobility = &prof
		}
		sc.Gateways = append(sc.Gateways, g)
	}

	for _, n := range cfg.Scenario.Nodes {
		dev := Device{
			Node: node.Config{
				ID:                n.ID,
				Radio:             phy.Radio(n.Radio),
				Topic:             n.Topic,
				QoS:               n.QoS,
				PayloadBytes:      n.PayloadBytes,
				Retain:            n.Retain,
				PublishIntervalS:  n.PublishIntervalS,
				CleanSession:      n.CleanSession,
				KeepAliveS:        n.KeepAliveS,
				GatewayID:         n.Gateway,
				DutyCycleOverride: n.DutyCycleOverride,
				BatteryCapacityMJ: n.BatteryMJ,
			},
			Mobility: toProfile(n.Mobility),
		}
		for _, sub := range n.Subscriptions {
			dev.Node.Subscriptions = append(dev.Node.Subscriptions, node.Subscription{
				Filter: sub.Filter,
				QoS:    sub.QoS,
			})
		}
		if n.Will != nil {
			dev.Node.Will = &broker.Will{
				Topic:   n.Will.Topic,
				Payload: []byte(n.Will.Payload),
				QoS:     n.Will.QoS,
			}
		}
		if n.Position != nil {
			dev.Position = &mobility.Position{X: n.Position.X, Y: n.Position.Y}
		}
		sc.Devices = append(sc.Devices, dev)
	}

	return sc
}

func toProfile(m config.MobilityConfig) mobility.Profile {
	if m.Pattern == "" {
		return mobility.Profile{Pattern: mobility.PatternStationary}
	}
	return mobility.Profile{Pattern: mobility.Pattern(m.Pattern), SpeedMPS: m.SpeedMPS}
}
