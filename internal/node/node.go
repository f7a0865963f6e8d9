// Package node wires the control-plane components of one radio together.
package node

import (
	"context"
	"fmt"
	"log"
	"time"

	"meshctl/internal/api"
	"meshctl/internal/broadcast"
	"meshctl/internal/channel"
	"meshctl/internal/config"
	"meshctl/internal/control"
	"meshctl/internal/metrics"
	"meshctl/internal/mirror"
	"meshctl/internal/model"
	"meshctl/internal/netstate"
	"meshctl/internal/radio"
	"meshctl/internal/schedule"
	"meshctl/internal/store"
	"meshctl/internal/timestamp"
	"meshctl/internal/wire"
)

// Node is a running control plane.
type Node struct {
	cfg config.Config

	State   *netstate.State
	Engine  *radio.Static
	Channel *channel.Channel
	Stats   *metrics.Collectors

	mirror *mirror.Publisher
	status *broadcast.StatusBroadcaster
	sched  *broadcast.ScheduleBroadcaster
	api    *api.Server
}

// Run builds a node from cfg and runs it until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	n, err := New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()
	return n.Run(ctx)
}

// New validates cfg, loads the roster and binds the control socket.
func New(cfg config.Config) (*Node, error) {
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	nc := cfg.Node
	self := model.NodeID(nc.ID)
	now := time.Now()

	roster := &store.Roster{}
	if nc.RosterPath != "" {
		var err error
		if roster, err = store.LoadRoster(nc.RosterPath); err != nil {
			return nil, err
		}
	}
	ids := append(roster.IDs(), self)
	state := netstate.New(ids...)
	for id, loc := range roster.Locations(now) {
		state.UpdateLocation(nil, id, loc)
	}

	loc := model.Location{
		Latitude:  nc.Location.Latitude,
		Longitude: nc.Location.Longitude,
		Altitude:  nc.Location.Altitude,
		Timestamp: timestamp.FromTime(now),
	}
	state.UpdateLocation(nil, self, loc)
	engine := radio.NewStatic(self, loc)

	stats := metrics.NewCollectors()
	opts := []channel.Option{channel.WithCollectors(stats)}
	if nc.MulticastGroup != "" {
		opts = append(opts, channel.WithMulticast(nc.MulticastGroup, nc.MulticastIface))
	}
	ch, err := channel.Listen(nc.Listen, opts...)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", nc.Listen, err)
	}
	if nc.Peer != "" {
		if err := ch.SetRemote(nc.Peer); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("peer %s: %w", nc.Peer, err)
		}
	}

	n := &Node{
		cfg:     cfg,
		State:   state,
		Engine:  engine,
		Channel: ch,
		Stats:   stats,
	}

	if nc.NATSURL != "" {
		pub, err := mirror.NewPublisher(nc.NATSURL, nc.NATSSubject)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		n.mirror = pub
	}

	statusHandler := &control.StatusHandler{State: state, Stats: stats}
	if nc.MetricsPath != "" {
		statusHandler.Recorder = metrics.CSVRecorder{Path: nc.MetricsPath}
	}
	if n.mirror != nil {
		statusHandler.Mirror = n.mirror
	}
	ch.Register(wire.KindStatus, statusHandler.Handle)

	scheduleHandler := &control.ScheduleHandler{
		Self:      self,
		Frequency: nc.Frequency,
		Bandwidth: nc.Bandwidth,
		State:     state,
		Engine:    engine,
		Stats:     stats,
	}
	ch.Register(wire.KindSchedule, scheduleHandler.Handle)

	n.status = &broadcast.StatusBroadcaster{
		Engine: engine,
		Out:    ch,
		Period: seconds(nc.StatusUpdatePeriodSec),
	}
	if nc.Gateway {
		sc := cfg.Schedule
		n.sched = &broadcast.ScheduleBroadcaster{
			Self:   self,
			State:  state,
			Engine: engine,
			Out:    ch,
			Policy: schedule.Policy{
				Name:       sc.Policy,
				Channels:   sc.Channels,
				Slots:      sc.Slots,
				Separation: sc.Separation,
			},
			Frequency: nc.Frequency,
			Bandwidth: nc.Bandwidth,
			Period:    seconds(sc.PeriodSec),
		}
	}
	if nc.APIListen != "" {
		n.api = api.NewServer(self, state, stats)
	}
	return n, nil
}

type task struct {
	name string
	run  func(context.Context) error
}

// Run serves the control socket and runs the broadcasters. It returns nil
// when ctx is cancelled and the first task error otherwise.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := []task{
		{name: "receive", run: n.Channel.Serve},
		{name: "status", run: n.status.Run},
	}
	if n.sched != nil {
		tasks = append(tasks, task{name: "schedule", run: n.sched.Run})
	}
	if n.api != nil {
		addr := n.cfg.Node.APIListen
		tasks = append(tasks, task{name: "api", run: func(ctx context.Context) error {
			return n.api.ListenAndServe(ctx, addr)
		}})
	}

	log.Printf("node id=%d listening on %s peer=%s gateway=%v", n.cfg.Node.ID, n.Channel.LocalAddr(), n.cfg.Node.Peer, n.cfg.Node.Gateway)

	errc := make(chan error, len(tasks))
	for _, t := range tasks {
		go func(t task) {
			err := t.run(ctx)
			if err != nil {
				err = fmt.Errorf("%s: %w", t.name, err)
			}
			errc <- err
		}(t)
	}

	var first error
	for range tasks {
		if err := <-errc; err != nil && first == nil {
			first = err
			log.Printf("node: %v", err)
			cancel()
		}
	}
	return first
}

// Close releases the socket and the NATS connection.
func (n *Node) Close() {
	_ = n.Channel.Close()
	if n.mirror != nil {
		n.mirror.Close()
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
