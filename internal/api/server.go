// Package api serves a read-only HTTP view of a node's network state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshctl/internal/metrics"
	"meshctl/internal/model"
	"meshctl/internal/netstate"
)

// Server exposes State over HTTP.
type Server struct {
	self  model.NodeID
	state *netstate.State
	stats *metrics.Collectors
}

// NewServer constructs an API server. stats may be nil, in which case
// /metrics is not served.
func NewServer(self model.NodeID, state *netstate.State, stats *metrics.Collectors) *Server {
	return &Server{self: self, state: state, stats: stats}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{id:[0-9]+}", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/flows", s.handleFlows).Methods(http.MethodGet)
	r.HandleFunc("/links", s.handleLinks).Methods(http.MethodGet)
	r.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodGet)
	if s.stats != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.stats.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("api listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.state.Nodes()
	resp := NodesResponse{Self: uint32(s.self), Nodes: make([]NodeInfo, 0, len(nodes))}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, nodeInfo(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid node id")
		return
	}
	n, ok := s.state.Node(model.NodeID(id))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown node")
		return
	}
	writeJSON(w, http.StatusOK, nodeInfo(n))
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	resp := FlowsResponse{Flows: make([]FlowInfo, 0, len(snap.Stats))}
	for _, st := range snap.Stats {
		resp.Flows = append(resp.Flows, FlowInfo{
			Flow:       uint32(st.Flow),
			Window:     st.Window,
			Latency:    st.Latency,
			Throughput: st.Throughput,
			Bytes:      st.Bytes,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	links := s.state.Links()
	resp := LinksResponse{Links: make([]LinkInfo, 0, len(links))}
	for _, l := range links {
		resp.Links = append(resp.Links, LinkInfo{Src: uint32(l.Src), Dest: uint32(l.Dest), Flow: uint32(l.Flow)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	g, seq, ok := s.state.Schedule()
	resp := ScheduleResponse{Installed: ok, Seq: seq}
	if ok {
		resp.Channels = g.Channels()
		resp.Slots = g.Slots()
		resp.Grid = make([][]uint32, len(g))
		for ch, row := range g {
			resp.Grid[ch] = make([]uint32, len(row))
			for slot, id := range row {
				resp.Grid[ch][slot] = uint32(id)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
