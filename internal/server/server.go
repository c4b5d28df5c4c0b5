// Package server owns the listening sockets and worker pools that answer
// client DNS queries, grounded on the teacher's internal/dns/server/server.go
// (parallel SO_REUSEPORT UDP listeners, a bounded worker pool, a per-IP
// rate limiter) generalized to this resolver's request shape.
package server

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/dnslab/recursor/internal/audit"
	"github.com/dnslab/recursor/internal/cache"
	"github.com/dnslab/recursor/internal/metrics"
	"github.com/dnslab/recursor/internal/multiply"
	"github.com/dnslab/recursor/internal/resolver"
	"github.com/dnslab/recursor/internal/wire"
)

// resolveFunc is the injection seam server tests use in place of a live
// iterative resolver (mirrors the teacher's Server.queryFn field).
type resolveFunc func(req *wire.Message) (*wire.Message, error)

// Server drives the UDP and TCP listeners and dispatches each request
// through the cache, multiply handler, or resolver per spec.md §4.5.
type Server struct {
	Addr string

	Cache    *cache.Cache
	Mirror   *cache.Mirror
	Audit    *audit.Sink
	Logger   *slog.Logger
	resolve  resolveFunc
	limiter  *rateLimiter
	workers  int
	sweepInt time.Duration

	udpQueue chan udpTask
}

type udpTask struct {
	conn net.PacketConn
	addr net.Addr
	data []byte
}

// New builds a Server. resolve answers the questions a cache lookup and
// the multiply handler can't; in production that's resolver.Resolver.Resolve.
func New(addr string, workers int, sweepInterval time.Duration, c *cache.Cache, r *resolver.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Server{
		Addr:     addr,
		Cache:    c,
		Logger:   logger,
		resolve:  r.Resolve,
		limiter:  newRateLimiter(2000, 1000),
		workers:  workers,
		sweepInt: sweepInterval,
		udpQueue: make(chan udpTask, 4096),
	}
}

// Run starts the UDP acceptors, worker pool, TCP acceptor, and background
// cache sweeper, and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.Logger.Info("starting server", "addr", s.Addr, "workers", s.workers)

	stopSweep := make(chan struct{})
	go s.Cache.RunSweeper(s.sweepInt, stopSweep)
	defer close(stopSweep)

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = setReusePort(fd)
			})
		},
	}

	for i := 0; i < s.workers; i++ {
		go s.udpWorker()
	}

	for i := 0; i < s.workers; i++ {
		conn, err := lc.ListenPacket(ctx, "udp", s.Addr)
		if err != nil {
			return err
		}
		go s.acceptUDP(ctx, conn)
	}

	tcpListener, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	go s.acceptTCP(ctx, tcpListener)

	<-ctx.Done()
	return nil
}

func (s *Server) acceptUDP(ctx context.Context, conn net.PacketConn) {
	defer conn.Close()
	buf := make([]byte, wire.MaxMessageSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.udpQueue <- udpTask{conn: conn, addr: addr, data: data}
	}
}

func (s *Server) udpWorker() {
	for task := range s.udpQueue {
		metrics.ActiveWorkers.Inc()
		resp := s.handle(task.data, task.addr.String(), false)
		metrics.ActiveWorkers.Dec()
		if resp != nil {
			_, _ = task.conn.WriteTo(resp, task.addr)
		}
	}
}

func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) {
	defer ln.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			continue
		}
		go s.handleTCPConn(conn)
	}
}

func (s *Server) handleTCPConn(conn net.Conn) {
	defer conn.Close()
	for {
		lenBuf := make([]byte, 2)
		if _, err := readFull(conn, lenBuf); err != nil {
			return
		}
		n := int(lenBuf[0])<<8 | int(lenBuf[1])
		body := make([]byte, n)
		if _, err := readFull(conn, body); err != nil {
			return
		}
		framed := append(lenBuf, body...)

		metrics.ActiveWorkers.Inc()
		resp := s.handle(framed, conn.RemoteAddr().String(), true)
		metrics.ActiveWorkers.Dec()
		if resp == nil {
			return
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// handle runs one request through the per-request algorithm of
// spec.md §4.5 and returns the wire bytes to send back, or nil to drop
// the request silently (malformed input).
func (s *Server) handle(raw []byte, clientAddr string, stream bool) []byte {
	start := time.Now()
	protocol := "udp"
	if stream {
		protocol = "tcp"
	}

	clientIP, _, _ := net.SplitHostPort(clientAddr)
	if !s.limiter.Allow(clientIP) {
		return nil
	}

	req, err := wire.Parse(raw, stream)
	if err != nil {
		s.Logger.Warn("dropping malformed request", "error", err, "client", clientIP)
		return nil
	}

	if len(req.Questions) == 0 {
		return s.emit(servfail(req), stream, "0", protocol, start, "servfail", clientIP, 0)
	}

	var answers, authorities, additional []wire.Record
	seen := map[any]struct{}{}
	addUnique := func(dst *[]wire.Record, recs []wire.Record) {
		for _, r := range recs {
			key := r.Identity()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			*dst = append(*dst, r)
		}
	}

	outcome := "recursive"
	hops := 0

	for _, q := range req.Questions {
		source := "recursive"
		var perQuestion *wire.Message

		if cached, ok := s.Cache.Get(q); ok {
			metrics.CacheOperations.WithLabelValues("hit").Inc()
			source = "cache"
			perQuestion = cached
		} else {
			metrics.CacheOperations.WithLabelValues("miss").Inc()
			if s.Mirror != nil {
				if mirrored, ok := s.Mirror.Fetch(context.Background(), q); ok {
					perQuestion = mirrored
					source = "cache"
				}
			}
			if perQuestion == nil && multiply.Matches(q.Name) {
				rec := multiply.Answer(q)
				synthesized := &wire.Message{
					Flags:     wire.Flags{Response: true},
					Questions: []wire.Question{q},
					Answers:   []wire.Record{rec},
				}
				s.Cache.Put(q, synthesized, 300)
				perQuestion = synthesized
				source = "multiply"
			} else if perQuestion == nil {
				subReq := &wire.Message{ID: req.ID, Questions: []wire.Question{q}, Stream: req.Stream}
				resolved, rerr := s.resolve(subReq)
				if rerr != nil {
					metrics.QueryDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
					return s.emit(servfail(req), stream, strconv.Itoa(int(q.Type)), protocol, start, "servfail", clientIP, 0)
				}
				metrics.UpstreamHops.Observe(float64(resolved.Hops))
				hops = resolved.Hops
				ttl := minTTL(resolved)
				s.Cache.Put(q, resolved, ttl)
				if s.Mirror != nil {
					s.Mirror.Publish(context.Background(), q, resolved, time.Duration(ttl)*time.Second)
				}
				perQuestion = resolved
			}
		}

		outcome = source
		metrics.QueryDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
		addUnique(&answers, perQuestion.Answers)
		addUnique(&authorities, perQuestion.Authorities)
		addUnique(&additional, perQuestion.Additional)
	}

	resp := &wire.Message{
		ID:          req.ID,
		Flags:       wire.Flags{Response: true},
		Questions:   req.Questions,
		Answers:     answers,
		Authorities: authorities,
		Additional:  additional,
	}
	return s.emit(resp, stream, strconv.Itoa(int(req.Questions[0].Type)), protocol, start, outcome, clientIP, hops)
}

func (s *Server) emit(m *wire.Message, stream bool, qtype, protocol string, start time.Time, outcome, clientIP string, hops int) []byte {
	m.Stream = stream
	out, err := wire.Emit(m)
	metrics.QueriesTotal.WithLabelValues(qtype, strconv.Itoa(int(m.Flags.RCode)), protocol).Inc()
	if s.Audit != nil {
		go s.Audit.Log(context.Background(), auditEntryFor(m, outcome, clientIP, hops))
	}
	if err != nil {
		s.Logger.Error("failed to serialize response", "error", err)
		return nil
	}
	return out
}

func auditEntryFor(m *wire.Message, outcome, clientIP string, hops int) audit.QueryLogEntry {
	entry := audit.QueryLogEntry{
		RCode:      m.Flags.RCode,
		Outcome:    outcome,
		ClientAddr: clientIP,
		Hops:       hops,
		At:         time.Now(),
	}
	if len(m.Questions) > 0 {
		entry.Name = m.Questions[0].Name
		entry.Type = strconv.Itoa(int(m.Questions[0].Type))
	}
	return entry
}

func servfail(req *wire.Message) *wire.Message {
	return &wire.Message{
		ID:        req.ID,
		Flags:     wire.Flags{Response: true, RCode: wire.RCodeServFail},
		Questions: req.Questions,
	}
}

// minTTL returns the minimum TTL across a resolved message's records, or
// 300 when it carries none (spec.md §4.5: "or 300 on an empty record
// set").
func minTTL(m *wire.Message) int32 {
	lowest := int32(-1)
	for _, sections := range [][]wire.Record{m.Answers, m.Authorities, m.Additional} {
		for _, r := range sections {
			if lowest == -1 || int32(r.TTL) < lowest {
				lowest = int32(r.TTL)
			}
		}
	}
	if lowest == -1 {
		return 300
	}
	return lowest
}
