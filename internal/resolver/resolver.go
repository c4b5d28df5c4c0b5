// Package resolver walks the DNS hierarchy iteratively, starting from a
// configured root, following NS referrals and CNAME chains until it
// reaches an authoritative answer, grounded on the teacher's
// internal/dns/server/recursive.go resolveRecursive/findNextNS.
package resolver

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"net"

	"github.com/dnslab/recursor/internal/transport"
	"github.com/dnslab/recursor/internal/wire"
)

// maxHops bounds the number of referrals a single resolution may follow,
// spec.md §4.4: "A global hop cap (e.g., 16) must bound referrals;
// exceeding it returns failure."
const maxHops = 16

// ErrHopLimitExceeded is returned when a resolution follows more than
// maxHops referrals without reaching a terminal response.
var ErrHopLimitExceeded = fmt.Errorf("resolver: hop limit exceeded")

// ErrResolutionFailed wraps a transport failure that left no server to try.
var ErrResolutionFailed = fmt.Errorf("resolver: no upstream produced a response")

// Resolver performs iterative resolution against a configured root,
// falling back through a shuffled list of root hints (spec.md §4.4
// addition) when the primary root is unreachable.
type Resolver struct {
	proxyHost string
	proxyPort int
	rootHints []string

	// sendFn is the injection seam tests use to simulate upstream servers
	// without a network, mirroring the teacher's queryFn field on Server.
	sendFn func(addr string, payload []byte, proto transport.Protocol) ([]byte, error)
}

// New builds a Resolver. rootHints supplements proxyHost/proxyPort as
// fallback starting points; it may be empty.
func New(proxyHost string, proxyPort int, rootHints []string) *Resolver {
	return &Resolver{
		proxyHost: proxyHost,
		proxyPort: proxyPort,
		rootHints: rootHints,
		sendFn:    transport.Send,
	}
}

// Resolve obtains an authoritative answer for req, which must carry
// exactly one Question. It implements spec.md §4.4's algorithm: query the
// current server, return on a matching answer, follow a CNAME by
// recursing on the new name, follow an NS referral by switching servers,
// or return the last non-authoritative response when nothing more can be
// tried.
func (r *Resolver) Resolve(req *wire.Message) (*wire.Message, error) {
	if len(req.Questions) != 1 {
		return nil, fmt.Errorf("resolver: request must carry exactly one question")
	}
	return r.resolveWithHops(req, 0)
}

func (r *Resolver) resolveWithHops(req *wire.Message, hops int) (*wire.Message, error) {
	if hops >= maxHops {
		return nil, ErrHopLimitExceeded
	}
	starts := r.startingServers()
	var lastErr error
	for _, start := range starts {
		resp, err := r.walk(req, start, hops)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrResolutionFailed
	}
	return nil, lastErr
}

// startingServers returns the addresses to try, in order: the configured
// proxy first, then a shuffled copy of the root hints as failover
// (teacher's getShuffledRoots, generalized to run after the primary
// instead of in place of it since spec.md names proxy_hostname as the
// single required root).
func (r *Resolver) startingServers() []string {
	servers := []string{net.JoinHostPort(r.proxyHost, fmt.Sprintf("%d", r.proxyPort))}
	shuffled := make([]string, len(r.rootHints))
	copy(shuffled, r.rootHints)
	mrand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, hint := range shuffled {
		servers = append(servers, net.JoinHostPort(hint, "53"))
	}
	return servers
}

func (r *Resolver) walk(req *wire.Message, currentServer string, hops int) (*wire.Message, error) {
	qname := req.Questions[0].Name
	qtype := req.Questions[0].Type

	if hops >= maxHops {
		return nil, ErrHopLimitExceeded
	}

	proto := transport.UDP
	if req.Stream {
		proto = transport.TCP
	}

	query := &wire.Message{
		ID:        newTransactionID(),
		Flags:     wire.Flags{Opcode: wire.OpcodeQuery, RecursionDesired: false},
		Questions: []wire.Question{req.Questions[0]},
		Stream:    req.Stream,
	}
	raw, err := wire.Emit(query)
	if err != nil {
		return nil, err
	}

	respRaw, err := r.sendFn(currentServer, raw, proto)
	if err != nil || len(respRaw) == 0 {
		return nil, ErrResolutionFailed
	}
	resp, err := wire.Parse(respRaw, req.Stream)
	if err != nil {
		return nil, err
	}

	for _, a := range resp.Answers {
		if a.Type == qtype && equalNames(a.Name, qname) {
			resp.Hops = hops
			return resp, nil
		}
	}

	for _, a := range resp.Answers {
		if a.Type == wire.TypeCNAME && equalNames(a.Name, qname) {
			sub := &wire.Message{
				Questions: []wire.Question{{Name: a.Data, Type: qtype, Class: wire.ClassIN}},
				Stream:    req.Stream,
			}
			subResp, err := r.resolveWithHops(sub, hops+1)
			if err != nil {
				failure := synthesizeFailure(req)
				failure.Hops = hops
				return failure, nil
			}
			flattened := &wire.Message{
				ID:          resp.ID,
				Flags:       subResp.Flags,
				Questions:   []wire.Question{req.Questions[0]},
				Answers:     append([]wire.Record{a}, subResp.Answers...),
				Authorities: subResp.Authorities,
				Additional:  subResp.Additional,
				Hops:        subResp.Hops,
			}
			return flattened, nil
		}
	}

	if next, ok := nextAuthority(resp); ok {
		return r.walk(req, net.JoinHostPort(next, "53"), hops+1)
	}

	resp.Hops = hops
	return resp, nil
}

// nextAuthority picks the next server to query from an NS referral,
// spec.md §4.4 tie-break rule: first NS record in parse order, preferring
// its matching A glue in the additional section, falling back to the NS
// name itself when no glue is present.
func nextAuthority(resp *wire.Message) (string, bool) {
	for _, ns := range resp.Authorities {
		if ns.Type != wire.TypeNS || ns.Name == "" {
			continue
		}
		addr := ns.Data
		for _, rec := range resp.Additional {
			if rec.Type == wire.TypeA && equalNames(rec.Name, addr) {
				addr = rec.Data
				break
			}
		}
		if net.ParseIP(addr) == nil {
			// No glue and the NS name itself isn't a literal address;
			// spec.md §4.4: "the referral is skipped."
			continue
		}
		return addr, true
	}
	return "", false
}

// synthesizeFailure builds a SERVFAIL response echoing the original
// question, used when a CNAME target fails to resolve (spec.md §4.4:
// "if sub is failure: synthesize response(qr=1) from request").
func synthesizeFailure(req *wire.Message) *wire.Message {
	return &wire.Message{
		ID:        req.ID,
		Flags:     wire.Flags{Response: true, RCode: wire.RCodeServFail},
		Questions: req.Questions,
	}
}

func equalNames(a, b string) bool {
	return len(a) == len(b) && asciiEqualFold(a, b)
}

func asciiEqualFold(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func newTransactionID() uint16 {
	var id uint16
	_ = binary.Read(rand.Reader, binary.BigEndian, &id)
	return id
}
