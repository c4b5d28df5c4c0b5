// Package multiply answers the synthetic "multiply" domain without any
// network egress: a.b.c.multiply.<rest> resolves to 127.0.0.(a*b*c mod 256).
package multiply

import (
	"strconv"
	"strings"

	"github.com/dnslab/recursor/internal/wire"
)

// infix marks a name as belonging to the synthetic domain.
const infix = ".multiply."

// ttl is fixed by spec for every synthesized multiply answer.
const ttl = 300

// Matches reports whether name should be answered by this handler instead
// of the iterative resolver.
func Matches(name string) bool {
	return strings.Contains(strings.ToLower(name), infix)
}

// Answer synthesizes an A record for a multiply-domain question. The
// labels preceding ".multiply." are split on ".", filtered to decimal
// integers, and multiplied together modulo 256; a name with no numeric
// labels yields 0.
func Answer(q wire.Question) wire.Record {
	prefix, _, _ := strings.Cut(strings.ToLower(q.Name), infix)
	product := 1
	seen := false
	for _, label := range strings.Split(prefix, ".") {
		n, err := strconv.Atoi(label)
		if err != nil {
			continue
		}
		seen = true
		product = (product * n) % 256
		if product < 0 {
			product += 256
		}
	}
	if !seen {
		product = 0
	}

	return wire.Record{
		Name:  q.Name,
		Type:  wire.TypeA,
		Class: wire.ClassIN,
		TTL:   ttl,
		Data:  "127.0.0." + strconv.Itoa(product),
	}
}
