package wire

import (
	"fmt"
	"net"
)

func ipv4String(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func ipv6String(b []byte) string {
	return net.IP(b).String()
}

func parseIPv4(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, ErrMalformed
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, ErrMalformed
	}
	return v4, nil
}

func parseIPv6(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, ErrMalformed
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, ErrMalformed
	}
	return v6, nil
}
