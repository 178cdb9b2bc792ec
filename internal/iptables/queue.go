// Package iptables writes the command queue consumed by the external bridge
// process that programs the OS packet filter.
package iptables

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Command is one line of the bridge queue file.
type Command struct {
	Action   string // "add" or "delete"
	Protocol int    // 4 or 6
	IP       string
	Subnet   string // CIDR suffix or "" for a single host
	Port     string // port number or "all"
	Kind     string // "tcp", "udp", or "all"
	Target   string // "allow" or "deny"
}

// String renders the wire format: add,<4|6>,<ip>,<subnet|null>,<port|all>,<tcp|udp|all>,<allow|deny>
func (c Command) String() string {
	subnet := c.Subnet
	if subnet == "" {
		subnet = "null"
	}
	port := c.Port
	if port == "" {
		port = "all"
	}
	kind := c.Kind
	if kind == "" {
		kind = "all"
	}
	return strings.Join([]string{
		c.Action,
		fmt.Sprintf("%d", c.Protocol),
		c.IP,
		subnet,
		port,
		kind,
		c.Target,
	}, ",")
}

// DenyIP builds the standard deny-everything command for one visitor.
func DenyIP(ip string, ipv6 bool) Command {
	proto := 4
	if ipv6 {
		proto = 6
	}
	return Command{Action: "add", Protocol: proto, IP: ip, Target: "deny"}
}

// Queue is the append-only bridge file.
type Queue struct {
	path string
}

// NewQueue creates a queue writer for the given path.
func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Path returns the queue file location.
func (q *Queue) Path() string {
	return q.path
}

// Append writes one command line. The file is opened in append mode and the
// write happens under an exclusive advisory lock so concurrent request
// handlers never interleave partial lines.
func (q *Queue) Append(c Command) error {
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening firewall queue: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking firewall queue: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if _, err := f.WriteString(c.String() + "\n"); err != nil {
		return fmt.Errorf("writing firewall queue: %w", err)
	}
	return nil
}
