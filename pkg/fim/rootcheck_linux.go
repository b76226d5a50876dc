package fim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sentrylabs/fim/pkg/fim/sink"
)

// DefaultRootkitTask is a minimal, swappable rootcheck implementation
// demonstrating the interleaving contract with two well-known
// hiding techniques: PIDs visible to the kernel via syscall that don't
// appear in a /proc directory listing, and network interfaces running in
// promiscuous mode.
func DefaultRootkitTask(ctx context.Context, client *sink.Client, roots []RootConfig) error {
	if err := checkHiddenPIDs(client); err != nil {
		return err
	}
	if err := checkPromiscuousInterfaces(client); err != nil {
		return err
	}
	return checkIdleSetuidBinaries(roots, client)
}

// checkHiddenPIDs compares the PIDs visible in /proc against the set
// reachable by signaling every PID up to the highest one listed; a PID
// that responds to signal 0 but has no /proc entry is reported as hidden.
func checkHiddenPIDs(client *sink.Client) error {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	visible := make(map[int]bool, len(entries))
	highest := 0
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		visible[pid] = true
		if pid > highest {
			highest = pid
		}
	}

	for pid := 1; pid <= highest; pid++ {
		if visible[pid] {
			continue
		}
		if unix.Kill(pid, 0) == nil {
			client.Write(sink.Rootcheck, fmt.Sprintf("hidden process: pid %d responds but has no /proc entry", pid))
		}
	}

	return nil
}

// checkPromiscuousInterfaces reports network interfaces running in
// promiscuous mode, a common packet-sniffing rootkit signature. It reads
// each interface's flags directly from sysfs rather than opening a
// socket, since the flags file exposes the same bitmask as SIOCGIFFLAGS.
func checkPromiscuousInterfaces(client *sink.Client) error {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		name := entry.Name()
		raw, err := os.ReadFile(filepath.Join("/sys/class/net", name, "flags"))
		if err != nil {
			continue
		}
		flags, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 32)
		if err != nil {
			continue
		}
		if uint32(flags)&unix.IFF_PROMISC != 0 {
			client.Write(sink.Rootcheck, fmt.Sprintf("interface in promiscuous mode: %s", name))
		}
	}
	return nil
}
