// Package netutils brings up the loopback interface inside a freshly
// unshared network namespace, the Go-idiomatic equivalent of spec §4.5 step
// 7's "sending a RTM_NEWLINK rtnetlink message with IFF_UP": netlink.LinkSetUp
// constructs and sends exactly that request.
package netutils

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// BringUpLoopback sets the "lo" interface of the current network namespace
// to the up state.
func BringUpLoopback() error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("lookup lo: %w", err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("bring up lo: %w", err)
	}

	return nil
}
