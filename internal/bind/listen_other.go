//go:build !unix

package bind

import (
	"context"
	"errors"
	"net"
)

// listenCandidate binds through net.ListenConfig on targets without the
// unix socket calls. The backlog is the system default there.
// SO_REUSEADDR is left unset: on Windows it lets another socket take over
// a port that is actively listening.
func listenCandidate(c candidate, backlog int) (*ListeningSocket, *BindFailure) {
	addr := c.String()
	network := "tcp4"
	if c.family == FamilyIPv6 && !c.dualStack {
		network = "tcp6"
	} else if c.dualStack {
		network = "tcp"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, failure(classifyBind(err), opBind, addr, err)
	}
	tln, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, failure(ListenFailed, opListen, addr, errors.New("not a TCP listener"))
	}
	return newListeningSocket(tln, c.family, backlog), nil
}
