package acceptor

import (
	"net"
	"testing"

	"github.com/nmezhenskyi/listend/internal/bind"
)

func BenchmarkAccept(b *testing.B) {
	ls, err := bind.BindAndListen("127.0.0.1", 0, 512)
	if err != nil {
		b.Fatalf("Failed to bind: %v", err)
	}
	server := NewServer(nil)
	go server.Serve(ls)
	defer server.Close()
	addr := ls.Addr().String()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			b.Errorf("Failed to connect to the server: %v", err)
			continue
		}
		conn.Close()
	}
}

func BenchmarkBindAndListen(b *testing.B) {
	for n := 0; n < b.N; n++ {
		ls, err := bind.BindAndListen("127.0.0.1", 0, 16)
		if err != nil {
			b.Fatalf("Failed to bind: %v", err)
		}
		ls.Close()
	}
}
