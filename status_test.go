package extchannel

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HimbeerserverDE/extchannel/simworld"
)

func TestStatusFeed(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.DesyncLogDir = ""

	s, err := NewServer(cfg, Listen(pc, 2, nil), nil, simworld.New(testLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < cfg.TickRate; i++ {
		s.Step(1 / float64(cfg.TickRate))
	}

	srv := httptest.NewServer(s.StatusHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatal(err)
	}

	if st.Level != testLevel || st.Sequence != uint32(cfg.TickRate) || st.Paused || len(st.Clients) != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}
