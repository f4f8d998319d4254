package nlm

import (
	"testing"
	"time"
)

func TestClientTimeoutCoversStreamedRequests(t *testing.T) {
	t.Run("stream timeout dominates", func(t *testing.T) {
		Init(Config{StreamTimeout: 2 * time.Minute, RPCTimeout: 30 * time.Second})
		got := clientTimeout()
		if got < 2*time.Minute {
			t.Errorf("clientTimeout = %v, must not undercut StreamTimeout %v", got, 2*time.Minute)
		}
	})

	t.Run("rpc timeout dominates", func(t *testing.T) {
		Init(Config{StreamTimeout: time.Minute, RPCTimeout: 3 * time.Minute})
		got := clientTimeout()
		if got < 3*time.Minute {
			t.Errorf("clientTimeout = %v, must not undercut RPCTimeout %v", got, 3*time.Minute)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		Init(Config{})
		got := clientTimeout()
		if got < Cfg.StreamTimeout || got < Cfg.RPCTimeout {
			t.Errorf("clientTimeout = %v under defaults (stream %v, rpc %v)",
				got, Cfg.StreamTimeout, Cfg.RPCTimeout)
		}
	})
}
